package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/picoup/adapter"
)

func testEvent() *adapter.DeployCompletedEvent {
	return &adapter.DeployCompletedEvent{
		Version:   "0.3.0",
		EventType: "deploy_completed",
		DeployID:  "deploy-001",
		Device:    "/dev/ttyACM0",
		Outcome:   "success",
		Timestamp: "2026-08-31T12:00:00Z",
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New succeeded without a URL")
	}
	if _, err := New(Config{URL: "not a redis url"}); err == nil {
		t.Error("New succeeded with an invalid URL")
	}

	a, err := New(Config{URL: "redis://localhost:6379"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()
	if a.config.Channel != DefaultChannel {
		t.Errorf("Channel = %q, want %q", a.config.Channel, DefaultChannel)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}

func TestPublish(t *testing.T) {
	server := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + server.Addr(), Channel: "picoup:test"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	defer func() { _ = sub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := sub.Subscribe(ctx, "picoup:test")
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := a.Publish(ctx, testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	msg, err := pubsub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}

	var received adapter.DeployCompletedEvent
	if err := json.Unmarshal([]byte(msg.Payload), &received); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if received.DeployID != "deploy-001" || received.EventType != "deploy_completed" {
		t.Errorf("received event = %+v", received)
	}
}

func TestPublish_ServerGone(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	a, err := New(Config{URL: "redis://" + addr, Retries: 0, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("Publish succeeded with the server gone")
	}
}
