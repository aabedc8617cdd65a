package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pithecene-io/picoup/adapter"
)

func testEvent() *adapter.DeployCompletedEvent {
	return &adapter.DeployCompletedEvent{
		Version:       "0.3.0",
		EventType:     "deploy_completed",
		DeployID:      "deploy-001",
		Device:        "/dev/ttyACM0",
		Project:       "weather-station",
		Outcome:       "success",
		FilesUploaded: 3,
		BytesUploaded: 2048,
		DurationMs:    1500,
		Timestamp:     "2026-08-31T12:00:00Z",
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New succeeded without a URL")
	}
}

func TestPublish_Success(t *testing.T) {
	var received adapter.DeployCompletedEvent
	var contentType string
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, err := New(Config{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if auth != "Bearer token" {
		t.Errorf("Authorization = %q, want Bearer token", auth)
	}
	if received.DeployID != "deploy-001" || received.Outcome != "success" {
		t.Errorf("received event = %+v", received)
	}
	if received.EventType != "deploy_completed" {
		t.Errorf("EventType = %q, want deploy_completed", received.EventType)
	}
}

func TestPublish_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, err := New(Config{URL: server.URL, Retries: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish failed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestPublish_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	a, err := New(Config{URL: server.URL, Retries: 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	err = a.Publish(context.Background(), testEvent())
	if err == nil {
		t.Fatal("Publish succeeded on 403")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusForbidden {
		t.Errorf("error = %v, want StatusError 403", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retries on 4xx)", calls.Load())
	}
}

func TestPublish_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	a, err := New(Config{URL: server.URL, Retries: 0})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err == nil {
		t.Fatal("Publish succeeded, want exhausted-attempts error")
	}
}

func TestPublish_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := New(Config{URL: "http://127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("Publish succeeded with a cancelled context")
	}
}
