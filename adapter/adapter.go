// Package adapter defines the deploy notification boundary.
//
// Adapters publish deploy completion events to downstream systems (CI
// pipelines, fleet dashboards). The CLI owns adapter lifecycle; users
// provide configuration only.
package adapter

import "context"

// DeployCompletedEvent is the payload published when a deploy run finishes.
type DeployCompletedEvent struct {
	Version       string `json:"version"`
	EventType     string `json:"event_type"` // always "deploy_completed"
	DeployID      string `json:"deploy_id"`
	Device        string `json:"device"`
	Project       string `json:"project,omitempty"`
	Outcome       string `json:"outcome"` // success or failed
	FilesUploaded int64  `json:"files_uploaded"`
	BytesUploaded int64  `json:"bytes_uploaded"`
	DurationMs    int64  `json:"duration_ms"`
	Timestamp     string `json:"timestamp"` // ISO 8601
	Error         string `json:"error,omitempty"`
}

// Adapter publishes deploy completion events to a downstream system.
// Implementations must be safe for single-use per deploy run.
type Adapter interface {
	// Publish sends a deploy completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *DeployCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
