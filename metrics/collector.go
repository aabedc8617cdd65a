// Package metrics provides per-deploy metrics collection.
//
// The Collector accumulates counters during a single deploy run. It is a
// leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so call sites never need to guard against a missing
// collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of deploy counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Staging
	FilesCopied     int64
	ScriptsCompiled int64
	CompileFailures int64

	// Upload
	FilesUploaded int64
	FilesSkipped  int64
	BytesUploaded int64

	// Protocol
	PasteFallback bool

	// Dimensions (informational, set at construction)
	DeployID string
	Device   string
}

// Collector accumulates metrics during a single deploy run.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	filesCopied     int64
	scriptsCompiled int64
	compileFailures int64

	filesUploaded int64
	filesSkipped  int64
	bytesUploaded int64

	pasteFallback bool

	deployID string
	device   string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(deployID, device string) *Collector {
	return &Collector{
		deployID: deployID,
		device:   device,
	}
}

// IncFileCopied records one file copied into the staged image.
func (c *Collector) IncFileCopied() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesCopied++
	c.mu.Unlock()
}

// IncScriptCompiled records one successful cross-compilation.
func (c *Collector) IncScriptCompiled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scriptsCompiled++
	c.mu.Unlock()
}

// IncCompileFailure records one non-fatal compiler failure.
func (c *Collector) IncCompileFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.compileFailures++
	c.mu.Unlock()
}

// AddFileUploaded records one file written to the device and its size.
func (c *Collector) AddFileUploaded(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesUploaded++
	c.bytesUploaded += bytes
	c.mu.Unlock()
}

// IncFileSkipped records one file skipped via the upload manifest.
func (c *Collector) IncFileSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesSkipped++
	c.mu.Unlock()
}

// SetPasteFallback records that the client downgraded to fallback transfer.
func (c *Collector) SetPasteFallback() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pasteFallback = true
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		FilesCopied:     c.filesCopied,
		ScriptsCompiled: c.scriptsCompiled,
		CompileFailures: c.compileFailures,
		FilesUploaded:   c.filesUploaded,
		FilesSkipped:    c.filesSkipped,
		BytesUploaded:   c.bytesUploaded,
		PasteFallback:   c.pasteFallback,
		DeployID:        c.deployID,
		Device:          c.device,
	}
}
