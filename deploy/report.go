package deploy

import (
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/picoup/metrics"
	"github.com/pithecene-io/picoup/types"
)

// Result represents the outcome of a deploy run.
type Result struct {
	// Meta is the deploy identity.
	Meta *types.DeployMeta
	// Duration is the total run duration.
	Duration time.Duration
	// Stats holds the deploy counters.
	Stats metrics.Snapshot
}

// Summary renders a one-screen human summary for the CLI.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Deploy %s -> %s\n", r.Meta.DeployID, r.Meta.Device)
	fmt.Fprintf(&b, "  Files copied:     %d\n", r.Stats.FilesCopied)
	fmt.Fprintf(&b, "  Scripts compiled: %d", r.Stats.ScriptsCompiled)
	if r.Stats.CompileFailures > 0 {
		fmt.Fprintf(&b, " (%d failed, sources kept)", r.Stats.CompileFailures)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  Files uploaded:   %d (%d bytes)\n", r.Stats.FilesUploaded, r.Stats.BytesUploaded)
	if r.Stats.FilesSkipped > 0 {
		fmt.Fprintf(&b, "  Files skipped:    %d (unchanged)\n", r.Stats.FilesSkipped)
	}
	if r.Stats.PasteFallback {
		b.WriteString("  Transfer:         fallback (device lacks raw paste)\n")
	}
	fmt.Fprintf(&b, "  Duration:         %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}
