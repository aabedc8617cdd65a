package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pithecene-io/picoup/devfs"
	"github.com/pithecene-io/picoup/iox"
	"github.com/pithecene-io/picoup/manifest"
	"github.com/pithecene-io/picoup/types"
)

// upload walks the staged image and writes every regular file onto the
// device, then syncs the device filesystem and performs the requested
// reset. A checked execution failure aborts the remaining uploads.
func (d *Deployer) upload(ctx context.Context, imageDir string) error {
	client, err := d.config.ClientFactory(ctx)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer iox.DiscardClose(client)

	var man *manifest.Manifest
	if d.config.ManifestPath != "" {
		man, err = manifest.Load(d.config.ManifestPath, d.config.Meta.Device)
		if err != nil {
			// A broken manifest only costs redundant uploads.
			d.logger.Warn("upload manifest unavailable", map[string]any{"error": err.Error()})
			man = nil
		}
	}

	if d.config.CleanFS {
		if _, err := client.ExecChecked(ctx, devfs.CleanFS()); err != nil {
			return fmt.Errorf("clean device filesystem: %w", err)
		}
		if man != nil {
			man.Reset()
		}
		d.logger.Info("device filesystem cleaned", nil)
	}

	err = filepath.WalkDir(imageDir, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(imageDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read staged file %s: %w", rel, err)
		}

		sum := manifest.HashBytes(data)
		if man != nil && !d.config.Force && man.Unchanged(rel, sum) {
			d.config.Collector.IncFileSkipped()
			d.logger.Debug("unchanged on device, skipped", map[string]any{"path": rel})
			return nil
		}

		script, err := devfs.WriteFile(rel, classifyContent(rel, data))
		if err != nil {
			return err
		}
		if _, err := client.ExecChecked(ctx, script); err != nil {
			return fmt.Errorf("write %s to device: %w", rel, err)
		}

		if man != nil {
			man.Record(rel, sum)
		}
		d.config.Collector.AddFileUploaded(int64(len(data)))
		d.logger.Debug("uploaded file", map[string]any{"path": rel, "bytes": len(data)})
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := client.ExecChecked(ctx, devfs.SyncFS()); err != nil {
		return fmt.Errorf("sync device filesystem: %w", err)
	}

	if rp, ok := client.(interface{ RawPasteEnabled() bool }); ok && !rp.RawPasteEnabled() {
		d.config.Collector.SetPasteFallback()
	}

	switch d.config.Reset {
	case types.ResetSoft:
		if err := client.SoftReset(); err != nil {
			return fmt.Errorf("soft reset: %w", err)
		}
		d.logger.Info("soft reset issued", nil)
	case types.ResetHard:
		if err := client.HardReset(ctx); err != nil {
			return fmt.Errorf("hard reset: %w", err)
		}
		d.logger.Info("hard reset issued", nil)
	}

	if man != nil {
		if err := man.Save(d.config.ManifestPath); err != nil {
			d.logger.Warn("failed to save upload manifest", map[string]any{"error": err.Error()})
		}
	}
	return nil
}

// textExtensions are written in text mode on the device; everything else is
// written as raw bytes. The kind is decided here, before the codec runs.
var textExtensions = map[string]struct{}{
	".py": {}, ".txt": {}, ".json": {}, ".cfg": {}, ".ini": {},
	".csv": {}, ".md": {}, ".html": {}, ".css": {}, ".js": {},
	".yaml": {}, ".yml": {}, ".toml": {},
}

func classifyContent(rel string, data []byte) types.Content {
	ext := strings.ToLower(path.Ext(rel))
	if _, ok := textExtensions[ext]; ok && utf8.Valid(data) {
		return types.TextContent(string(data))
	}
	return types.BinaryContent(data)
}
