package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pithecene-io/picoup/iox"
)

// stage builds the image: copies every discovered file into imageDir at its
// relative path, then cross-compiles every discovered script in place.
//
// A missing or unreadable source file is fatal for the run. A compiler
// failure is not: the uncompiled source stays in the image and the run
// continues.
func (d *Deployer) stage(ctx context.Context, imageDir string) error {
	files, err := d.config.Finder.FindFiles(d.config.Root)
	if err != nil {
		return fmt.Errorf("discover deploy files: %w", err)
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(d.config.Root, filepath.FromSlash(rel))
		dst := filepath.Join(imageDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy %s into image: %w", rel, err)
		}
		d.config.Collector.IncFileCopied()
		d.logger.Debug("copied file", map[string]any{"path": rel})
	}
	d.logger.Info("image staged", map[string]any{
		"files_copied": len(files),
		"image_dir":    imageDir,
	})

	if d.config.Compiler == nil {
		return nil
	}

	scripts, err := d.config.Finder.FindScripts(d.config.Root)
	if err != nil {
		return fmt.Errorf("discover compile scripts: %w", err)
	}

	compiled := 0
	failed := 0
	for _, rel := range scripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		staged := filepath.Join(imageDir, filepath.FromSlash(rel))
		if _, err := os.Stat(staged); err != nil {
			// Script was not part of the copied set; nothing to compile.
			d.logger.Debug("script not in image, skipping compile", map[string]any{"path": rel})
			continue
		}

		ok, diagnostic := d.config.Compiler.Compile(ctx, staged)
		if !ok {
			failed++
			d.config.Collector.IncCompileFailure()
			d.logger.Warn("compile failed, keeping source", map[string]any{
				"path":       rel,
				"diagnostic": diagnostic,
			})
			continue
		}

		compiled++
		d.config.Collector.IncScriptCompiled()
		if !d.config.KeepSource {
			if err := os.Remove(staged); err != nil {
				return fmt.Errorf("remove compiled source %s: %w", rel, err)
			}
		}
		d.logger.Debug("compiled script", map[string]any{"path": rel})
	}
	d.logger.Info("scripts compiled", map[string]any{
		"compiled": compiled,
		"failed":   failed,
	})
	return nil
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
