// Package manifest tracks content hashes of files previously uploaded to a
// device, so unchanged files can be skipped on incremental deploys.
//
// The manifest is advisory only: it is stored host-side, keyed by the
// serial device path, and a cleaned or re-flashed device invalidates it.
// Deploys with --force or with filesystem cleaning enabled reset it.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is the manifest file format version.
// Manifests with a different version are discarded, not migrated.
const FormatVersion = 1

// Manifest records what the device filesystem is believed to contain.
type Manifest struct {
	Version int               `msgpack:"version"`
	Device  string            `msgpack:"device"`
	Files   map[string]uint64 `msgpack:"files"`
}

// New creates an empty manifest for the given device.
func New(device string) *Manifest {
	return &Manifest{
		Version: FormatVersion,
		Device:  device,
		Files:   make(map[string]uint64),
	}
}

// Load reads a manifest from path. A missing file, a format version
// mismatch, or a different target device all yield a fresh manifest rather
// than an error: the worst case of a stale manifest is a redundant upload.
func Load(path, device string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(device), nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		// Corrupt manifests are recoverable: start over.
		return New(device), nil
	}
	if m.Version != FormatVersion || m.Device != device {
		return New(device), nil
	}
	if m.Files == nil {
		m.Files = make(map[string]uint64)
	}
	return &m, nil
}

// Save writes the manifest atomically (temp file + rename).
func (m *Manifest) Save(path string) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace manifest %s: %w", path, err)
	}
	return nil
}

// Unchanged reports whether rel was previously uploaded with this hash.
func (m *Manifest) Unchanged(rel string, sum uint64) bool {
	prev, ok := m.Files[rel]
	return ok && prev == sum
}

// Record notes that rel now exists on the device with this content hash.
func (m *Manifest) Record(rel string, sum uint64) {
	m.Files[rel] = sum
}

// Reset forgets everything, e.g. after the device filesystem was cleaned.
func (m *Manifest) Reset() {
	m.Files = make(map[string]uint64)
}

// HashBytes returns the content hash used for manifest entries.
func HashBytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}
