package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManifest_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest")

	m := New("/dev/ttyACM0")
	m.Record("main.py", HashBytes([]byte("print('hi')")))
	m.Record("lib/util.mpy", HashBytes([]byte{0x4d, 0x05}))
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Files) != 2 {
		t.Fatalf("Files = %d entries, want 2", len(loaded.Files))
	}
	if !loaded.Unchanged("main.py", HashBytes([]byte("print('hi')"))) {
		t.Error("Unchanged = false for a recorded file")
	}
	if loaded.Unchanged("main.py", HashBytes([]byte("print('changed')"))) {
		t.Error("Unchanged = true after content changed")
	}
	if loaded.Unchanged("boot.py", 0) {
		t.Error("Unchanged = true for a file never recorded")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nope"), "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Files) != 0 {
		t.Errorf("Files = %d entries, want empty manifest", len(m.Files))
	}
	if m.Device != "/dev/ttyACM0" {
		t.Errorf("Device = %q, want /dev/ttyACM0", m.Device)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest")
	if err := os.WriteFile(path, []byte("not msgpack at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path, "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Files) != 0 {
		t.Errorf("Files = %d entries, want fresh manifest for corrupt file", len(m.Files))
	}
}

func TestLoad_DeviceMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest")
	m := New("/dev/ttyACM0")
	m.Record("main.py", 42)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Files) != 0 {
		t.Error("manifest for another device was not discarded")
	}
}

func TestLoad_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest")
	m := New("/dev/ttyACM0")
	m.Version = FormatVersion + 1
	m.Record("main.py", 42)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Files) != 0 {
		t.Error("manifest with a future format version was not discarded")
	}
}

func TestManifest_Reset(t *testing.T) {
	m := New("/dev/ttyACM0")
	m.Record("main.py", 42)
	m.Reset()
	if m.Unchanged("main.py", 42) {
		t.Error("Unchanged = true after Reset")
	}
}

func TestSave_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest")

	m := New("/dev/ttyACM0")
	if err := m.Save(path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	m.Record("main.py", 42)
	if err := m.Save(path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	// No temp files may survive.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (temp file left behind?)", len(entries))
	}

	loaded, err := Load(path, "/dev/ttyACM0")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Unchanged("main.py", 42) {
		t.Error("second Save did not replace the manifest contents")
	}
}

func TestHashBytes_Distinguishes(t *testing.T) {
	if HashBytes([]byte("a")) == HashBytes([]byte("b")) {
		t.Error("HashBytes collides on trivially different inputs")
	}
	if HashBytes([]byte("a")) != HashBytes([]byte("a")) {
		t.Error("HashBytes is not deterministic")
	}
}
