package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "out.yaml")

	if err := AtomicWrite(path, []byte("a: 1\n"), 0600); err != nil {
		t.Fatalf("atomic write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "a: 1\n" {
		t.Errorf("content = %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o, want 0600", info.Mode().Perm())
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestAtomicWriteOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := AtomicWrite(path, []byte("first"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("second"), 0600); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content = %q", data)
	}
}

func TestBackupRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")

	for i, content := range []string{"v1", "v2", "v3", "v4", "v5"} {
		if err := BackupAndWrite(path, []byte(content), 3); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	read := func(p string) string {
		t.Helper()
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		return string(data)
	}

	if got := read(path); got != "v5" {
		t.Errorf("current = %q", got)
	}
	if got := read(path + ".bak"); got != "v4" {
		t.Errorf(".bak = %q", got)
	}
	if got := read(path + ".bak.1"); got != "v3" {
		t.Errorf(".bak.1 = %q", got)
	}
	if got := read(path + ".bak.2"); got != "v2" {
		t.Errorf(".bak.2 = %q", got)
	}
	// v1's backup was rotated off the end.
	if _, err := os.Stat(path + ".bak.3"); !os.IsNotExist(err) {
		t.Error(".bak.3 should not exist with maxBackups=3")
	}
}

func TestBackupAndWriteFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := BackupAndWrite(path, []byte("v1"), 3); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Error("no backup expected on first write")
	}
}
