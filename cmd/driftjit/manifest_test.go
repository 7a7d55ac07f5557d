package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "drift.toml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadProjectManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\nname = \"demo\"\n\n[jit]\nnogil = true\n")

	m, found, err := loadProjectManifest(dir)
	if err != nil {
		t.Fatalf("loadProjectManifest: %v", err)
	}
	if !found {
		t.Fatal("manifest not found")
	}
	if m.Name != "demo" {
		t.Errorf("Name = %q, want %q", m.Name, "demo")
	}
	if !m.JIT.NoGIL {
		t.Error("nogil flag not loaded")
	}
	if m.Root != dir {
		t.Errorf("Root = %q, want %q", m.Root, dir)
	}
}

func TestLoadProjectManifest_WalksUp(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\nname = \"demo\"\n")
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, found, err := loadProjectManifest(nested)
	if err != nil {
		t.Fatalf("loadProjectManifest: %v", err)
	}
	if !found {
		t.Fatal("manifest not found from nested dir")
	}
	if m.Root != dir {
		t.Errorf("Root = %q, want %q", m.Root, dir)
	}
}

func TestLoadProjectManifest_MissingName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\n")

	if _, _, err := loadProjectManifest(dir); err == nil {
		t.Fatal("expected error for missing [package].name")
	}
}

func TestLoadProjectManifest_UnknownJITKey(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\nname = \"demo\"\n\n[jit]\nturbo = true\n")

	if _, _, err := loadProjectManifest(dir); err == nil {
		t.Fatal("expected error for unknown [jit] key")
	}
}

func TestReadUIMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uiMode
		ok   bool
	}{
		{"", uiModeAuto, true},
		{"auto", uiModeAuto, true},
		{"On", uiModeOn, true},
		{"OFF", uiModeOff, true},
		{"fancy", "", false},
	} {
		got, err := readUIMode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("readUIMode(%q) = (%q, %v), want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("readUIMode(%q) accepted", tc.in)
		}
	}
}
