package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")

	if err := AtomicWriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("AtomicWriteFile() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %o, want 600", info.Mode().Perm())
	}
	assertNoTempFiles(t, dir)
}

func TestAtomicWriteFile_OverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := AtomicWriteFile(path, []byte("new"), 0o600); err != nil {
		t.Fatalf("AtomicWriteFile() error = %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestAtomicWriteFile_DirectoryNotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "file")
	if err := AtomicWriteFile(path, []byte("x"), 0o600); err == nil {
		t.Error("expected error when parent directory is missing")
	}
}

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	in := map[string]any{"timestamp": 1700000000000, "chat": "Alice"}

	if err := AtomicWriteJSON(path, in); err != nil {
		t.Fatalf("AtomicWriteJSON() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("expected trailing newline, got %q", data)
	}
	if !strings.Contains(string(data), "\n  \"chat\"") {
		t.Errorf("expected 2-space indentation, got %q", data)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out["chat"] != "Alice" {
		t.Errorf("chat = %v", out["chat"])
	}
}

func TestAtomicWriteJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.jsonl")
	lines := []any{
		map[string]any{"user_name": "You", "character_name": "Alice"},
		map[string]any{"name": "Alice", "mes": "<b>hi</b> & welcome"},
		map[string]any{"name": "You", "mes": "hello"},
	}

	if err := AtomicWriteJSONL(path, lines); err != nil {
		t.Fatalf("AtomicWriteJSONL() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != 3 {
		t.Errorf("line count = %d, want 3", n)
	}
	if !strings.Contains(string(data), "<b>hi</b> & welcome") {
		t.Errorf("HTML should not be escaped in chat files: %q", data)
	}

	got, err := ReadJSONL(path, 0)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(got) != 3 || got[2]["mes"] != "hello" {
		t.Errorf("ReadJSONL() = %v", got)
	}
}

func TestAtomicWriteJSON_Unmarshalable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")

	if err := AtomicWriteJSON(path, map[string]any{"fn": func() {}}); err == nil {
		t.Error("expected marshal error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be created on marshal failure")
	}
	assertNoTempFiles(t, dir)
}

func TestAtomicWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := map[string]any{"enabled": false, "max_backups": 3}

	if err := AtomicWriteYAML(path, in); err != nil {
		t.Fatalf("AtomicWriteYAML() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if out["enabled"] != false || out["max_backups"] != 3 {
		t.Errorf("round trip = %v", out)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("expected trailing newline")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".chatbackup-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
