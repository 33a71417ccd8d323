package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

func TestKey(t *testing.T) {
	a := Key("https://example.com/feed.xml#ep-1")
	b := Key("https://example.com/feed.xml#ep-1")
	c := Key("https://example.com/feed.xml#ep-2")

	if a != b {
		t.Errorf("Key is not stable: %q != %q", a, b)
	}
	if a == c {
		t.Error("Different episodes share a key")
	}
	if len(a) != keyLen {
		t.Errorf("Expected key length %d, got %d", keyLen, len(a))
	}
	if !ValidFileName(FileName("ep", ".mp3")) {
		t.Error("FileName output should be a valid name")
	}
}

func TestExtForContentType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"audio/mpeg", ".mp3"},
		{"audio/mpeg; charset=binary", ".mp3"},
		{"audio/flac", ".flac"},
		{"audio/x-flac", ".flac"},
		{"audio/mp4", ".m4a"},
		{"AUDIO/X-M4A", ".m4a"},
		{"", ".mp3"},
		{"application/octet-stream", ".mp3"},
	}

	for _, tt := range tests {
		got := ExtForContentType(tt.input)
		if got != tt.expected {
			t.Errorf("ExtForContentType(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestContentTypeForName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abc.mp3", "audio/mpeg"},
		{"abc.flac", "audio/flac"},
		{"abc.m4a", "audio/mp4"},
	}

	for _, tt := range tests {
		if got := ContentTypeForName(tt.input); got != tt.expected {
			t.Errorf("ContentTypeForName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidFileName(t *testing.T) {
	key := Key("ep")
	tests := []struct {
		input    string
		expected bool
	}{
		{key + ".mp3", true},
		{key + ".flac", true},
		{key + ".m4a", true},
		{key + ".wav", false},
		{key, false},
		{"../" + key + ".mp3", false},
		{strings.ToUpper(key) + ".mp3", false},
		{key[:10] + ".mp3", false},
		{".mp3", false},
	}

	for _, tt := range tests {
		if got := ValidFileName(tt.input); got != tt.expected {
			t.Errorf("ValidFileName(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestSave_WritesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := s.Save("pod:ep1", "audio/mpeg", strings.NewReader("first"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != FileName("pod:ep1", ".mp3") {
		t.Errorf("Unexpected file name %s", filepath.Base(path))
	}

	// Overwrite keeps a single file per episode
	path2, err := s.Save("pod:ep1", "audio/mpeg", strings.NewReader("second"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path2 != path {
		t.Errorf("Expected same path, got %s and %s", path, path2)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("Expected overwritten content, got %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected exactly one file in store, got %d", len(entries))
	}
}

func TestSave_FailedCopyLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir}

	_, err := s.Save("ep", "audio/mpeg", iotest.ErrReader(errors.New("connection reset")))
	if err == nil {
		t.Fatal("Expected error from failing reader")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no files after failed save, got %d", len(entries))
	}
}

func TestPathAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir}

	if _, err := s.Path("../etc/passwd"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}

	saved, _ := s.Save("ep", "audio/flac", strings.NewReader("fLaC"))
	resolved, err := s.Path(filepath.Base(saved))
	if err != nil || resolved != saved {
		t.Errorf("Path() = %q, %v; want %q", resolved, err, saved)
	}

	if err := s.Remove(saved); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
	if err := s.Remove(saved); err != nil {
		t.Errorf("Removing a missing file should not fail: %v", err)
	}
	if err := s.Remove(""); err != nil {
		t.Errorf("Removing empty path should not fail: %v", err)
	}
}
