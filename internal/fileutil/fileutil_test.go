package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestStageVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "capture.jpg")
	dst := filepath.Join(dir, "staged.jpg")

	content := []byte("pretend jpeg bytes")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := StageVerified(src, dst); err != nil {
		t.Fatalf("StageVerified: %v", err)
	}
	staged, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read staged: %v", err)
	}
	if !bytes.Equal(staged, content) {
		t.Fatal("staged bytes differ from source")
	}
}

func TestStageVerifiedOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "capture.jpg")
	dst := filepath.Join(dir, "staged.jpg")

	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old contents that are longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := StageVerified(src, dst); err != nil {
		t.Fatalf("StageVerified: %v", err)
	}
	staged, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read staged: %v", err)
	}
	if string(staged) != "new" {
		t.Fatalf("staged = %q, want %q", staged, "new")
	}
}

func TestStageVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := StageVerified(filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "out.jpg")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
