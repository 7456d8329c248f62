package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	tempDir := t.TempDir()

	oldFile := filepath.Join(tempDir, "old.mp3")
	freshFile := filepath.Join(tempDir, "fresh.mp3")
	for _, p := range []string{oldFile, freshFile} {
		if err := os.WriteFile(p, []byte("audio"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(tempDir, 60, 24)
	s.Sweep()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old file should be removed")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Error("fresh file should survive")
	}
}

func TestSweepRemovesOrphanedChunkDirs(t *testing.T) {
	dir, err := os.MkdirTemp("", "transcriber-chunks-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := os.WriteFile(filepath.Join(dir, "chunk_01.mp3"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(dir, past, past); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(t.TempDir(), 60, 24)
	s.Sweep()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("orphaned chunk dir should be removed")
	}
}

func TestEnsureTempDirExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "temp")
	if err := EnsureTempDirExists(dir); err != nil {
		t.Fatalf("EnsureTempDirExists: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Error("temp dir not created")
	}
}
