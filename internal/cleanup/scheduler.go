// Package cleanup periodically removes stale upload files and orphaned chunk
// scratch directories left behind by crashes.
package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scheduler sweeps the upload temp directory and the system temp directory
// on an interval.
type Scheduler struct {
	tempDir         string
	intervalMinutes int
	maxAgeHours     int
	stopChan        chan struct{}
}

func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int) *Scheduler {
	return &Scheduler{
		tempDir:         tempDir,
		intervalMinutes: intervalMinutes,
		maxAgeHours:     maxAgeHours,
		stopChan:        make(chan struct{}),
	}
}

// Start runs one sweep immediately, then on every tick until Stop.
func (s *Scheduler) Start() {
	log.Println("Running initial temp file cleanup...")
	s.Sweep()

	ticker := time.NewTicker(time.Duration(s.intervalMinutes) * time.Minute)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Cleanup scheduler started (interval: %dm, max age: %dh)",
		s.intervalMinutes, s.maxAgeHours)
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
	log.Println("Cleanup scheduler stopped")
}

// Sweep removes stale uploads and orphaned chunk directories. Exported so
// callers can force a sweep.
func (s *Scheduler) Sweep() {
	maxAge := time.Duration(s.maxAgeHours) * time.Hour
	s.cleanOldUploads(maxAge)
	s.cleanOrphanedChunkDirs(maxAge)
}

func (s *Scheduler) cleanOldUploads(maxAge time.Duration) {
	now := time.Now()
	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		age := now.Sub(info.ModTime())
		if age > maxAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to delete old file %s: %v", path, err)
			} else {
				deletedCount++
				deletedSize += size
				log.Printf("Deleted old temp file: %s (age: %s, size: %dKB)",
					filepath.Base(path), age.Round(time.Hour), size/1024)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("Error during upload cleanup: %v", err)
	}
	if deletedCount > 0 {
		log.Printf("Upload cleanup: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
}

// cleanOrphanedChunkDirs removes chunk scratch directories that outlived
// their job. The pipeline deletes these on every exit path; anything old
// enough to show up here survived a crash.
func (s *Scheduler) cleanOrphanedChunkDirs(maxAge time.Duration) {
	now := time.Now()
	dirs, err := filepath.Glob(filepath.Join(os.TempDir(), "transcriber-chunks-*"))
	if err != nil {
		return
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Failed to delete orphaned chunk dir %s: %v", dir, err)
		} else {
			log.Printf("Deleted orphaned chunk dir: %s", filepath.Base(dir))
		}
	}
}

// EnsureTempDirExists creates the temp directory if it doesn't exist.
func EnsureTempDirExists(tempDir string) error {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	log.Printf("Temp directory ready: %s", tempDir)
	return nil
}
