package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

const (
	maxFileSizeMB      = 500
	warnFileSizeMB     = 100
	maxDurationSeconds = 7200
)

var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".flac": {},
	".ogg":  {},
	".mp4":  {},
	".webm": {},
}

// SupportedFormat reports whether the filename has a supported audio
// extension.
func SupportedFormat(filename string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// FileInfo describes a validated audio file.
type FileInfo struct {
	SizeMB          float64 `json:"size_mb"`
	DurationSeconds float64 `json:"duration_seconds"`
	Format          string  `json:"format"`
	NeedsWarning    bool    `json:"needs_warning"`
}

// Validate checks format, size and duration bounds and returns the file's
// properties. Files over 100MB are flagged with a warning but accepted.
func (s *Splitter) Validate(ctx context.Context, path string) (FileInfo, error) {
	if err := apperrors.ValidateFilePath(path); err != nil {
		return FileInfo{}, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, apperrors.FileIO("failed to access file", err)
	}
	sizeMB := float64(stat.Size()) / (1024 * 1024)
	if sizeMB > maxFileSizeMB {
		return FileInfo{}, apperrors.Validation(
			fmt.Sprintf("File size (%.1fMB) exceeds maximum allowed (%dMB)", sizeMB, maxFileSizeMB), "file_size")
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedFormat(path) {
		return FileInfo{}, apperrors.Validation(
			fmt.Sprintf("Unsupported file format: %s. Supported formats: mp3, wav, m4a, flac, ogg, mp4, webm", ext),
			"file_extension")
	}

	duration, err := s.ProbeDuration(ctx, path)
	if err != nil {
		return FileInfo{}, err
	}
	if duration < time.Second {
		return FileInfo{}, apperrors.Validation("Audio file is too short (minimum 1 second required)", "duration")
	}
	if duration.Seconds() > maxDurationSeconds {
		return FileInfo{}, apperrors.Validation(
			fmt.Sprintf("Audio file is too long (%.1f hours). Maximum 2 hours allowed.", duration.Hours()), "duration")
	}

	return FileInfo{
		SizeMB:          sizeMB,
		DurationSeconds: duration.Seconds(),
		Format:          ext,
		NeedsWarning:    sizeMB > warnFileSizeMB,
	}, nil
}

// Estimate holds rough processing-time predictions shown to the user before
// a job starts. Calibrated against typical API latency, not measured.
type Estimate struct {
	EstimatedChunks       int     `json:"estimated_chunks"`
	UploadTimeSeconds     float64 `json:"upload_time_seconds"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	TotalTimeSeconds      float64 `json:"total_time_seconds"`
}

// EstimateProcessingTime predicts job duration from file size, assuming
// roughly one megabyte per minute of speech and ten seconds per chunk call.
func EstimateProcessingTime(fileSizeMB float64, chunkMinutes int) Estimate {
	estimatedMinutes := fileSizeMB
	numChunks := int(estimatedMinutes) / chunkMinutes
	if numChunks < 1 {
		numChunks = 1
	}

	const secondsPerChunk = 10
	upload := fileSizeMB * 0.1
	processing := float64(numChunks * secondsPerChunk)
	return Estimate{
		EstimatedChunks:       numChunks,
		UploadTimeSeconds:     upload,
		ProcessingTimeSeconds: processing,
		TotalTimeSeconds:      upload + processing,
	}
}

// CleanupChunks removes chunk files and their scratch directory. Failures are
// logged by callers; cleanup is best effort but must be attempted on every
// pipeline exit path.
func CleanupChunks(chunkPaths []string, tempDir string) {
	for _, p := range chunkPaths {
		os.Remove(p)
	}
	if tempDir != "" {
		os.RemoveAll(tempDir)
	}
}
