// Package audio validates uploaded audio files and splits them into
// overlapping, time-bounded chunks for transcription. All audio work shells
// out to ffmpeg; nothing is decoded in-process.
package audio

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

const (
	MinChunkMinutes   = 1
	MaxChunkMinutes   = 10
	MinOverlapSeconds = 0
	MaxOverlapSeconds = 60

	// Rough in-flight memory estimate per second of audio, used to refuse
	// files that would be unsafe to process.
	memoryMBPerSecond = 0.1
	memoryLimitMB     = 1000
)

// Runner executes external commands. The default shells out; tests inject a
// fake to exercise the split loop without ffmpeg installed.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Splitter slices audio files into chunk files.
type Splitter struct {
	ffmpegPath string
	cmd        Runner
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithRunner replaces the command runner.
func WithRunner(r Runner) SplitterOption {
	return func(s *Splitter) { s.cmd = r }
}

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(path string) SplitterOption {
	return func(s *Splitter) { s.ffmpegPath = path }
}

func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{ffmpegPath: "ffmpeg", cmd: execRunner{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// chunkRange is one chunk's time slice of the source audio.
type chunkRange struct {
	Start time.Duration
	End   time.Duration
}

// planChunks computes chunk boundaries. Chunk i nominally covers
// [i*L, min((i+1)*L, total)); every chunk after the first starts overlap
// earlier so the transcription service sees cross-boundary context. The
// duplicated words this produces at boundaries are expected output and are
// not deduplicated downstream.
func planChunks(total, chunkLen, overlap time.Duration) []chunkRange {
	var ranges []chunkRange
	for i := 0; time.Duration(i)*chunkLen < total; i++ {
		start := time.Duration(i) * chunkLen
		end := start + chunkLen
		if end > total {
			end = total
		}
		if i > 0 {
			start -= overlap
			if start < 0 {
				start = 0
			}
		}
		ranges = append(ranges, chunkRange{Start: start, End: end})
	}
	return ranges
}

// Split slices the audio at path into overlapping mp3 chunks inside a fresh
// temporary directory. It returns the ordered chunk paths and the directory;
// deleting the directory is the caller's responsibility. On any export
// failure the partial output is removed before the error propagates.
func (s *Splitter) Split(ctx context.Context, audioPath string, chunkMinutes, overlapSeconds int) ([]string, string, error) {
	if chunkMinutes < MinChunkMinutes || chunkMinutes > MaxChunkMinutes {
		return nil, "", apperrors.Validation("Chunk duration must be between 1-10 minutes", "chunk_minutes")
	}
	if overlapSeconds < MinOverlapSeconds || overlapSeconds > MaxOverlapSeconds {
		return nil, "", apperrors.Validation("Overlap seconds must be between 0-60", "overlap_seconds")
	}
	if err := apperrors.ValidateFilePath(audioPath); err != nil {
		return nil, "", err
	}

	total, err := s.ProbeDuration(ctx, audioPath)
	if err != nil {
		return nil, "", err
	}
	if total < time.Second {
		return nil, "", apperrors.Validation("Audio file is too short (minimum 1 second required)", "duration")
	}
	if estMB := total.Seconds() * memoryMBPerSecond; estMB > memoryLimitMB {
		return nil, "", apperrors.Memory(fmt.Sprintf(
			"Audio file may require too much memory for processing (%.1fMB estimated)", estMB))
	}

	tempDir, err := os.MkdirTemp("", "transcriber-chunks-*")
	if err != nil {
		return nil, "", apperrors.FileIO("failed to create chunk directory", err)
	}
	log.Printf("Created temporary chunk directory: %s", tempDir)

	ranges := planChunks(total, time.Duration(chunkMinutes)*time.Minute, time.Duration(overlapSeconds)*time.Second)

	var chunks []string
	for i, r := range ranges {
		// 2-digit 1-based index keeps lexical and chronological order aligned.
		chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk_%02d.mp3", i+1))
		if err := s.exportChunk(ctx, audioPath, chunkPath, r); err != nil {
			for _, partial := range chunks {
				os.Remove(partial)
			}
			os.RemoveAll(tempDir)
			return nil, "", apperrors.FileIO(fmt.Sprintf("failed to export chunk %d", i+1), err)
		}
		chunks = append(chunks, chunkPath)
	}

	log.Printf("Split %s into %d chunks (%dm each, %ds overlap)", filepath.Base(audioPath), len(chunks), chunkMinutes, overlapSeconds)
	return chunks, tempDir, nil
}

func (s *Splitter) exportChunk(ctx context.Context, src, dst string, r chunkRange) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", r.Start.Seconds()),
		"-t", fmt.Sprintf("%.3f", (r.End - r.Start).Seconds()),
		"-i", src,
		"-codec:a", "libmp3lame",
		"-q:a", "4",
		dst,
	}
	output, err := s.cmd.CombinedOutput(ctx, s.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %v\noutput: %s", err, string(output))
	}
	return nil
}

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// ProbeDuration reads the source duration from ffmpeg's file info output.
// ffmpeg exits non-zero for a null output target, so the output is parsed
// even on error.
func (s *Splitter) ProbeDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	output, err := s.cmd.CombinedOutput(ctx, s.ffmpegPath, "-i", audioPath, "-f", "null", "-")
	if err != nil && len(output) == 0 {
		return 0, apperrors.FileIO("failed to probe audio duration", err)
	}

	m := durationPattern.FindStringSubmatch(string(output))
	if m == nil {
		return 0, apperrors.FileIO(fmt.Sprintf("failed to load audio file: %s", audioPath), nil)
	}
	var h, min, sec, centi int
	fmt.Sscanf(m[1], "%d", &h)
	fmt.Sscanf(m[2], "%d", &min)
	fmt.Sscanf(m[3], "%d", &sec)
	fmt.Sscanf(m[4], "%d", &centi)
	d := time.Duration(h)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(centi)*10*time.Millisecond
	return d, nil
}

// ExpectedChunkCount returns how many chunks a file of the given duration
// produces, ignoring overlap padding.
func ExpectedChunkCount(total time.Duration, chunkMinutes int) int {
	return int(math.Ceil(total.Minutes() / float64(chunkMinutes)))
}
