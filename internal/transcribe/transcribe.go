// Package transcribe turns one audio file into a single timestamped
// transcript document by splitting it into chunks, transcribing each chunk
// through the speech-to-text service, and merging the results.
package transcribe

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mshattori/transcriber-web-app/internal/audio"
	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/openai"
)

// maxAttempts bounds retries per chunk: the initial call plus two retries.
const maxAttempts = 3

// SpeechClient is the transcription side of the OpenAI client.
type SpeechClient interface {
	Transcribe(ctx context.Context, req openai.TranscriptionRequest) (*openai.TranscriptionResponse, error)
}

// ProgressFunc receives a monotonically non-decreasing fraction in [0,1] and
// a human-readable status message.
type ProgressFunc func(fraction float64, message string)

// ChunkResult is the outcome of transcribing one chunk. StartTime and
// EndTime are nominal (chunk index times chunk duration), not measured from
// the audio; with non-zero overlap they drift from true position. Confidence
// is always nil because the service does not report one.
type ChunkResult struct {
	ChunkID    string                  `json:"chunk_id"`
	StartTime  float64                 `json:"start_time"`
	EndTime    float64                 `json:"end_time"`
	Text       string                  `json:"text"`
	Confidence *float64                `json:"confidence"`
	Segments   []openai.VerboseSegment `json:"-"`
	Language   string                  `json:"-"`
}

// Result is the complete transcription of one audio file. Text is the merged
// timestamped document. Immutable once produced.
type Result struct {
	Text           string        `json:"text"`
	Chunks         []ChunkResult `json:"chunks"`
	TotalDuration  float64       `json:"total_duration"`
	WordCount      int           `json:"word_count"`
	ProcessingTime float64       `json:"processing_time"`
}

// Options configure one transcription job. The API key lives on the
// Transcriber, not here.
type Options struct {
	Model             string
	Language          string // "auto" for detection
	ChunkMinutes      int
	OverlapSeconds    int
	Temperature       float64
	IncludeTimestamps bool
}

// Transcriber runs chunked transcription jobs.
type Transcriber struct {
	client SpeechClient
	apiKey string
	sleep  func(time.Duration)
}

// New creates a Transcriber. apiKey is validated before each network call.
func New(client SpeechClient, apiKey string) *Transcriber {
	return &Transcriber{client: client, apiKey: apiKey, sleep: time.Sleep}
}

// TranscribeChunk sends one chunk to the service with bounded retries.
// Authentication (401), quota (402) and forbidden (403) failures propagate
// immediately; everything else retries with exponential backoff (1s, 2s).
func (t *Transcriber) TranscribeChunk(ctx context.Context, chunkPath string, opts Options) (*openai.TranscriptionResponse, error) {
	if err := apperrors.ValidateAPIKey(t.apiKey); err != nil {
		return nil, err
	}
	if err := apperrors.ValidateFilePath(chunkPath); err != nil {
		return nil, err
	}

	format := openai.FormatText
	if opts.IncludeTimestamps {
		format = openai.FormatVerboseJSON
	}
	req := openai.TranscriptionRequest{
		FilePath:       chunkPath,
		Model:          opts.Model,
		Language:       opts.Language,
		Temperature:    opts.Temperature,
		ResponseFormat: format,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := t.client.Transcribe(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !apperrors.Retryable(err) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		log.Printf("Chunk transcription attempt %d/%d failed, retrying in %s: %v", attempt+1, maxAttempts, wait, err)
		t.sleep(wait)
	}
	return nil, lastErr
}

// Chunked transcribes a large audio file: split into overlapping chunks,
// transcribe each in order, merge, clean up. The scratch chunk directory is
// removed on every exit path.
func (t *Transcriber) Chunked(ctx context.Context, splitter *audio.Splitter, audioPath string, opts Options, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	report := func(p float64, msg string) {
		if progress != nil {
			progress(p, msg)
		}
	}

	report(0.05, "Splitting audio into chunks...")
	chunks, tempDir, err := splitter.Split(ctx, audioPath, opts.ChunkMinutes, opts.OverlapSeconds)
	if err != nil {
		return nil, err
	}
	defer audio.CleanupChunks(chunks, tempDir)

	chunkSeconds := float64(opts.ChunkMinutes * 60)
	var results []ChunkResult
	for i, chunkPath := range chunks {
		report(0.1+float64(i)/float64(len(chunks))*0.8, fmt.Sprintf("Processing chunk %d/%d", i+1, len(chunks)))

		resp, err := t.TranscribeChunk(ctx, chunkPath, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to transcribe chunk %d: %w", i+1, err)
		}

		results = append(results, ChunkResult{
			ChunkID:   fmt.Sprintf("chunk_%02d", i+1),
			StartTime: float64(i) * chunkSeconds,
			EndTime:   float64(i+1) * chunkSeconds,
			Text:      resp.Text,
			Segments:  resp.Segments,
			Language:  resp.Language,
		})
	}

	report(0.9, "Merging transcription results...")
	merged := Merge(results, opts.IncludeTimestamps, opts.ChunkMinutes)

	report(1.0, "Transcription completed!")
	return &Result{
		Text:           merged,
		Chunks:         results,
		TotalDuration:  float64(len(results)) * chunkSeconds,
		WordCount:      len(strings.Fields(merged)),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}
