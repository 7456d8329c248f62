// Package pipeline orchestrates a transcription job from uploaded audio to
// persisted artifacts: validate, split, transcribe, merge, optionally
// translate and interleave, then store.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mshattori/transcriber-web-app/internal/audio"
	"github.com/mshattori/transcriber-web-app/internal/display"
	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/storage"
	"github.com/mshattori/transcriber-web-app/internal/transcribe"
	"github.com/mshattori/transcriber-web-app/internal/translate"
)

// Stage names a phase of the job. Stages advance strictly forward.
type Stage string

const (
	StageValidating     Stage = "validating"
	StageSegmenting     Stage = "segmenting"
	StageTranscribing   Stage = "transcribing"
	StageMerging        Stage = "merging"
	StageTranslating    Stage = "translating"
	StageReconstructing Stage = "reconstructing"
	StageFormatting     Stage = "formatting"
	StagePersisting     Stage = "persisting"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// Progress is one status update during a run.
type Progress struct {
	Stage    Stage   `json:"stage"`
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
}

type ProgressFunc func(Progress)

// Settings is the validated per-job configuration. Validate must pass before
// the job is enqueued; the pipeline revalidates defensively at Run.
type Settings struct {
	APIKey             string  `json:"-"`
	AudioModel         string  `json:"audio_model"`
	LanguageModel      string  `json:"language_model"`
	Language           string  `json:"language"`
	TargetLanguage     string  `json:"target_language"`
	ChunkMinutes       int     `json:"chunk_minutes"`
	OverlapSeconds     int     `json:"overlap_seconds"`
	TranslationEnabled bool    `json:"translation_enabled"`
	Temperature        float64 `json:"temperature"`
	TranslationTemp    float64 `json:"translation_temperature"`
	IncludeTimestamps  bool    `json:"include_timestamps"`
}

// Validate checks every field once, at the boundary.
func (s *Settings) Validate() error {
	if err := apperrors.ValidateAPIKey(s.APIKey); err != nil {
		return err
	}
	if s.AudioModel == "" {
		return apperrors.Validation("audio model is required", "audio_model")
	}
	if s.ChunkMinutes < audio.MinChunkMinutes || s.ChunkMinutes > audio.MaxChunkMinutes {
		return apperrors.Validation(
			fmt.Sprintf("chunk length must be %d to %d minutes", audio.MinChunkMinutes, audio.MaxChunkMinutes),
			"chunk_minutes")
	}
	if s.OverlapSeconds < audio.MinOverlapSeconds || s.OverlapSeconds > audio.MaxOverlapSeconds {
		return apperrors.Validation(
			fmt.Sprintf("overlap must be %d to %d seconds", audio.MinOverlapSeconds, audio.MaxOverlapSeconds),
			"overlap_seconds")
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return apperrors.Validation("temperature must be between 0 and 1", "temperature")
	}
	if s.TranslationEnabled {
		if s.TargetLanguage == "" {
			return apperrors.Validation("target language is required when translation is enabled", "target_language")
		}
		if s.LanguageModel == "" {
			return apperrors.Validation("language model is required when translation is enabled", "language_model")
		}
	}
	return nil
}

// Job is one unit of work for the pipeline.
type Job struct {
	ID        string
	AudioPath string
	Filename  string
	Settings  Settings
}

// Outcome is everything a completed run produced.
type Outcome struct {
	Transcript          string
	Translated          string
	Integrated          string
	JobDir              string
	Metadata            storage.JobMetadata
	TranslationFellBack bool
	GDriveURL           string
}

// DriveUploader mirrors job artifacts to remote storage. nil disables it.
type DriveUploader interface {
	UploadJobDir(jobID, jobDir string) (string, error)
}

// Deps are the collaborators a Pipeline needs. Speech and Chat are
// interfaces so tests can run without the network.
type Deps struct {
	Splitter     *audio.Splitter
	Speech       transcribe.SpeechClient
	Chat         translate.ChatClient
	Formatter    *display.Formatter
	Store        *storage.LocalStorage
	History      *storage.HistoryDB
	Drive        DriveUploader
	Logger       *log.Logger
	LanguageCode func(name string) string
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Formatter == nil {
		deps.Formatter = display.New()
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.LanguageCode == nil {
		deps.LanguageCode = func(name string) string { return strings.ToLower(name) }
	}
	return &Pipeline{deps: deps}
}

// Run executes one job. Translation and display failures are recovered: the
// job still succeeds with a degraded artifact. Everything else fails the job.
func (p *Pipeline) Run(ctx context.Context, job Job, progress ProgressFunc) (*Outcome, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	report := newMonotonic(progress)
	started := time.Now()

	report(StageValidating, 0.02, "Validating input")
	if err := job.Settings.Validate(); err != nil {
		return nil, err
	}
	info, err := p.deps.Splitter.Validate(ctx, job.AudioPath)
	if err != nil {
		return nil, err
	}
	if info.NeedsWarning {
		p.deps.Logger.Printf("job %s: large file (%.0f MB), processing may be slow", job.ID, info.SizeMB)
	}

	checksum, err := storage.Checksum(job.AudioPath)
	if err != nil {
		return nil, err
	}

	// Split, per-chunk transcription and merge. Chunk cleanup happens inside
	// regardless of outcome.
	transcriber := transcribe.New(p.deps.Speech, job.Settings.APIKey)
	tOpts := transcribe.Options{
		Model:             job.Settings.AudioModel,
		Language:          job.Settings.Language,
		ChunkMinutes:      job.Settings.ChunkMinutes,
		OverlapSeconds:    job.Settings.OverlapSeconds,
		Temperature:       job.Settings.Temperature,
		IncludeTimestamps: job.Settings.IncludeTimestamps,
	}
	tResult, err := transcriber.Chunked(ctx, p.deps.Splitter, job.AudioPath, tOpts,
		func(fraction float64, message string) {
			stage := StageTranscribing
			switch {
			case fraction < 0.1:
				stage = StageSegmenting
			case fraction >= 0.9:
				stage = StageMerging
			}
			report(stage, 0.05+fraction*0.60, message)
		})
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Transcript: tResult.Text}

	if job.Settings.TranslationEnabled && strings.TrimSpace(tResult.Text) != "" {
		translated, fellBack := p.translateTranscript(ctx, job, tResult.Text, report)
		outcome.Translated = translated
		outcome.TranslationFellBack = fellBack

		// The integrated view is built even when translation fell back, so
		// the fallback notice is preserved alongside the transcript.
		report(StageFormatting, 0.88, "Building integrated view")
		outcome.Integrated = p.formatIntegrated(job.ID, tResult.Text, translated)
	}

	report(StagePersisting, 0.92, "Saving results")
	meta := storage.JobMetadata{
		JobID:              job.ID,
		Filename:           storage.SanitizeFilename(job.Filename),
		SourceChecksum:     checksum,
		Language:           job.Settings.Language,
		DurationSeconds:    info.DurationSeconds,
		WordCount:          tResult.WordCount,
		ChunkCount:         len(tResult.Chunks),
		AudioModel:         job.Settings.AudioModel,
		TranslationEnabled: job.Settings.TranslationEnabled,
		ProcessingSeconds:  time.Since(started).Seconds(),
		CreatedAt:          time.Now(),
		Settings: storage.MetadataSettings{
			ChunkMinutes:   job.Settings.ChunkMinutes,
			OverlapSeconds: job.Settings.OverlapSeconds,
			Temperature:    job.Settings.Temperature,
		},
	}
	if job.Settings.TranslationEnabled {
		meta.TargetLanguage = job.Settings.TargetLanguage
		meta.LanguageModel = job.Settings.LanguageModel
		meta.Settings.TranslationTemp = job.Settings.TranslationTemp
	}

	jobDir, err := p.deps.Store.JobDir(job.ID)
	if err != nil {
		return nil, err
	}
	outcome.JobDir = jobDir

	art := storage.Artifacts{
		Transcript:   outcome.Transcript,
		Translated:   outcome.Translated,
		LanguageCode: p.deps.LanguageCode(job.Settings.TargetLanguage),
		Integrated:   outcome.Integrated,
	}
	if err := p.deps.Store.SaveArtifacts(jobDir, art, meta); err != nil {
		return nil, err
	}

	if p.deps.Drive != nil {
		url, err := p.uploadToDrive(job.ID, jobDir)
		if err != nil {
			p.deps.Logger.Printf("job %s: drive upload failed, keeping local copy only: %v", job.ID, err)
		} else {
			outcome.GDriveURL = url
			meta.GDriveURL = url
			if err := p.deps.Store.SaveMetadata(jobDir, meta); err != nil {
				p.deps.Logger.Printf("job %s: metadata rewrite after drive upload failed: %v", job.ID, err)
			}
		}
	}
	outcome.Metadata = meta

	if p.deps.History != nil {
		entry := storage.HistoryEntry{
			JobID:              job.ID,
			Filename:           meta.Filename,
			Language:           job.Settings.Language,
			TargetLanguage:     meta.TargetLanguage,
			TranslationEnabled: job.Settings.TranslationEnabled,
			DurationSeconds:    info.DurationSeconds,
			WordCount:          tResult.WordCount,
			ProcessingSeconds:  meta.ProcessingSeconds,
			JobDir:             jobDir,
			GDriveURL:          outcome.GDriveURL,
			CreatedAt:          meta.CreatedAt,
		}
		if err := p.deps.History.Record(entry); err != nil {
			p.deps.Logger.Printf("job %s: history record failed: %v", job.ID, err)
		}
	}

	report(StageDone, 1.0, "Complete")
	return outcome, nil
}

// translateTranscript runs the translation step. Failures do not fail the
// job: the returned text is a fallback notice carrying any partial
// translation, and fellBack is true.
func (p *Pipeline) translateTranscript(ctx context.Context, job Job, transcript string, report reportFunc) (string, bool) {
	translator := translate.New(p.deps.Chat, job.Settings.LanguageModel)
	result, err := translator.Document(ctx, transcript, job.Settings.TargetLanguage,
		job.Settings.Language, job.Settings.TranslationTemp,
		func(fraction float64, message string) {
			stage := StageTranslating
			if fraction >= 0.9 {
				stage = StageReconstructing
			}
			report(stage, 0.65+fraction*0.20, message)
		})
	if err != nil {
		p.deps.Logger.Printf("job %s: translation failed: %v", job.ID, err)
		partial := ""
		var appErr *apperrors.Error
		if apperrors.As(err, &appErr) {
			partial = appErr.Partial
		}
		return apperrors.TranslationFallback(err, partial), true
	}
	return result.TranslatedText, false
}

// uploadToDrive mirrors artifacts with bounded retries. Drive is best effort;
// the local copy is authoritative.
func (p *Pipeline) uploadToDrive(jobID, jobDir string) (string, error) {
	var url string
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		url, err = p.deps.Drive.UploadJobDir(jobID, jobDir)
		if err == nil {
			return url, nil
		}
		p.deps.Logger.Printf("job %s: drive upload attempt %d/3 failed: %v", jobID, attempt, err)
		if attempt < 3 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}
	}
	return "", err
}

// formatIntegrated builds the interleaved view. Any failure degrades to the
// bare transcript.
func (p *Pipeline) formatIntegrated(jobID, transcript, translated string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			p.deps.Logger.Printf("job %s: integrated display failed: %v", jobID, r)
			out = transcript
		}
	}()
	out = p.deps.Formatter.Format(transcript, translated)
	return out
}

type reportFunc func(stage Stage, fraction float64, message string)

// newMonotonic wraps progress so reported fractions never go backwards even
// if stage boundaries overlap.
func newMonotonic(progress ProgressFunc) reportFunc {
	last := 0.0
	return func(stage Stage, fraction float64, message string) {
		if fraction < last {
			fraction = last
		}
		last = fraction
		progress(Progress{Stage: stage, Fraction: fraction, Message: message})
	}
}
