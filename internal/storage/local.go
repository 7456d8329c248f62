package storage

import (
	"archive/zip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lukechampine.com/blake3"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

// Artifact file names within a job directory.
const (
	TranscriptFile = "transcript.txt"
	IntegratedFile = "transcript_integrated.txt"
	MetadataFile   = "metadata.json"
)

// MetadataSettings records the processing options a job actually ran with.
type MetadataSettings struct {
	ChunkMinutes    int     `json:"chunk_minutes"`
	OverlapSeconds  int     `json:"overlap_seconds"`
	Temperature     float64 `json:"temperature"`
	TranslationTemp float64 `json:"translation_temperature,omitempty"`
}

// JobMetadata is persisted as metadata.json alongside the transcripts.
// Files is filled in at save time from the artifacts present on disk.
type JobMetadata struct {
	JobID              string           `json:"job_id"`
	Filename           string           `json:"filename"`
	SourceChecksum     string           `json:"source_checksum"`
	Language           string           `json:"language"`
	TargetLanguage     string           `json:"target_language,omitempty"`
	DurationSeconds    float64          `json:"duration_seconds"`
	WordCount          int              `json:"word_count"`
	ChunkCount         int              `json:"chunk_count"`
	AudioModel         string           `json:"audio_model"`
	LanguageModel      string           `json:"language_model,omitempty"`
	TranslationEnabled bool             `json:"translation_enabled"`
	ProcessingSeconds  float64          `json:"processing_seconds"`
	Settings           MetadataSettings `json:"settings"`
	Files              []string         `json:"files"`
	GDriveURL          string           `json:"gdrive_url,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Artifacts holds the texts to persist for a completed job. Translated and
// Integrated are empty when translation was not requested or failed.
type Artifacts struct {
	Transcript   string
	Translated   string
	LanguageCode string
	Integrated   string
}

// LocalStorage lays out job artifacts under dated directories:
// <dataDir>/2026-08-29/<job-id>/transcript.txt etc.
type LocalStorage struct {
	dataDir string
}

func NewLocalStorage(dataDir string) *LocalStorage {
	return &LocalStorage{dataDir: dataDir}
}

// JobDir creates and returns the directory for a job.
func (ls *LocalStorage) JobDir(jobID string) (string, error) {
	dir := filepath.Join(ls.dataDir, time.Now().Format("2006-01-02"), jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.FileIO("failed to create job directory", err)
	}
	return dir, nil
}

// SaveArtifacts writes the transcript files and metadata into jobDir.
func (ls *LocalStorage) SaveArtifacts(jobDir string, art Artifacts, meta JobMetadata) error {
	if err := os.WriteFile(filepath.Join(jobDir, TranscriptFile), []byte(art.Transcript), 0644); err != nil {
		return apperrors.FileIO("failed to save transcript", err)
	}
	if art.Translated != "" {
		path := filepath.Join(jobDir, TranslatedFile(art.LanguageCode))
		if err := os.WriteFile(path, []byte(art.Translated), 0644); err != nil {
			return apperrors.FileIO("failed to save translation", err)
		}
	}
	if art.Integrated != "" {
		if err := os.WriteFile(filepath.Join(jobDir, IntegratedFile), []byte(art.Integrated), 0644); err != nil {
			return apperrors.FileIO("failed to save integrated transcript", err)
		}
	}

	return ls.SaveMetadata(jobDir, meta)
}

// SaveMetadata writes metadata.json, stamping Files with the artifacts
// present in jobDir at the time of the call. Safe to call again after the
// metadata changes, such as when a Drive link becomes available.
func (ls *LocalStorage) SaveMetadata(jobDir string, meta JobMetadata) error {
	names, err := ls.ArtifactNames(jobDir)
	if err != nil {
		return err
	}
	meta.Files = names

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return apperrors.FileIO("failed to marshal metadata", err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, MetadataFile), metaJSON, 0644); err != nil {
		return apperrors.FileIO("failed to save metadata", err)
	}
	return nil
}

// LoadArtifact reads one named artifact from a job directory. The name must
// be a bare filename, not a path.
func (ls *LocalStorage) LoadArtifact(jobDir, name string) (string, error) {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", apperrors.Validation("invalid artifact name", "name")
	}
	data, err := os.ReadFile(filepath.Join(jobDir, name))
	if err != nil {
		return "", apperrors.FileIO(fmt.Sprintf("artifact not found: %s", name), err)
	}
	return string(data), nil
}

// LoadMetadata reads and decodes metadata.json from a job directory.
func (ls *LocalStorage) LoadMetadata(jobDir string) (*JobMetadata, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, MetadataFile))
	if err != nil {
		return nil, apperrors.FileIO("metadata not found", err)
	}
	var meta JobMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.FileIO("corrupt metadata", err)
	}
	return &meta, nil
}

// ArtifactNames lists the transcript artifacts in a job directory, excluding
// metadata.json.
func (ls *LocalStorage) ArtifactNames(jobDir string) ([]string, error) {
	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return nil, apperrors.FileIO("failed to read job directory", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == MetadataFile {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// ZipArtifacts packages every file in the job directory into a single zip
// written to w, for the download endpoint.
func (ls *LocalStorage) ZipArtifacts(jobDir string, w io.Writer) error {
	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return apperrors.FileIO("failed to read job directory", err)
	}

	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fw, err := zw.Create(entry.Name())
		if err != nil {
			zw.Close()
			return apperrors.FileIO("failed to create zip entry", err)
		}
		f, err := os.Open(filepath.Join(jobDir, entry.Name()))
		if err != nil {
			zw.Close()
			return apperrors.FileIO("failed to read artifact", err)
		}
		_, err = io.Copy(fw, f)
		f.Close()
		if err != nil {
			zw.Close()
			return apperrors.FileIO("failed to write zip entry", err)
		}
	}
	return zw.Close()
}

// Checksum computes the BLAKE3 digest of the file at path, recorded in
// metadata so re-uploads of the same source can be recognized.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.FileIO("failed to open file for checksum", err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", apperrors.FileIO("failed to hash file", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SanitizeFilename strips path separators and other characters that are not
// safe in a stored filename, and caps the length.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(
		"\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	name = replacer.Replace(name)
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// TranslatedFile returns the artifact name for a translation in the given
// language code.
func TranslatedFile(langCode string) string {
	if langCode == "" {
		langCode = "translated"
	}
	return fmt.Sprintf("transcript.%s.txt", langCode)
}
