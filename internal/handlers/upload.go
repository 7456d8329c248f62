// Package handlers implements the HTTP and websocket API.
package handlers

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mshattori/transcriber-web-app/internal/audio"
	"github.com/mshattori/transcriber-web-app/internal/config"
	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/pipeline"
	"github.com/mshattori/transcriber-web-app/internal/queue"
)

// UploadHandler accepts an audio file plus per-job settings and enqueues a
// transcription job.
type UploadHandler struct {
	workerPool *queue.WorkerPool
	cfg        *config.Config
	tempDir    string
}

func NewUploadHandler(workerPool *queue.WorkerPool, cfg *config.Config) *UploadHandler {
	return &UploadHandler{
		workerPool: workerPool,
		cfg:        cfg,
		tempDir:    cfg.Storage.TempDir,
	}
}

// Handle processes POST /upload.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	maxSize := int64(h.cfg.Limits.MaxFileSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.cfg.Limits.MaxFileSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !audio.SupportedFormat(file.Filename) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported audio format. Supported: mp3, wav, m4a, flac, ogg, mp4, webm",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	settings, err := h.settingsFromForm(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": apperrors.UserMessage(err),
			"code":  "ERR_INVALID_SETTINGS",
		})
	}

	job := queue.NewJob(file.Filename, "", settings)
	tempPath := filepath.Join(h.tempDir, job.ID+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	job.AudioPath = tempPath

	if err := h.workerPool.Enqueue(job); err != nil {
		return c.Status(503).JSON(fiber.Map{
			"error": apperrors.UserMessage(err),
			"code":  "ERR_QUEUE_FULL",
		})
	}

	sizeMB := float64(file.Size) / (1024 * 1024)
	return c.JSON(fiber.Map{
		"job_id":   job.ID,
		"status":   "queued",
		"estimate": audio.EstimateProcessingTime(sizeMB, settings.ChunkMinutes),
	})
}

// settingsFromForm builds job settings from the form fields, falling back to
// configured defaults, and validates the result once here at the boundary.
func (h *UploadHandler) settingsFromForm(c *fiber.Ctx) (pipeline.Settings, error) {
	d := h.cfg.Defaults

	settings := pipeline.Settings{
		APIKey:             h.cfg.OpenAI.APIKey,
		AudioModel:         formOr(c, "audio_model", d.AudioModel),
		LanguageModel:      formOr(c, "language_model", d.LanguageModel),
		Language:           formOr(c, "language", d.Language),
		TargetLanguage:     formOr(c, "target_language", d.TranslationLanguage),
		ChunkMinutes:       d.ChunkMinutes,
		OverlapSeconds:     d.OverlapSeconds,
		TranslationEnabled: d.TranslationEnabled,
		Temperature:        d.Temperature,
		TranslationTemp:    d.TranslationTemp,
		IncludeTimestamps:  true,
	}
	if key := c.FormValue("api_key"); key != "" {
		settings.APIKey = key
	}

	var err error
	if settings.ChunkMinutes, err = formInt(c, "chunk_minutes", settings.ChunkMinutes); err != nil {
		return settings, err
	}
	if settings.OverlapSeconds, err = formInt(c, "overlap_seconds", settings.OverlapSeconds); err != nil {
		return settings, err
	}
	if v := c.FormValue("translation"); v != "" {
		settings.TranslationEnabled = v == "true" || v == "1" || v == "on"
	}
	if v := c.FormValue("timestamps"); v != "" {
		settings.IncludeTimestamps = v != "false" && v != "0"
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func formOr(c *fiber.Ctx, key, fallback string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}
	return fallback
}

func formInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	v := c.FormValue(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Validation(fmt.Sprintf("%s must be a number", key), key)
	}
	return n, nil
}
