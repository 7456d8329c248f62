package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mshattori/transcriber-web-app/internal/queue"
	"github.com/mshattori/transcriber-web-app/internal/storage"
)

// JobsHandler serves job status, completed artifacts and history.
type JobsHandler struct {
	tracker  *queue.Tracker
	store    *storage.LocalStorage
	history  *storage.HistoryDB
	langCode func(name string) string
}

func NewJobsHandler(tracker *queue.Tracker, store *storage.LocalStorage, history *storage.HistoryDB, langCode func(string) string) *JobsHandler {
	return &JobsHandler{tracker: tracker, store: store, history: history, langCode: langCode}
}

// List handles GET /jobs: in-memory jobs from this process plus persisted
// history from earlier runs.
func (h *JobsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	entries, err := h.history.List(limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load job history"})
	}
	return c.JSON(fiber.Map{
		"active":  h.tracker.List(),
		"history": entries,
	})
}

// Get handles GET /jobs/:id.
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if snap, ok := h.tracker.Get(jobID); ok {
		return c.JSON(snap)
	}
	entry, err := h.history.Get(jobID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Job not found"})
	}
	return c.JSON(entry)
}

// Text handles GET /jobs/:id/text?view=transcript|translated|integrated.
func (h *JobsHandler) Text(c *fiber.Ctx) error {
	jobDir, ok := h.resolveJobDir(c)
	if !ok {
		return nil
	}

	name := storage.TranscriptFile
	switch c.Query("view", "transcript") {
	case "transcript":
	case "integrated":
		name = storage.IntegratedFile
	case "translated":
		meta, err := h.store.LoadMetadata(jobDir)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Job metadata not found"})
		}
		code := "translated"
		if meta.TargetLanguage != "" {
			code = h.langCode(meta.TargetLanguage)
		}
		name = storage.TranslatedFile(code)
	default:
		return c.Status(400).JSON(fiber.Map{"error": "view must be transcript, translated or integrated"})
	}

	content, err := h.store.LoadArtifact(jobDir, name)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": fmt.Sprintf("Artifact not available: %s", name)})
	}
	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(content)
}

// Download handles GET /jobs/:id/download. A lone transcript is served as
// plain text; anything more becomes a zip of all artifacts.
func (h *JobsHandler) Download(c *fiber.Ctx) error {
	jobDir, ok := h.resolveJobDir(c)
	if !ok {
		return nil
	}

	names, err := h.store.ArtifactNames(jobDir)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to read artifacts"})
	}
	if len(names) == 1 && names[0] == storage.TranscriptFile {
		content, err := h.store.LoadArtifact(jobDir, storage.TranscriptFile)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript not available"})
		}
		c.Set("Content-Type", "text/plain; charset=utf-8")
		c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.txt"`, c.Params("id")))
		return c.SendString(content)
	}

	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, c.Params("id")))
	if err := h.store.ZipArtifacts(jobDir, c.Response().BodyWriter()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to package artifacts"})
	}
	return nil
}

// resolveJobDir finds the artifact directory for a finished job, preferring
// live tracker state and falling back to history. On failure it writes the
// error response and returns ok=false.
func (h *JobsHandler) resolveJobDir(c *fiber.Ctx) (string, bool) {
	jobID := c.Params("id")
	if snap, ok := h.tracker.Get(jobID); ok {
		if snap.Status != queue.StatusCompleted {
			c.Status(409).JSON(fiber.Map{
				"error":  "Job has not completed",
				"status": snap.Status,
			})
			return "", false
		}
		return snap.JobDir, true
	}
	entry, err := h.history.Get(jobID)
	if err != nil {
		c.Status(404).JSON(fiber.Map{"error": "Job not found"})
		return "", false
	}
	return entry.JobDir, true
}
