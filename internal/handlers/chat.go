package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mshattori/transcriber-web-app/internal/config"
	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/storage"
	"github.com/mshattori/transcriber-web-app/internal/translate"
)

// ChatHandler answers questions about a completed transcript using the
// transcript text as context.
type ChatHandler struct {
	jobs   *JobsHandler
	store  *storage.LocalStorage
	client translate.Chatter
	cfg    *config.Config
}

func NewChatHandler(jobs *JobsHandler, store *storage.LocalStorage, client translate.Chatter, cfg *config.Config) *ChatHandler {
	return &ChatHandler{jobs: jobs, store: store, client: client, cfg: cfg}
}

type chatRequest struct {
	Question    string  `json:"question"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Handle processes POST /jobs/:id/chat.
func (h *ChatHandler) Handle(c *fiber.Ctx) error {
	jobDir, ok := h.jobs.resolveJobDir(c)
	if !ok {
		return nil
	}

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Model == "" {
		req.Model = h.cfg.Defaults.LanguageModel
	}

	transcript, err := h.store.LoadArtifact(jobDir, storage.TranscriptFile)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Transcript not available"})
	}

	answer, err := translate.ChatWithContext(c.Context(), h.client, req.Model,
		req.Question, transcript, h.cfg.SystemMessage, req.Temperature)
	if err != nil {
		status := 500
		if apperrors.GetKind(err) == apperrors.KindValidation {
			status = 400
		} else if code := apperrors.StatusCode(err); code != 0 {
			status = code
		}
		return c.Status(status).JSON(fiber.Map{"error": apperrors.UserMessage(err)})
	}

	return c.JSON(fiber.Map{"answer": answer})
}
