package translate

import (
	"context"
	"strings"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/openai"
)

// Chatter is the plain chat side of the OpenAI client.
type Chatter interface {
	ChatCompletion(ctx context.Context, model string, messages []openai.Message, temperature float64) (string, error)
}

// ChatWithContext answers a question grounded in a transcript, using a
// three-message pattern: the configured system message, a user message
// injecting the transcript as reference text, then the actual question.
func ChatWithContext(ctx context.Context, client Chatter, model, question, contextText, systemMessage string, temperature float64) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", apperrors.Validation("Question cannot be empty", "question")
	}
	if strings.TrimSpace(model) == "" {
		return "", apperrors.Validation("Model must be specified", "model")
	}

	var messages []openai.Message
	if systemMessage != "" {
		messages = append(messages, openai.Message{Role: "system", Content: systemMessage})
	}
	if strings.TrimSpace(contextText) != "" {
		messages = append(messages, openai.Message{
			Role:    "user",
			Content: "以下は文字起こしされたテキストです。この内容を参考にして質問に答えてください。\n\n" + contextText,
		})
	}
	messages = append(messages, openai.Message{Role: "user", Content: question})

	return client.ChatCompletion(ctx, model, messages, temperature)
}
