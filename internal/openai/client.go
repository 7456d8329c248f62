// Package openai is a thin HTTP client for the two OpenAI endpoints this app
// uses: audio transcription and chat completions (plain and JSON-structured).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

const requestTimeout = 10 * time.Minute

// Response formats for the transcription endpoint.
const (
	FormatText        = "text"
	FormatVerboseJSON = "verbose_json"
)

// Client calls the OpenAI HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point the client
// at a local httptest server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TranscriptionRequest describes one transcription call.
type TranscriptionRequest struct {
	FilePath       string
	Model          string
	Language       string // "auto" or empty means service-side detection
	Temperature    float64
	ResponseFormat string // FormatText or FormatVerboseJSON
}

// VerboseSegment is a service-reported sub-segment with timing.
type VerboseSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResponse is the decoded service response. Segments, Duration
// and Language are only populated for verbose_json requests.
type TranscriptionResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []VerboseSegment `json:"segments"`
}

// Transcribe uploads an audio file and returns the transcription.
func (c *Client) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return nil, apperrors.FileIO(fmt.Sprintf("failed to open audio file: %s", req.FilePath), err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(req.FilePath))
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.WriteField("model", req.Model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if req.Language != "" && req.Language != "auto" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.WriteField("temperature", fmt.Sprintf("%g", req.Temperature)); err != nil {
		return nil, fmt.Errorf("write temperature field: %w", err)
	}
	format := req.ResponseFormat
	if format == "" {
		format = FormatText
	}
	if err := writer.WriteField("response_format", format); err != nil {
		return nil, fmt.Errorf("write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.decodeAPIError(resp)
	}

	if format == FormatVerboseJSON {
		var out TranscriptionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode transcription response: %w", err)
		}
		out.Text = strings.TrimSpace(out.Text)
		return &out, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transcription response: %w", err)
	}
	return &TranscriptionResponse{Text: strings.TrimSpace(string(raw))}, nil
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletion sends a plain chat request and returns the assistant reply.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	payload := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
	}
	content, err := c.chat(ctx, payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// StructuredCompletion sends a chat request constrained by a JSON schema and
// returns the raw JSON content of the reply. Free-form prose responses are
// rejected by the service itself, not parsed heuristically here.
func (c *Client) StructuredCompletion(ctx context.Context, model, systemPrompt, userPrompt, schemaName string, schema json.RawMessage, temperature float64) (json.RawMessage, error) {
	payload := map[string]any{
		"model":       model,
		"temperature": temperature,
		"messages": []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}
	content, err := c.chat(ctx, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(content), nil
}

func (c *Client) chat(ctx context.Context, payload map[string]any) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", buf)
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", c.decodeAPIError(resp)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", apperrors.API("no completion returned", resp.StatusCode)
	}
	return response.Choices[0].Message.Content, nil
}

func (c *Client) decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apperrors.ClassifyAPIError(resp.StatusCode, apiErr.Error.Message)
	}
	return apperrors.ClassifyAPIError(resp.StatusCode, string(body))
}
