package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_01.mp3")
	if err := os.WriteFile(path, []byte("fake-mp3-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("response_format"); got != FormatText {
			t.Errorf("response_format = %q", got)
		}
		// "auto" must not be forwarded as a language.
		if got := r.FormValue("language"); got != "" {
			t.Errorf("language = %q, want empty", got)
		}
		w.Write([]byte("hello there\n"))
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	resp, err := c.Transcribe(context.Background(), TranscriptionRequest{
		FilePath:       writeTempAudio(t),
		Model:          "whisper-1",
		Language:       "auto",
		ResponseFormat: FormatText,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "hello there" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestTranscribeVerboseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"text":     " hello ",
			"language": "en",
			"duration": 12.5,
			"segments": []map[string]any{
				{"id": 0, "start": 0.0, "end": 6.0, "text": "hello"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	resp, err := c.Transcribe(context.Background(), TranscriptionRequest{
		FilePath:       writeTempAudio(t),
		Model:          "whisper-1",
		ResponseFormat: FormatVerboseJSON,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "hello" || resp.Language != "en" || resp.Duration != 12.5 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Segments) != 1 || resp.Segments[0].End != 6.0 {
		t.Errorf("segments = %+v", resp.Segments)
	}
}

func TestTranscribeAPIErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.Transcribe(context.Background(), TranscriptionRequest{
		FilePath: writeTempAudio(t),
		Model:    "whisper-1",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperrors.StatusCode(err) != 401 {
		t.Errorf("status = %d, want 401", apperrors.StatusCode(err))
	}
	if apperrors.Retryable(err) {
		t.Error("401 must not be retryable")
	}
}

func TestStructuredCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		rf, ok := payload["response_format"].(map[string]any)
		if !ok || rf["type"] != "json_schema" {
			t.Errorf("response_format = %v", payload["response_format"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"segments":[]}`}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	raw, err := c.StructuredCompletion(context.Background(), "gpt-4o-mini", "sys", "user",
		"translation", json.RawMessage(`{"type":"object"}`), 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"segments":[]}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.ChatCompletion(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, 0.7)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
