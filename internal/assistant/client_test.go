package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSendsPromptAndParsesReply(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "We open at 8am!"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", false)
	reply, err := client.Complete(context.Background(), "When do you open?", "You are the café assistant.")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "We open at 8am!" {
		t.Errorf("unexpected reply: %q", reply)
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", captured)
	}
	prompt := captured.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "You are the café assistant.") {
		t.Error("system prompt missing from request")
	}
	if !strings.Contains(prompt, "When do you open?") {
		t.Error("user message missing from request")
	}
	if captured.GenerationConfig.MaxOutputTokens != 1000 {
		t.Errorf("expected max output tokens 1000, got %d", captured.GenerationConfig.MaxOutputTokens)
	}
	if captured.GenerationConfig.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", captured.GenerationConfig.Temperature)
	}
	if len(captured.SafetySettings) != 2 {
		t.Errorf("expected 2 safety settings, got %d", len(captured.SafetySettings))
	}
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", false)
	_, err := client.Complete(context.Background(), "hello", "prompt")
	if err == nil {
		t.Fatal("expected an error on non-200 status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestCompleteNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", false)
	_, err := client.Complete(context.Background(), "hello", "prompt")
	if err == nil {
		t.Fatal("expected an error when no candidates are returned")
	}
	if !strings.Contains(err.Error(), "no response generated") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompleteEmptyMessage(t *testing.T) {
	client := NewClient("", "test-key", false)
	if _, err := client.Complete(context.Background(), "", "prompt"); err == nil {
		t.Fatal("expected an error for an empty message")
	}
}

func TestCompleteStubMode(t *testing.T) {
	client := NewClient("http://unreachable.invalid", "", true)
	reply, err := client.Complete(context.Background(), "hello", "prompt")
	if err != nil {
		t.Fatalf("stub mode must not fail: %v", err)
	}
	if !strings.Contains(reply, "Purrfect Brew") {
		t.Errorf("stub reply should mention the café, got %q", reply)
	}
}
