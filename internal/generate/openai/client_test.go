package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chat/completions":
			var req struct {
				ResponseFormat struct {
					Type string `json:"type"`
				} `json:"response_format"`
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.ResponseFormat.Type != "json_object" {
				t.Fatalf("unexpected response_format: %s", req.ResponseFormat.Type)
			}
			if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "glass lighthouse") {
				t.Fatalf("concept idea missing from prompt")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": `{"name":"Aurora","symbol":"AUR","description":"Light kept in glass."}`}},
				},
			})
		case "/images/generations":
			var req struct {
				Prompt string `json:"prompt"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if !strings.Contains(req.Prompt, "Aurora") {
				t.Fatalf("image prompt missing token name")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"url": "https://img.example/aurora.png"}},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	metadata, err := client.Generate(context.Background(), "a glass lighthouse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metadata.Name != "Aurora" || metadata.Symbol != "AUR" {
		t.Fatalf("unexpected metadata: %+v", metadata)
	}
	if metadata.ImageURL != "https://img.example/aurora.png" {
		t.Fatalf("unexpected image url: %s", metadata.ImageURL)
	}
}

func TestGenerateMetadataFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Generate(context.Background(), "anything"); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestGenerateRejectsEmptyIdea(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Generate(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty idea")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}
