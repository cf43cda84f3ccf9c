package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAICompatGeneratorSendsStrictJSONRequest(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-1" {
			t.Errorf("auth = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "{\"abstract\": \"ok\"}"}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "key-1", "test-model")
	out, err := g.GenerateText(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"abstract": "ok"}` {
		t.Fatalf("out = %q", out)
	}

	if got.Model != "test-model" {
		t.Fatalf("model = %q", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Fatalf("temperature = %v, want explicit 0", got.Temperature)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %+v", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestOpenAICompatGeneratorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "test-model")
	if _, err := g.GenerateText(context.Background(), "", "hi"); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v", err)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer empty.Close()
	g = NewOpenAICompatGenerator(empty.URL, "", "test-model")
	if _, err := g.GenerateText(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected error for empty choices")
	}

	g = NewOpenAICompatGenerator(srv.URL, "", "")
	if _, err := g.GenerateText(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestOpenAITranscriberMultipartUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if model := r.FormValue("model"); model != "test-whisper" {
			t.Errorf("model = %q", model)
		}
		if format := r.FormValue("response_format"); format != "json" {
			t.Errorf("response_format = %q", format)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "source.part-000.wav" {
			t.Errorf("filename = %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "wav-bytes" {
			t.Errorf("file bytes = %q", data)
		}
		_, _ = w.Write([]byte(`{"text": "hello lecture"}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(srv.URL, "key-1", "test-whisper")
	text, err := tr.Transcribe(context.Background(), []byte("wav-bytes"), "source.part-000.wav")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello lecture" {
		t.Fatalf("text = %q", text)
	}
}

func TestOpenAITranscriberErrors(t *testing.T) {
	tr := NewOpenAITranscriber("http://localhost:0", "", "test-whisper")
	if _, err := tr.Transcribe(context.Background(), nil, "a.wav"); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("missing key: err = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad audio"}}`))
	}))
	defer srv.Close()
	tr = NewOpenAITranscriber(srv.URL, "key-1", "test-whisper")
	if _, err := tr.Transcribe(context.Background(), []byte("x"), "a.wav"); err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("api error: err = %v", err)
	}
}
