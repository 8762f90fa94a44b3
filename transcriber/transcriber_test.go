package transcriber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGroqTranscribe(t *testing.T) {
	var gotModel, gotLang, gotPrompt, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		gotPrompt = r.FormValue("prompt")
		if f, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
			f.Close()
		}
		w.Header().Set("x-ratelimit-remaining-requests", "99")
		w.Header().Set("x-ratelimit-limit-requests", "100")
		w.Write([]byte(`{
			"text": "hello world",
			"duration": 1.5,
			"segments": [
				{"text": "hello", "no_speech_prob": 0.1, "avg_logprob": -0.2},
				{"text": " world", "no_speech_prob": 0.3, "avg_logprob": -0.4}
			]
		}`))
	}))
	defer srv.Close()

	g := &Groq{client: NewTracedClient(srv.URL), apiURL: srv.URL, apiKey: "test-key"}

	res, err := g.Transcribe(context.Background(), Request{
		Audio:    []byte("fake-flac"),
		Format:   "flac",
		Language: "en",
		Prompt:   "dictation",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotModel != "whisper-large-v3-turbo" {
		t.Errorf("model = %q", gotModel)
	}
	if gotLang != "en" || gotPrompt != "dictation" {
		t.Errorf("language/prompt = %q/%q", gotLang, gotPrompt)
	}
	if gotFile != "audio.flac" {
		t.Errorf("file name = %q", gotFile)
	}

	if res.Text != "hello world" {
		t.Errorf("text = %q", res.Text)
	}
	if res.NoSpeechProb != 0.3 {
		t.Errorf("NoSpeechProb = %v, want max segment value 0.3", res.NoSpeechProb)
	}
	wantAvg := (-0.2 + -0.4) / 2
	if res.AvgLogProb != wantAvg {
		t.Errorf("AvgLogProb = %v, want %v", res.AvgLogProb, wantAvg)
	}
	if res.RateLimit != "99/100" {
		t.Errorf("RateLimit = %q", res.RateLimit)
	}
	if len(res.Segments) != 2 {
		t.Errorf("segments = %d, want 2", len(res.Segments))
	}
	if res.Metrics == nil || res.Metrics.Total == 0 {
		t.Error("expected network metrics to be populated")
	}
}

func TestGroqTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(429)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	g := &Groq{client: NewTracedClient(srv.URL), apiURL: srv.URL, apiKey: "k"}
	_, err := g.Transcribe(context.Background(), Request{Audio: []byte("x"), Format: "flac"})
	if err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestChatEnhancer(t *testing.T) {
	var gotStyle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding chat request: %v", err)
		}
		if len(req.Messages) == 2 {
			gotStyle = req.Messages[0].Content
		}
		w.Write([]byte(`{"choices": [{"message": {"content": " Cleaned up.  "}}]}`))
	}))
	defer srv.Close()

	e := &ChatEnhancer{client: srv.Client(), apiURL: srv.URL, apiKey: "k", model: "m", name: "test"}

	out, err := e.Enhance(context.Background(), "cleaned up", 4)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if out != "Cleaned up." {
		t.Errorf("output = %q, want trimmed content", out)
	}
	if !strings.Contains(gotStyle, stylePrompt(4)) {
		t.Errorf("system prompt missing style instruction: %q", gotStyle)
	}
}

func TestStyleLabelFallsBack(t *testing.T) {
	if StyleLabel(4) != "concise" {
		t.Errorf("StyleLabel(4) = %q", StyleLabel(4))
	}
	if StyleLabel(42) != "cleanup" {
		t.Errorf("StyleLabel(42) = %q, want cleanup fallback", StyleLabel(42))
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("whisperx"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewEnhancer("whisperx"); err == nil {
		t.Error("expected error for unknown enhancer provider")
	}
}
