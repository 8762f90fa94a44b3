package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

const openaiAPIURL = "https://api.openai.com/v1/audio/transcriptions"

type OpenAI struct {
	client *TracedClient
	apiURL string
	apiKey string
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		client: NewTracedClient(openaiAPIURL),
		apiURL: openaiAPIURL,
		apiKey: apiKey,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Warm() { o.client.Warm() }

// gpt-4o-transcribe returns plain json without segments, so no-speech
// detection falls back to the empty-text check.
func (o *OpenAI) Transcribe(ctx context.Context, r Request) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+r.Format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(r.Audio); err != nil {
		return nil, err
	}

	writer.WriteField("model", "gpt-4o-transcribe")
	writer.WriteField("response_format", "json")
	if r.Language != "" {
		writer.WriteField("language", r.Language)
	}
	if r.Prompt != "" {
		writer.WriteField("prompt", r.Prompt)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, &body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, fmt.Errorf("openai response parse error: %w", err)
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:      oResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}, nil
}
