package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

const groqAPIURL = "https://api.groq.com/openai/v1/audio/transcriptions"

type Groq struct {
	client *TracedClient
	apiURL string
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		client: NewTracedClient(groqAPIURL),
		apiURL: groqAPIURL,
		apiKey: apiKey,
	}
}

func (g *Groq) Name() string { return "groq" }

// Warm pre-opens the TLS connection, typically when recording starts.
func (g *Groq) Warm() { g.client.Warm() }

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text             string  `json:"text"`
		Start            float64 `json:"start"`
		End              float64 `json:"end"`
		NoSpeechProb     float64 `json:"no_speech_prob"`
		AvgLogProb       float64 `json:"avg_logprob"`
		CompressionRatio float64 `json:"compression_ratio"`
		Temperature      float64 `json:"temperature"`
	} `json:"segments"`
}

func (g *Groq) Transcribe(ctx context.Context, r Request) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+r.Format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(r.Audio); err != nil {
		return nil, err
	}

	writer.WriteField("model", "whisper-large-v3-turbo")
	writer.WriteField("response_format", "verbose_json")
	if r.Language != "" {
		writer.WriteField("language", r.Language)
	}
	if r.Prompt != "" {
		writer.WriteField("prompt", r.Prompt)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, &body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, fmt.Errorf("groq response parse error: %w", err)
	}

	var noSpeechProb, avgLogProb float64
	var segments []Segment
	if len(gResp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range gResp.Segments {
			if seg.NoSpeechProb > noSpeechProb {
				noSpeechProb = seg.NoSpeechProb
			}
			logProbSum += seg.AvgLogProb
			segments = append(segments, Segment{
				Text:             seg.Text,
				NoSpeechProb:     seg.NoSpeechProb,
				AvgLogProb:       seg.AvgLogProb,
				CompressionRatio: seg.CompressionRatio,
				Temperature:      seg.Temperature,
				Start:            seg.Start,
				End:              seg.End,
			})
		}
		avgLogProb = logProbSum / float64(len(gResp.Segments))
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:         gResp.Text,
		Metrics:      resp.Metrics,
		RateLimit:    remaining + "/" + limit,
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     gResp.Duration,
		Segments:     segments,
	}, nil
}
