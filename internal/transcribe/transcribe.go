// Package transcribe turns voice recordings into text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

// Transcriber converts raw audio bytes into recognized text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

const (
	defaultBaseURL  = "https://api.assemblyai.com/v2"
	defaultInterval = 2 * time.Second
)

// AssemblyAI implements Transcriber against the AssemblyAI REST API:
// upload the audio, submit a transcript job, then poll until it settles.
type AssemblyAI struct {
	apiKey   string
	baseURL  string
	interval time.Duration
	httpc    *http.Client
	log      logx.Logger
}

type Option func(*AssemblyAI)

func WithBaseURL(u string) Option {
	return func(a *AssemblyAI) { a.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *AssemblyAI) { a.httpc = c }
}

// WithPollInterval overrides the delay between transcript status checks.
func WithPollInterval(d time.Duration) Option {
	return func(a *AssemblyAI) { a.interval = d }
}

func NewAssemblyAI(apiKey string, log logx.Logger, opts ...Option) *AssemblyAI {
	a := &AssemblyAI{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		interval: defaultInterval,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (a *AssemblyAI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	uploadURL, err := a.upload(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	id, err := a.submit(ctx, uploadURL)
	if err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}
	a.log.Debug("transcript submitted", logx.String("transcript_id", id))

	for {
		tr, err := a.status(ctx, id)
		if err != nil {
			return "", fmt.Errorf("poll transcript: %w", err)
		}
		switch tr.Status {
		case "completed":
			return tr.Text, nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", tr.Error)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.interval):
		}
	}
}

func (a *AssemblyAI) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	return out.UploadURL, nil
}

func (a *AssemblyAI) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL, LanguageCode: "ru"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out transcriptResponse
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (a *AssemblyAI) status(ctx context.Context, id string) (transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return transcriptResponse{}, err
	}
	req.Header.Set("Authorization", a.apiKey)

	var out transcriptResponse
	if err := a.do(req, &out); err != nil {
		return transcriptResponse{}, err
	}
	return out, nil
}

func (a *AssemblyAI) do(req *http.Request, out any) error {
	resp, err := a.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
