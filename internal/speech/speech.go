// Package speech wraps the external recognizer (audio to text) and synthesizer (text to audio).
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// ErrDisabled is returned when no service URL is configured.
var ErrDisabled = errors.New("speech service not configured")

const maxAudioResponse = 16 << 20

// Recognizer turns audio bytes into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio []byte, contentType string, err error)
}

// HTTPRecognizer posts audio as multipart "file" and expects {"text": "..."}.
type HTTPRecognizer struct {
	url    string
	client *http.Client
}

// NewRecognizer creates a recognizer for url. An empty url disables recognition.
func NewRecognizer(url string) *HTTPRecognizer {
	return &HTTPRecognizer{url: url, client: http.DefaultClient}
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	if r.url == "" {
		return "", ErrDisabled
	}
	if len(audio) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "answer.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recognize status: %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode recognize response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// HTTPSynthesizer posts {"text": "..."} and returns the audio body.
type HTTPSynthesizer struct {
	url    string
	client *http.Client
}

// NewSynthesizer creates a synthesizer for url. An empty url disables synthesis.
func NewSynthesizer(url string) *HTTPSynthesizer {
	return &HTTPSynthesizer{url: url, client: http.DefaultClient}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if s.url == "" {
		return nil, "", ErrDisabled
	}
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("synthesize status: %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioResponse))
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/wav"
	}
	return audio, ct, nil
}
