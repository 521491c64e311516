package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	healthPath   = "/health"
	loadPath     = "/v1/models/load"
	generatePath = "/v1/generate"

	msgpackContentType = "application/msgpack"
	maxErrorBody       = 4096
)

// Backend is the process that actually hosts the model weights.
type Backend interface {
	Health(ctx context.Context) (Health, error)
	Load(ctx context.Context, model, device string) error
	Generate(ctx context.Context, params GenerateParams) (*Output, error)
}

// Health is the model server's self report.
type Health struct {
	Status      string `json:"status"`
	Accelerator bool   `json:"accelerator"`
	Device      string `json:"device,omitempty"`
}

// GenerateParams are forwarded to the model unchanged.
type GenerateParams struct {
	Prompt        string  `json:"prompt"`
	MaxNewTokens  int     `json:"max_new_tokens"`
	DoSample      bool    `json:"do_sample"`
	GuidanceScale float64 `json:"guidance_scale"`
	Seed          *int64  `json:"seed,omitempty"`
}

// Output is the raw model response. Samples are interleaved when
// Channels > 1.
type Output struct {
	Samples    []float32 `msgpack:"samples"`
	SampleRate int       `msgpack:"sample_rate"`
	Channels   int       `msgpack:"channels"`
}

type loadRequest struct {
	Model  string `json:"model"`
	Device string `json:"device"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// HTTPBackend talks to a model server over HTTP. Requests are JSON;
// generated audio comes back as msgpack.
type HTTPBackend struct {
	baseURL string
	http    *http.Client
}

// NewHTTPBackend creates a client for the model server at baseURL. Request
// lifetimes are bounded by the caller's context.
func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Health asks the server whether it is up and has an accelerator.
func (b *HTTPBackend) Health(ctx context.Context) (Health, error) {
	var h Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+healthPath, nil)
	if err != nil {
		return h, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return h, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return h, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

// Load asks the server to load model onto device.
func (b *HTTPBackend) Load(ctx context.Context, model, device string) error {
	resp, err := b.postJSON(ctx, loadPath, loadRequest{Model: model, Device: device}, "application/json")
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Generate runs one synthesis and decodes the sample buffer.
func (b *HTTPBackend) Generate(ctx context.Context, params GenerateParams) (*Output, error) {
	resp, err := b.postJSON(ctx, generatePath, params, msgpackContentType)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out Output
	if err := msgpack.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return &out, nil
}

func (b *HTTPBackend) postJSON(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	return b.http.Do(req)
}

// statusError turns a non-success response into an error carrying whatever
// message the server sent.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var e errorResponse
	if json.Unmarshal(raw, &e) == nil {
		if msg := firstNonEmpty(e.Error, e.Detail); msg != "" {
			return fmt.Errorf("model server returned %d: %s", resp.StatusCode, msg)
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("model server returned %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("model server returned %d", resp.StatusCode)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
