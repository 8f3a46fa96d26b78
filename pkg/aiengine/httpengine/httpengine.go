// Package httpengine implements aiengine.Engine over a plain HTTP JSON API,
// in the same request/response idiom as the appium and wda driver clients:
// a thin net/http wrapper, no third-party HTTP client.
package httpengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowctl/orchestrator/pkg/aiengine"
	"github.com/flowctl/orchestrator/pkg/core"
)

// Config configures the HTTP AI engine client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Engine is an aiengine.Engine backed by a remote HTTP service.
type Engine struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates an HTTP-backed AI engine. An empty APIKey is valid at
// construction time; it surfaces as core.CloudApiKeyNotAvailable only when
// a command actually tries to use the engine.
func New(cfg Config) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type defectResponse struct {
	Defects []aiengine.Defect `json:"defects"`
}

type assertionResponse struct {
	Passed bool             `json:"passed"`
	Defect *aiengine.Defect `json:"defect,omitempty"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// FindDefects scans screenshot for visual/UX defects.
func (e *Engine) FindDefects(ctx context.Context, screenshot []byte) ([]aiengine.Defect, error) {
	var out defectResponse
	if err := e.post(ctx, "/v1/find-defects", map[string]string{
		"image": base64.StdEncoding.EncodeToString(screenshot),
	}, &out); err != nil {
		return nil, err
	}
	return out.Defects, nil
}

// PerformAssertion checks assertion against screenshot.
func (e *Engine) PerformAssertion(ctx context.Context, screenshot []byte, assertion string) (*aiengine.Defect, error) {
	var out assertionResponse
	if err := e.post(ctx, "/v1/assert", map[string]string{
		"image":     base64.StdEncoding.EncodeToString(screenshot),
		"assertion": assertion,
	}, &out); err != nil {
		return nil, err
	}
	if out.Passed {
		return nil, nil
	}
	if out.Defect != nil {
		return out.Defect, nil
	}
	return &aiengine.Defect{Reasoning: "assertion did not hold"}, nil
}

// ExtractText answers query about screenshot's content.
func (e *Engine) ExtractText(ctx context.Context, screenshot []byte, query string) (string, error) {
	var out extractResponse
	if err := e.post(ctx, "/v1/extract-text", map[string]string{
		"image": base64.StdEncoding.EncodeToString(screenshot),
		"query": query,
	}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (e *Engine) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if e.apiKey == "" {
		return core.NewDomainError(core.CloudApiKeyNotAvailable, "AI engine API key not configured")
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return core.NewDomainError(core.DriverFailure, "AI engine request failed").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return core.NewDomainError(core.DriverFailure, fmt.Sprintf("AI engine returned HTTP %d", resp.StatusCode)).
			WithDetails(string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse AI engine response: %w", err)
	}
	return nil
}
