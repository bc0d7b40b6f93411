// Package presets stores and retrieves named control presets (reward weight
// sets, parameter bundles, poses) through the backend's REST surface.
package presets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/config"
)

// ErrNotFound is returned when the named preset does not exist.
var ErrNotFound = errors.New("preset not found")

// Preset is a named bundle of control values that can be applied to the
// simulation in one step.
type Preset struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Values      map[string]any `json:"values"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}

// Client talks to the preset store.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a preset store client from configuration.
func NewClient(cfg *config.PresetsConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("presets"),
	}
}

// List returns all stored presets.
func (c *Client) List(ctx context.Context) ([]Preset, error) {
	var out []Preset
	if err := c.do(ctx, http.MethodGet, "/api/presets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one preset by name.
func (c *Client) Get(ctx context.Context, name string) (*Preset, error) {
	var out Preset
	if err := c.do(ctx, http.MethodGet, "/api/presets/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save creates or replaces a preset.
func (c *Client) Save(ctx context.Context, p *Preset) error {
	if p.Name == "" {
		return errors.New("preset name required")
	}
	return c.do(ctx, http.MethodPut, "/api/presets/"+url.PathEscape(p.Name), p, nil)
}

// Delete removes a preset. Deleting a missing preset returns ErrNotFound.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/presets/"+url.PathEscape(name), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("preset store error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
