// Package qdrant provides a vector index backed by a Qdrant server.
//
// It talks to the Qdrant REST API. Each collection has a named dense vector
// "dense" with cosine distance and, for hybrid collections, a named sparse
// vector "sparse" with the IDF modifier. Both candidate lists are fetched
// separately and fused client-side with the hybrid package.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the Qdrant REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// StatusError is a non-2xx response from Qdrant.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant error (status %d): %s", e.Code, e.Body)
}

// client performs JSON requests against the Qdrant API.
type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func newClient(cfg Config) *client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// envelope is the common Qdrant response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status any             `json:"status"`
}

// do sends a request and decodes the envelope's result into out.
// Transport failures wrap domain.ErrUpstreamUnavailable.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: qdrant: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: qdrant: read response: %w", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(&StatusError{Code: resp.StatusCode, Body: string(data)})
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// classify maps a status error onto domain sentinels.
func classify(err *StatusError) error {
	switch {
	case err.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case err.Code == http.StatusConflict:
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case err.Code == http.StatusTooManyRequests || err.Code >= 500:
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
}

// collectionPath returns the API path of a collection.
func collectionPath(id string, parts ...string) string {
	p := "/collections/" + url.PathEscape(id)
	if len(parts) > 0 {
		p += "/" + strings.Join(parts, "/")
	}
	return p
}

// isNotFound reports whether err is a 404 from Qdrant.
func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
