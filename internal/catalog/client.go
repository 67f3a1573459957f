package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/af-corp/pricewatch/internal/httputil"
)

// ErrNotFound is returned when the catalog has no record for a slug.
var ErrNotFound = errors.New("catalog: not found")

const defaultBaseURL = "https://openrouter.ai"

// Client talks to the upstream catalog API: model and provider listings,
// public model pages and usage-accounting verification calls. Every call is
// retried on transient failure with bounded exponential backoff and surfaces
// a typed error after exhaustion.
type Client struct {
	baseURL string
	apiKey  string
	referer string
	http    *http.Client
}

func NewClient(apiKey string, timeout time.Duration, referer string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		referer: referer,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
				ForceAttemptHTTP2: true,
			},
		},
	}
}

// WithBaseURL overrides the catalog base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// ListModels fetches all models matching the filters.
func (c *Client) ListModels(ctx context.Context, f Filters) ([]Model, error) {
	q := url.Values{}
	if f.SupportedParameters != "" {
		q.Set("supported_parameters", f.SupportedParameters)
	}
	if f.InputModalities != "" {
		q.Set("input_modalities", f.InputModalities)
	}
	if f.OutputModalities != "" {
		q.Set("output_modalities", f.OutputModalities)
	}
	if f.Distillable != nil {
		q.Set("distillable", fmt.Sprintf("%t", *f.Distillable))
	}

	endpoint := c.baseURL + "/api/v1/models"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	var payload struct {
		Data []Model `json:"data"`
	}
	if err := c.getJSON(ctx, "list models", endpoint, 3, &payload); err != nil {
		return nil, err
	}
	slog.Info("models fetched", "count", len(payload.Data))
	return payload.Data, nil
}

// ListProviders fetches all providers known to the catalog.
func (c *Client) ListProviders(ctx context.Context) ([]Provider, error) {
	var payload struct {
		Data []Provider `json:"data"`
	}
	endpoint := c.baseURL + "/api/v1/providers"
	if err := c.getJSON(ctx, "list providers", endpoint, 3, &payload); err != nil {
		return nil, err
	}
	slog.Info("providers fetched", "count", len(payload.Data))
	return payload.Data, nil
}

// ModelPageHTML fetches the public page for a model slug, used to extract the
// provider list.
func (c *Client) ModelPageHTML(ctx context.Context, slug string) (string, error) {
	endpoint := c.baseURL + "/" + slug
	body, err := c.do(ctx, "fetch model page", 3, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// VerifyUsage makes a minimal one-token completion call with usage accounting
// enabled and returns the observed usage block. Used to spot-check collected
// pricing against what is actually billed.
func (c *Client) VerifyUsage(ctx context.Context, slug string) (*UsageReport, error) {
	payload := map[string]any{
		"model":      slug,
		"messages":   []map[string]string{{"role": "user", "content": "ping"}},
		"max_tokens": 1,
		"usage":      map[string]bool{"include": true},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal verification request: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/chat/completions"
	body, err := c.do(ctx, "verify usage", 2, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Usage *UsageReport `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal verification response: %w", err)
	}
	return resp.Usage, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, attempts int, dest any) error {
	body, err := c.do(ctx, op, attempts, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", op, err)
	}
	return nil
}

// do runs one request with the shared retry policy and auth headers.
func (c *Client) do(ctx context.Context, op string, attempts int, build func() (*http.Request, error)) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: build request: %w", op, err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if c.referer != "" {
			req.Header.Set("HTTP-Referer", c.referer)
			req.Header.Set("X-Title", "pricewatch")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &httputil.TransportError{Op: op, URL: req.URL.String(), Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return httputil.StatusError(op, req.URL.String(), resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &httputil.TransportError{Op: op, URL: req.URL.String(), Err: err}
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(httputil.RetryPolicy(attempts), ctx))
	if err != nil {
		slog.Error("catalog request failed", "op", op, "error", err)
		return nil, err
	}
	return body, nil
}
