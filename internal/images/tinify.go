package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/retry"
)

// DefaultEndpoint is the Tinify shrink API.
const DefaultEndpoint = "https://api.tinify.com/shrink"

// TinifyClient talks to the Tinify (TinyPNG) shrink API.
type TinifyClient struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Policy     retry.Policy
	Recorder   metrics.Recorder
}

// NewTinifyClient returns a client with the given request timeout.
func NewTinifyClient(endpoint, apiKey string, timeout time.Duration, policy retry.Policy) *TinifyClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &TinifyClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Policy:     policy,
		Recorder:   metrics.NoopRecorder{},
	}
}

type shrinkResponse struct {
	Output struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"output"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Shrink uploads data and downloads the compressed result. Rate limiting,
// server errors and network failures are retried with the client's policy.
func (c *TinifyClient) Shrink(ctx context.Context, data []byte) ([]byte, error) {
	var out []byte
	err := c.Policy.Do(ctx, retryable, func(attempt int) error {
		if attempt > 0 {
			c.recorder().IncRetry("tinify")
		}
		location, err := c.upload(ctx, data)
		if err != nil {
			return err
		}
		out, err = c.download(ctx, location)
		return err
	})
	return out, err
}

func (c *TinifyClient) recorder() metrics.Recorder {
	if c.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return c.Recorder
}

func (c *TinifyClient) client() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *TinifyClient) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryNetwork, "failed to create tinify request").
			WithContext("url", c.Endpoint).Build()
	}
	req.SetBasicAuth("api", c.APIKey)
	req.Header.Set("User-Agent", "assetpipe")

	resp, err := c.client().Do(req)
	if err != nil {
		return "", networkError(ctx, err, c.Endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", statusError(resp, c.Endpoint)
	}
	var body shrinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.WrapError(err, errors.CategoryNetwork, "failed to decode tinify response").
			WithContext("url", c.Endpoint).Build()
	}
	location := body.Output.URL
	if location == "" {
		location = resp.Header.Get("Location")
	}
	if location == "" {
		return "", errors.NetworkError("tinify response has no output location").
			WithContext("url", c.Endpoint).Build()
	}
	return location, nil
}

func (c *TinifyClient) download(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to create tinify download").
			WithContext("url", location).Build()
	}
	req.SetBasicAuth("api", c.APIKey)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, networkError(ctx, err, location)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, statusError(resp, location)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(ctx, err, location)
	}
	return out, nil
}

func networkError(ctx context.Context, err error, url string) error {
	b := errors.WrapError(err, errors.CategoryNetwork, "tinify request failed").WithContext("url", url)
	if ctx.Err() == nil {
		b = b.Retryable()
	}
	return b.Build()
}

func statusError(resp *http.Response, url string) error {
	limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var body shrinkResponse
	msg := strings.ReplaceAll(string(limited), "\n", " ")
	if json.Unmarshal(limited, &body) == nil && body.Message != "" {
		msg = body.Error + ": " + body.Message
	}

	b := errors.NetworkError(fmt.Sprintf("tinify API error: %s", resp.Status)).
		WithContext("code", resp.StatusCode).
		WithContext("url", url).
		WithContext("response", msg)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		b = b.RateLimit()
	case resp.StatusCode >= 500:
		b = b.Retryable()
	case resp.StatusCode == http.StatusUnauthorized:
		b = errors.ConfigError("tinify rejected the API key").
			WithContext("code", resp.StatusCode).
			WithContext("response", msg)
	}
	return b.Build()
}

func retryable(err error) bool {
	classified, ok := errors.AsClassified(err)
	return ok && classified.CanRetry()
}
