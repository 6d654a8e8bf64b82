// Package tawhiri runs predictions against a Tawhiri v1 HTTP API.
package tawhiri

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lydakis/trajbridge/internal/engine"
)

// maxResponseSize bounds prediction response bodies. A float profile over
// several days is a few MB at most.
const maxResponseSize int64 = 64 << 20

// Error types reported by Tawhiri in {"error": {"type": ...}}.
const (
	errTypeRequest        = "RequestException"
	errTypePrediction     = "PredictionException"
	errTypeInvalidDataset = "InvalidDatasetException"
)

type apiError struct {
	Error *struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client is an engine.Engine backed by Tawhiri's HTTP API.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var _ engine.Engine = (*Client)(nil)

// New returns a client for the Tawhiri instance at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Normalize validates the payload and returns canonical query parameters
// encoded as a JSON object of strings.
func (c *Client) Normalize(_ context.Context, payload engine.Payload) (engine.Request, error) {
	params, err := normalize(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(params)
}

// Predict issues GET {base}/api/v1/ and returns the response body verbatim.
func (c *Client) Predict(ctx context.Context, req engine.Request) (engine.Result, error) {
	var params map[string]string
	if err := json.Unmarshal(req, &params); err != nil {
		return nil, fmt.Errorf("%w: normalized request: %v", engine.ErrInvalidRequest, err)
	}
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling tawhiri: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading tawhiri response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		if !json.Valid(body) {
			return nil, fmt.Errorf("tawhiri returned invalid JSON")
		}
		return engine.Result(body), nil
	}
	return nil, classifyError(resp.StatusCode, body)
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func classifyError(status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == nil {
		return fmt.Errorf("tawhiri: HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}

	desc := parsed.Error.Description
	switch parsed.Error.Type {
	case errTypePrediction, errTypeInvalidDataset:
		return fmt.Errorf("%w: %s", engine.ErrOutOfRange, desc)
	case errTypeRequest:
		return fmt.Errorf("%w: %s", engine.ErrInvalidRequest, desc)
	default:
		return fmt.Errorf("tawhiri: %s: %s", parsed.Error.Type, desc)
	}
}
