// Package client is an HTTP client for the tracescope API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/rsclarke/tracescope/internal/types"
)

// Lookup errors, matched with errors.Is.
var (
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrSpecNotFound     = errors.New("spec not found")
)

// Client calls the tracescope API.
type Client struct {
	BaseURL string
	// APIToken is sent as a bearer token when set.
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a Client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIToken:   apiToken,
		HTTPClient: http.DefaultClient,
	}
}

// IngestTrace submits one trace.
func (c *Client) IngestTrace(ctx context.Context, trace types.TraceRequest) (*types.IngestResponse, error) {
	var result types.IngestResponse
	err := c.do(ctx, "POST", "/v1/traces", trace, &result, http.StatusCreated, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// IngestBatch submits many traces in one request.
func (c *Client) IngestBatch(ctx context.Context, traces []types.TraceRequest) (*types.BatchResponse, error) {
	var result types.BatchResponse
	if err := c.do(ctx, "POST", "/v1/traces/batch", types.BatchRequest{Traces: traces}, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListEndpoints returns the endpoint inventory.
func (c *Client) ListEndpoints(ctx context.Context) (*types.ListEndpointsResponse, error) {
	var result types.ListEndpointsResponse
	if err := c.do(ctx, "GET", "/v1/endpoints", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetEndpoint returns one endpoint with its data fields.
func (c *Client) GetEndpoint(ctx context.Context, id string) (*types.EndpointDetailResponse, error) {
	var result types.EndpointDetailResponse
	err := c.do(ctx, "GET", "/v1/endpoints/"+url.PathEscape(id), nil, &result, http.StatusOK)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSpec returns a stored document by name.
func (c *Client) GetSpec(ctx context.Context, name string) (*types.SpecResponse, error) {
	var result types.SpecResponse
	err := c.do(ctx, "GET", "/v1/specs/"+url.PathEscape(name), nil, &result, http.StatusOK)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrSpecNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Generate runs a spec generation cycle on the server.
func (c *Client) Generate(ctx context.Context) (*types.GenerateResponse, error) {
	var result types.GenerateResponse
	if err := c.do(ctx, "POST", "/v1/specs/generate", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// StatusError is a non-success API response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, accept ...int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		return parseError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
