// Package client talks to the gateway HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/internal/registry"
	"github.com/leapstack-labs/partql/pkg/executor"
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Problem httpapi.Problem // zero when the body was not a problem object
	Body    string
}

func (e *APIError) Error() string {
	if e.Problem.Title != "" {
		if e.Problem.Detail != "" {
			return fmt.Sprintf("%d %s: %s", e.Status, e.Problem.Title, e.Problem.Detail)
		}
		return fmt.Sprintf("%d %s", e.Status, e.Problem.Title)
	}
	return fmt.Sprintf("%d %s", e.Status, strings.TrimSpace(e.Body))
}

// Client is a gateway API client.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// ListContainers returns the registered containers.
func (c *Client) ListContainers(ctx context.Context) ([]registry.Container, error) {
	var out []registry.Container
	if err := c.do(ctx, http.MethodGet, "/containers/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateContainer registers a container.
func (c *Client) CreateContainer(ctx context.Context, name, partitionKeyPath string) (registry.Container, error) {
	req := map[string]string{"container": name, "partitionKeyPath": partitionKeyPath}
	var out registry.Container
	if err := c.do(ctx, http.MethodPost, "/containers/", req, &out); err != nil {
		return registry.Container{}, err
	}
	return out, nil
}

// Query runs sql against a container.
func (c *Client) Query(ctx context.Context, container, sql string) ([]executor.Document, error) {
	out := []executor.Document{}
	path := "/containers/" + url.PathEscape(container) + "/query"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"sql": sql}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutDocument upserts a document and returns what the unit stored.
func (c *Client) PutDocument(ctx context.Context, container string, doc json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/containers/" + url.PathEscape(container) + "/documents/"
	if err := c.do(ctx, http.MethodPut, path, doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDocument fetches a document from the unit owning partitionKeyValue.
func (c *Client) GetDocument(ctx context.Context, container, id, partitionKeyValue string) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/containers/" + url.PathEscape(container) + "/documents/" + url.PathEscape(id) +
		"?" + url.Values{"partitionKeyValue": {partitionKeyValue}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(data)}
		if p, ok := httpapi.DecodeProblem(data); ok {
			apiErr.Problem = p
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
