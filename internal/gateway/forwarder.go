package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/leapstack-labs/partql/internal/metrics"
)

// forwarder relays requests to units.
type forwarder struct {
	client  *http.Client
	metrics *metrics.Metrics
}

// relayed is a unit response, buffered so it can be replayed verbatim.
type relayed struct {
	status      int
	contentType string
	body        []byte
}

// forward sends a request to a unit and buffers the answer.
func (f *forwarder) forward(ctx context.Context, method, url string, body []byte) (*relayed, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request to %s: %w", url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.ObserveForward("error")
		return nil, fmt.Errorf("forward %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		f.metrics.ObserveForward("error")
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	f.metrics.ObserveForward("ok")
	return &relayed{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

// write replays the unit response unchanged.
func (r *relayed) write(w http.ResponseWriter) {
	if r.contentType != "" {
		w.Header().Set("Content-Type", r.contentType)
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body)
}
