// Package client holds the HTTP clients for the collaborators the booking
// engine consumes over the network: the identity verifier and, when the
// seat ledger runs as its own service, the event component.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/event-seat-booking/internal/logging"
)

// maxErrorBody caps how much of an error response is read for the message.
const maxErrorBody = 4 << 10

type base struct {
	url  string
	http *http.Client
}

func newBase(baseURL string, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return base{
		url:  strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// do sends a JSON request and returns the response.  The caller closes the body.
func (b base) do(ctx context.Context, method, path string, in any, header http.Header) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url+path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return b.http.Do(req)
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from a
// failed response, falling back to the status text.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}
