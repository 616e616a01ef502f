package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// EventClient is the seat ledger living in a separate event service.
type EventClient struct {
	base
	internalKey string
}

// NewEventClient targets baseURL.  internalKey is sent as X-Internal-Key
// on seat adjustments when non-empty.
func NewEventClient(baseURL, internalKey string, timeout time.Duration) *EventClient {
	return &EventClient{base: newBase(baseURL, timeout), internalKey: internalKey}
}

// GetEvent fetches the seat snapshot of an event.
func (c *EventClient) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	// The booking path needs the live count, not a cached snapshot.
	h := http.Header{"Cache-Control": []string{"no-cache"}}
	resp, err := c.do(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(eventID), nil, h)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: get event %s: %v", model.ErrDownstreamUnavailable, eventID, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp, eventID); err != nil {
		return model.Event{}, err
	}
	var out struct {
		Event model.Event `json:"event"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Event{}, fmt.Errorf("%w: decode event %s: %v", model.ErrDownstreamUnavailable, eventID, err)
	}
	return out.Event, nil
}

// AdjustSeats calls PATCH /v1/events/:id/seats.
func (c *EventClient) AdjustSeats(ctx context.Context, eventID string, seatsToBook int) (int, error) {
	h := http.Header{}
	if c.internalKey != "" {
		h.Set("X-Internal-Key", c.internalKey)
	}
	resp, err := c.do(ctx, http.MethodPatch, "/v1/events/"+url.PathEscape(eventID)+"/seats",
		map[string]int{"seatsToBook": seatsToBook}, h)
	if err != nil {
		return 0, fmt.Errorf("%w: adjust seats of %s: %v", model.ErrDownstreamUnavailable, eventID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest {
		msg := errorMessage(resp)
		if seatsToBook > 0 {
			return 0, fmt.Errorf("%w: %s", model.ErrInsufficientCapacity, msg)
		}
		return 0, fmt.Errorf("%w: %s", model.ErrValidation, msg)
	}
	if err := statusError(resp, eventID); err != nil {
		return 0, err
	}
	var out struct {
		AvailableSeats int `json:"availableSeats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode seats of %s: %v", model.ErrDownstreamUnavailable, eventID, err)
	}
	return out.AvailableSeats, nil
}

// statusError maps a non 2xx response onto the model taxonomy.
func statusError(resp *http.Response, eventID string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("event %s: %w", eventID, model.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", model.ErrValidation, errorMessage(resp))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: event service refused the call: %s", model.ErrDownstreamUnavailable, errorMessage(resp))
	}
	return fmt.Errorf("%w: event service returned %d: %s", model.ErrDownstreamUnavailable, resp.StatusCode, errorMessage(resp))
}
