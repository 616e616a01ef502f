package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// Seats is the local seat ledger.  Implemented by service.SeatService.
type Seats interface {
	DefineEvent(ctx context.Context, e model.Event) (model.Event, error)
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	AdjustSeats(ctx context.Context, eventID string, seatsToBook int) (int, error)
}

// EventHandler serves the seat ledger routes.
type EventHandler struct {
	seats Seats
}

// NewEventHandler panics when seats is nil.
func NewEventHandler(seats Seats) *EventHandler {
	if seats == nil {
		panic("nil seat ledger passed to NewEventHandler")
	}
	return &EventHandler{seats: seats}
}

// Get handles GET /v1/events/:id and returns the seat snapshot.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.seats.GetEvent(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev})
}

// AdjustSeats handles PATCH /v1/events/:id/seats with body
// {"seatsToBook": n}.  Positive n reserves, negative n releases.  Not
// enough seats is answered with 400.
func (h *EventHandler) AdjustSeats(c echo.Context) error {
	id, ok := pathParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		SeatsToBook *int `json:"seatsToBook"`
	}
	if err := c.Bind(&body); err != nil || body.SeatsToBook == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seatsToBook is required"})
	}
	left, err := h.seats.AdjustSeats(c.Request().Context(), id, *body.SeatsToBook)
	if errors.Is(err, model.ErrInsufficientCapacity) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Not enough seats available"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"availableSeats": left})
}

type defineEventRequest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Venue    string  `json:"venue"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Price    float64 `json:"price"`
	Capacity int     `json:"capacity"`
	Status   string  `json:"status"`
}

// parseDate accepts a plain calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Define handles POST /v1/internal/events.  The event-management service
// calls it when an event is created; available seats start at capacity.
func (h *EventHandler) Define(c echo.Context) error {
	var req defineEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = model.EventStatusUpcoming
	}
	ev, err := h.seats.DefineEvent(c.Request().Context(), model.Event{
		ID:       req.ID,
		Title:    strings.TrimSpace(req.Title),
		Venue:    strings.TrimSpace(req.Venue),
		Date:     date,
		Time:     strings.TrimSpace(req.Time),
		Price:    req.Price,
		Capacity: req.Capacity,
		Status:   status,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"event": ev})
}
