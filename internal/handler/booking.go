package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-booking/internal/idempotency"
	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/middleware"
	"github.com/iliyamo/event-seat-booking/internal/model"
	"github.com/iliyamo/event-seat-booking/internal/service"
)

// IdempotencyKeyHeader lets clients retry a create safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// Bookings is the orchestrator surface used by BookingHandler.
// Implemented by service.BookingService.
type Bookings interface {
	CreateBooking(ctx context.Context, who model.Identity, in service.CreateBookingInput) (model.Booking, error)
	CancelBooking(ctx context.Context, who model.Identity, bookingID string) (model.Booking, error)
	CancelAllForEvent(ctx context.Context, eventID string) (int, error)
	PromoteWaitlist(ctx context.Context, eventID string) (int, error)
	ListBookings(ctx context.Context, who model.Identity, all bool) ([]model.Booking, error)
	GetBooking(ctx context.Context, who model.Identity, id string) (model.Booking, error)
	ActiveBookingForEvent(ctx context.Context, who model.Identity, eventID string) (model.ActiveBooking, error)
	Ticket(ctx context.Context, who model.Identity, id string) (model.TicketPayload, error)
}

// Idempotency remembers create requests by key.  Implemented by
// idempotency.Store, whose nil value disables the feature.
type Idempotency interface {
	Begin(ctx context.Context, userID, key, fingerprint string) (*model.Booking, error)
	Complete(ctx context.Context, userID, key, fingerprint string, b model.Booking) error
	Abort(ctx context.Context, userID, key string) error
}

// BookingHandler serves the /v1/bookings routes.
type BookingHandler struct {
	bookings Bookings
	idem     Idempotency
}

// NewBookingHandler panics when bookings is nil.  idem may be nil.
func NewBookingHandler(bookings Bookings, idem Idempotency) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{bookings: bookings, idem: idem}
}

// Create handles POST /v1/bookings.  The body carries eventId,
// numberOfTickets, paymentMethod and joinWaitlist.  A confirmed or
// waitlisted booking is returned with 201.  With an Idempotency-Key a
// retry of the same body replays the first booking, while the same key
// sent with a different body is rejected with 409.
func (h *BookingHandler) Create(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var in service.CreateBookingInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	key := c.Request().Header.Get(IdempotencyKeyHeader)
	fingerprint := idempotency.Fingerprint(in)
	if key != "" && h.idem != nil {
		prev, err := h.idem.Begin(ctx, who.ID, key, fingerprint)
		if err != nil {
			return fail(c, err)
		}
		if prev != nil {
			c.Response().Header().Set("Idempotent-Replayed", "true")
			return c.JSON(http.StatusCreated, echo.Map{"booking": prev})
		}
	}

	b, err := h.bookings.CreateBooking(ctx, who, in)
	if err != nil {
		if key != "" && h.idem != nil {
			if abortErr := h.idem.Abort(context.WithoutCancel(ctx), who.ID, key); abortErr != nil {
				logging.FromContext(ctx).WithError(abortErr).Warn("idempotency key not released")
			}
		}
		return fail(c, err)
	}
	if key != "" && h.idem != nil {
		if err := h.idem.Complete(context.WithoutCancel(ctx), who.ID, key, fingerprint, b); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("idempotency record not stored")
		}
	}

	msg := "Booking confirmed"
	if b.BookingStatus == model.BookingWaitlisted {
		msg = "Added to waitlist"
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg, "booking": b})
}

// Cancel handles PATCH /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.bookings.CancelBooking(c.Request().Context(), who, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Booking cancelled", "booking": b})
}

// CancelAllForEvent handles PATCH /v1/bookings/event/:eventId/cancel-all,
// called when an event is deleted.
func (h *BookingHandler) CancelAllForEvent(c echo.Context) error {
	eventID, ok := pathParam(c, "eventId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	n, err := h.bookings.CancelAllForEvent(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": n})
}

// PromoteWaitlist handles the internal and admin promotion triggers.
func (h *BookingHandler) PromoteWaitlist(c echo.Context) error {
	eventID, ok := pathParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	n, err := h.bookings.PromoteWaitlist(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"promoted": n})
}

// List handles GET /v1/bookings.  Admins may pass ?all=true.
func (h *BookingHandler) List(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	all := false
	if raw := c.QueryParam("all"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid all parameter"})
		}
		all = v
	}
	list, err := h.bookings.ListBookings(c.Request().Context(), who, all)
	if err != nil {
		return fail(c, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(list), "bookings": list})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.bookings.GetBooking(c.Request().Context(), who, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// Ticket handles GET /v1/bookings/:id/ticket and returns the QR payload.
func (h *BookingHandler) Ticket(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	t, err := h.bookings.Ticket(c.Request().Context(), who, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": t})
}

// ActiveForEvent handles GET /v1/bookings/event/:eventId/me.
func (h *BookingHandler) ActiveForEvent(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, ok := pathParam(c, "eventId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	a, err := h.bookings.ActiveBookingForEvent(c.Request().Context(), who, eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
