package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/model"
)

// BookingService is the behaviour the HTTP layer needs from the booking
// state holder.
type BookingService interface {
	ListMovies(ctx context.Context) []model.Movie
	SelectSeats(ctx context.Context, movieID, time string, seats []string) (model.Booking, error)
	Pay(ctx context.Context, code string) (model.Booking, error)
	Status(ctx context.Context, code string) (model.Booking, error)
	ResetWithSecret(ctx context.Context, secret string) error
}

// BookingHandler serves the public booking API.  Every error body has the
// shape {"error": "..."}; seat conflicts add "unavailableSeats".
type BookingHandler struct {
	svc BookingService
	log *logrus.Entry
}

// NewBookingHandler panics on a nil service, like the other constructors in
// this package.
func NewBookingHandler(svc BookingService, log *logrus.Entry) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc, log: log.WithField("component", "booking-handler")}
}

type selectSeatRequest struct {
	MovieID string   `json:"movieId" validate:"required"`
	Time    string   `json:"time" validate:"required"`
	Seats   []string `json:"seats" validate:"required,min=1,unique,dive,required,notblank"`
}

type selectSeatResponse struct {
	PaymentCode string              `json:"paymentCode"`
	Status      model.BookingStatus `json:"status"`
	TotalPrice  float64             `json:"totalPrice"`
}

type payingRequest struct {
	PaymentCode string `json:"paymentCode" validate:"required"`
}

type payingResponse struct {
	Message string        `json:"message"`
	Booking model.Booking `json:"booking"`
}

type resetRequest struct {
	Password string `json:"password"`
}

// ListMovies handles GET /movies and returns every movie with its current
// seat availability.
func (h *BookingHandler) ListMovies(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.ListMovies(c.Request().Context()))
}

// SelectSeat handles POST /select-seat.  It creates an UNPAID booking and
// returns its payment code and total price.  Unknown movie or showtime
// yields 404; unavailable seats yield 400 with the offending seat list.
func (h *BookingHandler) SelectSeat(c echo.Context) error {
	var body selectSeatRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}
	b, err := h.svc.SelectSeats(c.Request().Context(), body.MovieID, body.Time, body.Seats)
	if err != nil {
		var unavailable *model.SeatsUnavailableError
		switch {
		case errors.Is(err, model.ErrInvalidSeats):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, model.ErrMovieNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Movie not found"})
		case errors.Is(err, model.ErrShowtimeNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Showtime not available"})
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":            "Some seats are not available",
				"unavailableSeats": unavailable.Seats,
			})
		}
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, selectSeatResponse{
		PaymentCode: b.PaymentCode,
		Status:      b.Status,
		TotalPrice:  b.TotalPrice,
	})
}

// PaymentStatus handles GET /payment-status?paymentCode=X.
func (h *BookingHandler) PaymentStatus(c echo.Context) error {
	code := c.QueryParam("paymentCode")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "paymentCode is required"})
	}
	b, err := h.svc.Status(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, model.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Booking not found"})
		}
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Paying handles POST /paying.  A booking is paid once; a second attempt is
// rejected with 400.  When another booking already paid for one of the
// seats, the response is 409 and the booking stays UNPAID.
func (h *BookingHandler) Paying(c echo.Context) error {
	var body payingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}
	b, err := h.svc.Pay(c.Request().Context(), body.PaymentCode)
	if err != nil {
		var unavailable *model.SeatsUnavailableError
		switch {
		case errors.Is(err, model.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Invalid payment code"})
		case errors.Is(err, model.ErrAlreadyPaid):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "This booking is already paid"})
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":            "Seats were already sold to another booking",
				"unavailableSeats": unavailable.Seats,
			})
		}
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, payingResponse{Message: "Payment successful", Booking: b})
}

// ResetDB handles POST /reset-db.  The shared password must match; anything
// else is 401 and leaves the state untouched.
func (h *BookingHandler) ResetDB(c echo.Context) error {
	var body resetRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.svc.ResetWithSecret(c.Request().Context(), body.Password); err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Database reset successfully"})
}

// internal logs err and answers 500 without leaking details.
func (h *BookingHandler) internal(c echo.Context, err error) error {
	h.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

func validationMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
