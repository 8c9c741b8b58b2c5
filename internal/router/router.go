package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking/internal/handler"
)

// RegisterRoutes registers the health check.  It carries no middleware so
// probes keep working when Redis is down.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the booking API.  cache wraps the catalog
// listing only: payment status changes on every payment and must never be
// served from cache.  limit wraps the routes that write the snapshot.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/movies", h.ListMovies, cache)
	e.GET("/payment-status", h.PaymentStatus)

	e.POST("/select-seat", h.SelectSeat, limit)
	e.POST("/paying", h.Paying, limit)
	e.POST("/reset-db", h.ResetDB, limit)
}
