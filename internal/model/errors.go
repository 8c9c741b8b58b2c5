package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the service and handler layers.  Handlers map
// them to HTTP status codes with errors.Is.
var (
	ErrMovieNotFound    = errors.New("movie not found")
	ErrShowtimeNotFound = errors.New("showtime not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyPaid      = errors.New("booking already paid")
	ErrSeatsUnavailable = errors.New("seats unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidSeats     = errors.New("seats must be a non-empty list of distinct, non-blank seat ids")
)

// SeatsUnavailableError lists the seats that blocked a selection or payment.
// It matches ErrSeatsUnavailable under errors.Is.
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ","))
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }
