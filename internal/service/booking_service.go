// Package service holds the booking state (catalog plus ledger) and the
// operations that change it.  Every operation runs under one mutex and
// persists the full snapshot before it returns, so a scheduled reset can
// never interleave with a selection or payment.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/utils"
)

// maxCodeAttempts bounds the retry loop that looks for an unused payment code.
const maxCodeAttempts = 32

var (
	// ErrPersist wraps snapshot store failures.  The in-memory state is left
	// as it was before the failed operation.
	ErrPersist = errors.New("persist snapshot")
	// ErrCodeSpaceExhausted is returned when no unused payment code was found.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique payment code")
)

// EventPublisher announces paid bookings.  Failures are logged only.
type EventPublisher interface {
	PublishBookingPaid(ctx context.Context, event queue.BookingPaidEvent) error
}

// CacheInvalidator drops cached catalog responses after availability changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CodeGenerator produces candidate payment codes.
type CodeGenerator func() (string, error)

// Option customises a BookingService.
type Option func(*BookingService)

// WithPublisher sets the publisher notified after each successful payment.
func WithPublisher(p EventPublisher) Option { return func(s *BookingService) { s.events = p } }

// WithCacheInvalidator sets the cache purged after payments and resets.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *BookingService) { s.cache = c }
}

// WithCodeGenerator replaces the random payment code generator.
func WithCodeGenerator(g CodeGenerator) Option { return func(s *BookingService) { s.codes = g } }

// WithResetPasswordHash sets the bcrypt hash the reset secret is checked
// against.  Without it every ResetWithSecret call is unauthorized.
func WithResetPasswordHash(hash string) Option {
	return func(s *BookingService) { s.resetHash = hash }
}

// WithLogger sets the logger used for best-effort side effects.
func WithLogger(l *logrus.Entry) Option { return func(s *BookingService) { s.log = l } }

// WithClock replaces time.Now, used for event timestamps.
func WithClock(now func() time.Time) Option { return func(s *BookingService) { s.now = now } }

// BookingService owns the catalog and booking ledger.
type BookingService struct {
	mu      sync.Mutex
	state   *model.Snapshot
	initial *model.Snapshot
	store   repository.SnapshotStore

	codes     CodeGenerator
	events    EventPublisher
	cache     CacheInvalidator
	resetHash string
	log       *logrus.Entry
	now       func() time.Time
}

// NewBookingService loads the live snapshot from store.  When the store is
// empty it is seeded with a deep copy of initial.  initial itself is kept
// untouched as the reset target.
func NewBookingService(ctx context.Context, store repository.SnapshotStore, initial *model.Snapshot, opts ...Option) (*BookingService, error) {
	if store == nil || initial == nil {
		return nil, errors.New("booking service needs a store and an initial snapshot")
	}
	s := &BookingService{
		initial: initial.Clone(),
		store:   store,
		codes:   utils.NewPaymentCode,
		log:     logrus.NewEntry(logrus.StandardLogger()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	current, err := store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		current = s.initial.Clone()
		if err := store.Save(ctx, current); err != nil {
			return nil, fmt.Errorf("%w: seed: %v", ErrPersist, err)
		}
		s.log.Info("snapshot store seeded from initial snapshot")
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	current.Normalize()
	s.state = current
	return s, nil
}

// ListMovies returns a copy of the catalog including seats consumed by paid
// bookings.
func (s *BookingService) ListMovies(_ context.Context) []model.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone().Movies
}

// SelectSeats validates the seats against the showtime and records a new
// UNPAID booking.  Availability is not changed; seats leave the available
// set only when the booking is paid.
func (s *BookingService) SelectSeats(ctx context.Context, movieID, showTime string, seats []string) (model.Booking, error) {
	if err := model.ValidateSeats(seats); err != nil {
		return model.Booking{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state.Movies.FindShowtime(movieID, showTime)
	if err != nil {
		return model.Booking{}, err
	}
	if missing := st.Unavailable(seats); len(missing) > 0 {
		return model.Booking{}, &model.SeatsUnavailableError{Seats: missing}
	}
	code, err := s.uniqueCode()
	if err != nil {
		return model.Booking{}, err
	}

	requested := make([]string, len(seats))
	copy(requested, seats)
	booking := model.Booking{
		PaymentCode: code,
		MovieID:     movieID,
		Time:        showTime,
		Seats:       requested,
		TotalPrice:  st.Price * float64(len(seats)),
		Status:      model.StatusUnpaid,
	}

	next := s.state.Clone()
	next.Bookings = append(next.Bookings, booking)
	if err := s.commit(ctx, next); err != nil {
		return model.Booking{}, err
	}
	return booking, nil
}

// Pay marks the booking PAID and removes its seats from the showtime.  When
// an overlapping booking was paid first, the payment fails with
// *model.SeatsUnavailableError and the booking stays UNPAID.
func (s *BookingService) Pay(ctx context.Context, code string) (model.Booking, error) {
	paid, title, err := s.pay(ctx, code)
	if err != nil {
		return model.Booking{}, err
	}

	s.invalidate(ctx)
	if s.events != nil {
		ev := queue.BookingPaidEvent{
			PaymentCode: paid.PaymentCode,
			MovieID:     paid.MovieID,
			MovieTitle:  title,
			Time:        paid.Time,
			Seats:       paid.Seats,
			TotalPrice:  paid.TotalPrice,
			PaidAt:      s.now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishBookingPaid(ctx, ev); err != nil {
			s.log.WithError(err).WithField("payment_code", code).Warn("booking.paid not published")
		}
	}
	return paid, nil
}

func (s *BookingService) pay(ctx context.Context, code string) (model.Booking, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.state.Bookings.Find(code)
	if idx < 0 {
		return model.Booking{}, "", model.ErrBookingNotFound
	}
	if s.state.Bookings[idx].Paid() {
		return model.Booking{}, "", model.ErrAlreadyPaid
	}

	next := s.state.Clone()
	b := &next.Bookings[idx]
	movie, err := next.Movies.FindMovie(b.MovieID)
	if err != nil {
		return model.Booking{}, "", err
	}
	st, err := next.Movies.FindShowtime(b.MovieID, b.Time)
	if err != nil {
		return model.Booking{}, "", err
	}
	if missing := st.Unavailable(b.Seats); len(missing) > 0 {
		return model.Booking{}, "", &model.SeatsUnavailableError{Seats: missing}
	}

	b.Status = model.StatusPaid
	if err := next.Movies.CommitSeats(b.MovieID, b.Time, b.Seats); err != nil {
		return model.Booking{}, "", err
	}
	paid := *b
	title := movie.Title
	if err := s.commit(ctx, next); err != nil {
		return model.Booking{}, "", err
	}
	return paid, title, nil
}

// Status returns the booking for a payment code.
func (s *BookingService) Status(_ context.Context, code string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.state.Bookings.Find(code)
	if idx < 0 {
		return model.Booking{}, model.ErrBookingNotFound
	}
	return s.state.Clone().Bookings[idx], nil
}

// Reset restores the catalog to the initial snapshot and empties the ledger.
// It is called both by the scheduler and by ResetWithSecret.
func (s *BookingService) Reset(ctx context.Context) error {
	s.mu.Lock()
	next := s.initial.Clone()
	next.Bookings = model.Ledger{}
	err := s.commit(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("database reset to initial state")
	return nil
}

// ResetWithSecret resets only when secret matches the configured hash.
func (s *BookingService) ResetWithSecret(ctx context.Context, secret string) error {
	if !utils.VerifyPassword(s.resetHash, secret) {
		return model.ErrUnauthorized
	}
	return s.Reset(ctx)
}

// commit saves next and, only when that succeeds, makes it the live state.
// Callers hold s.mu.
func (s *BookingService) commit(ctx context.Context, next *model.Snapshot) error {
	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.state = next
	return nil
}

// uniqueCode draws codes until one is not in the ledger.  Callers hold s.mu.
func (s *BookingService) uniqueCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.codes()
		if err != nil {
			return "", fmt.Errorf("generate payment code: %w", err)
		}
		if !s.state.Bookings.Has(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (s *BookingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("catalog cache not invalidated")
	}
}
