package model

import (
	"fmt"
	"strings"
)

// Catalog is the ordered list of movies offered for booking.
type Catalog []Movie

// Ledger is the list of bookings created since the last reset.
type Ledger []Booking

// Snapshot is the whole persisted state: the catalog and the booking ledger.
// It is written as one document on every mutation.
type Snapshot struct {
	Movies   Catalog `json:"movies"`
	Bookings Ledger  `json:"bookings"`
}

// FindMovie returns a pointer into the catalog for the given movie id.
func (c Catalog) FindMovie(movieID string) (*Movie, error) {
	for i := range c {
		if c[i].ID == movieID {
			return &c[i], nil
		}
	}
	return nil, ErrMovieNotFound
}

// FindShowtime resolves a showtime by movie id and time label.  The returned
// pointer aliases catalog storage.
func (c Catalog) FindShowtime(movieID, time string) (*Showtime, error) {
	m, err := c.FindMovie(movieID)
	if err != nil {
		return nil, err
	}
	for i := range m.Times {
		if m.Times[i].Time == time {
			return &m.Times[i], nil
		}
	}
	return nil, ErrShowtimeNotFound
}

// CommitSeats removes the seats from the showtime's available set.  Callers
// must persist the snapshot afterwards.
func (c Catalog) CommitSeats(movieID, time string, seats []string) error {
	st, err := c.FindShowtime(movieID, time)
	if err != nil {
		return fmt.Errorf("commit seats: %w", err)
	}
	st.removeSeats(seats)
	return nil
}

// Find returns the index of the booking with the given payment code, or -1.
func (l Ledger) Find(code string) int {
	for i := range l {
		if l[i].PaymentCode == code {
			return i
		}
	}
	return -1
}

// Has reports whether a payment code is already in use.
func (l Ledger) Has(code string) bool { return l.Find(code) >= 0 }

// Clone returns a deep copy so the copy can be mutated without touching the
// original.  Nil slices come back as empty slices.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Movies:   make(Catalog, len(s.Movies)),
		Bookings: make(Ledger, len(s.Bookings)),
	}
	for i, m := range s.Movies {
		out.Movies[i] = m.clone()
	}
	for i, b := range s.Bookings {
		out.Bookings[i] = b.clone()
	}
	return out
}

// Normalize replaces nil slices with empty ones so that a freshly decoded
// document serialises back with [] rather than null.
func (s *Snapshot) Normalize() {
	if s.Movies == nil {
		s.Movies = Catalog{}
	}
	if s.Bookings == nil {
		s.Bookings = Ledger{}
	}
	for i := range s.Movies {
		if s.Movies[i].Times == nil {
			s.Movies[i].Times = []Showtime{}
		}
		for j := range s.Movies[i].Times {
			if s.Movies[i].Times[j].AvailableSeats == nil {
				s.Movies[i].Times[j].AvailableSeats = []string{}
			}
		}
	}
}

// ValidateSeats rejects an empty seat list, blank seat ids and duplicates.
func ValidateSeats(seats []string) error {
	if len(seats) == 0 {
		return ErrInvalidSeats
	}
	seen := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		if strings.TrimSpace(seat) == "" {
			return fmt.Errorf("%w: blank seat id", ErrInvalidSeats)
		}
		if _, dup := seen[seat]; dup {
			return fmt.Errorf("%w: %s requested twice", ErrInvalidSeats, seat)
		}
		seen[seat] = struct{}{}
	}
	return nil
}
