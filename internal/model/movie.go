package model

// Movie is a catalog entry.  Display fields carry no semantics; only ID and
// Times are used by booking logic.
//
// Fields:
//  ID              – unique movie identifier (referenced by bookings).
//  Title           – display title.
//  Genre           – display genre.
//  DurationMinutes – running time in minutes.
//  Rating          – age rating label.
//  Times           – ordered showtimes for this movie.
type Movie struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Genre           string     `json:"genre,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Rating          string     `json:"rating,omitempty"`
	Times           []Showtime `json:"times"`
}

// Showtime is one screening of a movie.  Time is unique within its movie and
// AvailableSeats holds the seat identifiers that no paid booking has claimed.
type Showtime struct {
	Time           string   `json:"time"`
	Price          float64  `json:"price"`
	AvailableSeats []string `json:"availableSeats"`
}

// Unavailable returns the requested seats that are not in the available set,
// preserving request order.  An empty result means every seat can be sold.
func (s *Showtime) Unavailable(seats []string) []string {
	free := make(map[string]struct{}, len(s.AvailableSeats))
	for _, seat := range s.AvailableSeats {
		free[seat] = struct{}{}
	}
	missing := make([]string, 0)
	for _, seat := range seats {
		if _, ok := free[seat]; !ok {
			missing = append(missing, seat)
		}
	}
	return missing
}

// removeSeats drops the given seats from the available set.  The result is
// never nil so the showtime keeps serialising as an empty JSON array.
func (s *Showtime) removeSeats(seats []string) {
	taken := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		taken[seat] = struct{}{}
	}
	kept := make([]string, 0, len(s.AvailableSeats))
	for _, seat := range s.AvailableSeats {
		if _, ok := taken[seat]; !ok {
			kept = append(kept, seat)
		}
	}
	s.AvailableSeats = kept
}

func (s Showtime) clone() Showtime {
	seats := make([]string, len(s.AvailableSeats))
	copy(seats, s.AvailableSeats)
	s.AvailableSeats = seats
	return s
}

func (m Movie) clone() Movie {
	times := make([]Showtime, len(m.Times))
	for i, t := range m.Times {
		times[i] = t.clone()
	}
	m.Times = times
	return m
}
