package model

// BookingStatus is the payment state of a booking.  The only legal
// transition is UNPAID -> PAID.
type BookingStatus string

const (
	StatusUnpaid BookingStatus = "UNPAID"
	StatusPaid   BookingStatus = "PAID"
)

// Booking records a seat selection against a generated payment code.
//
// Fields:
//  PaymentCode – unique code handed to the client (PAY-NNNNNN).
//  MovieID     – movie the seats belong to.
//  Time        – showtime label within that movie.
//  Seats       – seats requested at selection time.
//  TotalPrice  – price × len(Seats), fixed when the booking is created.
//  Status      – UNPAID until paid, then PAID forever.
type Booking struct {
	PaymentCode string        `json:"paymentCode"`
	MovieID     string        `json:"movieId"`
	Time        string        `json:"time"`
	Seats       []string      `json:"seats"`
	TotalPrice  float64       `json:"totalPrice"`
	Status      BookingStatus `json:"status"`
}

// Paid reports whether the booking has been paid.
func (b Booking) Paid() bool { return b.Status == StatusPaid }

func (b Booking) clone() Booking {
	seats := make([]string, len(b.Seats))
	copy(seats, b.Seats)
	b.Seats = seats
	return b
}
