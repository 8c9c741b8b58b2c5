// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingPaidQueue is the durable queue that receives BookingPaidEvent
// messages.
const BookingPaidQueue = "booking.paid"

// BookingPaidEvent is published when a booking moves from UNPAID to PAID.
// It carries enough information for downstream consumers to log or notify
// without reading the snapshot store.
type BookingPaidEvent struct {
	PaymentCode string   `json:"payment_code"`
	MovieID     string   `json:"movie_id"`
	MovieTitle  string   `json:"movie_title"`
	Time        string   `json:"time"`
	Seats       []string `json:"seats"`
	TotalPrice  float64  `json:"total_price"`
	PaidAt      string   `json:"paid_at"`
}
