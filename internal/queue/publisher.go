package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends booking events to RabbitMQ.  A connection is dialled per
// publish; payments are rare enough that holding a channel open is not worth
// the reconnect bookkeeping.  Errors are logged and returned so the caller
// can ignore them without interrupting the request.
type Publisher struct {
	url string
	log *logrus.Entry
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *logrus.Entry) *Publisher {
	return &Publisher{url: url, log: log.WithField("component", "booking-publisher")}
}

// PublishBookingPaid publishes a BookingPaidEvent to the booking.paid queue.
// Messages are persistent and carry a random message id.
func (p *Publisher) PublishBookingPaid(ctx context.Context, event BookingPaidEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Warn("dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Warn("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		BookingPaidQueue, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		p.log.WithError(err).Warn("queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Warn("marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",               // default exchange
		BookingPaidQueue, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		pub,
	); err != nil {
		p.log.WithError(err).Warn("publish failed")
		return err
	}
	p.log.WithFields(logrus.Fields{
		"payment_code": event.PaymentCode,
		"message_id":   pub.MessageId,
	}).Debug("booking.paid published")
	return nil
}
