// Package service contains outbound collaborators of the auth core. The
// mail publisher pushes durable events to RabbitMQ; delivery itself happens
// in the consumer worker.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/openlearn/auth-service/internal/queue"
)

// MailPublisher publishes MailEvents to the auth.mail queue. Errors are
// returned so callers can log-and-ignore; a failed publish must never fail
// registration or forgot-password.
type MailPublisher struct {
	URL string
	Log zerolog.Logger
}

func NewMailPublisher(url string, log zerolog.Logger) *MailPublisher {
	return &MailPublisher{URL: url, Log: log}
}

// PublishMail dials the broker, declares the durable queue and publishes one
// persistent JSON message. Dialing per publish keeps the publisher free of
// connection state; auth mail volume is low enough that this is fine.
func (p *MailPublisher) PublishMail(ctx context.Context, ev queue.MailEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Warn().Err(err).Msg("mail-publisher: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn().Err(err).Msg("mail-publisher: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.MailQueueName, true, false, false, false, nil); err != nil {
		p.Log.Warn().Err(err).Msg("mail-publisher: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.MailQueueName, false, false, pub); err != nil {
		p.Log.Warn().Err(err).Msg("mail-publisher: publish failed")
		return err
	}
	return nil
}
