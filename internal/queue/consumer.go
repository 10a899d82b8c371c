package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Sender delivers a rendered mail message. The production binary wires an
// SMTP-backed implementation; dev and tests use LogSender.
type Sender interface {
	Send(to, subject, body string) error
}

// LogSender writes outbound mail to the log instead of delivering it.
type LogSender struct{ Log zerolog.Logger }

func (s LogSender) Send(to, subject, body string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail (not delivered, log sender)")
	return nil
}

// StartMailConsumer connects to the broker, declares the auth.mail queue and
// consumes events until the process exits. It runs a reconnect loop with
// capped backoff; processing errors reject the message without requeue so a
// poison message cannot wedge the worker.
func StartMailConsumer(url string, sender Sender, log zerolog.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("mail-consumer: dial failed")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, sender, log); err != nil {
			log.Warn().Err(err).Msg("mail-consumer: consume loop ended, reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, sender Sender, log zerolog.Logger) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Warn().Err(err).Msg("mail-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(MailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(MailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, sender); err != nil {
			log.Error().Err(err).Msg("mail-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, sender Sender) error {
	var ev MailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	subject, text, err := renderMail(ev)
	if err != nil {
		return err
	}
	return sender.Send(ev.Email, subject, text)
}

func renderMail(ev MailEvent) (subject, body string, err error) {
	switch ev.Kind {
	case MailVerifyEmail:
		return "Verify your email address",
			"Welcome! Confirm your email address by opening this link:\n\n" + ev.Link + "\n\nThe link expires in 24 hours.",
			nil
	case MailResetPassword:
		return "Reset your password",
			"A password reset was requested for your account. Open this link to choose a new password:\n\n" + ev.Link + "\n\nThe link expires in 30 minutes. If you did not request this, ignore this message.",
			nil
	default:
		return "", "", fmt.Errorf("unknown mail kind %q", ev.Kind)
	}
}
