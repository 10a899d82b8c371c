// Package queue defines the mail events exchanged over the message broker
// and the background consumer that turns them into outbound messages.
package queue

// Mail event kinds.
const (
	MailVerifyEmail   = "verify_email"
	MailResetPassword = "reset_password"
)

// MailQueueName is the durable queue auth mail events are published to.
const MailQueueName = "auth.mail"

// MailEvent is published when the auth service wants an email sent. It is
// fire-and-forget: registration and forgot-password never fail because mail
// could not be dispatched. The link is fully constructed by the publisher so
// consumers need no knowledge of frontend routing.
type MailEvent struct {
	Kind        string `json:"kind"`
	UserID      uint64 `json:"user_id"`
	Email       string `json:"email"`
	Link        string `json:"link"`
	RequestedAt string `json:"requested_at"`
}
