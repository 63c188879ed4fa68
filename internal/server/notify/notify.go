// Package notify holds the outbound notification collaborators: the mail
// transport used for confirmation links and credentials, and the webhook
// channel that reaches the sysadmins. Both are fire-and-forget from the
// registration flow's perspective; delivery failures are logged or alerted,
// never rolled back.
package notify

import "context"

// Mailer delivers a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Alerter posts an operational message to the sysadmin channel.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}
