package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer implements Mailer over a plain SMTP relay. Authentication is
// used only when a user is configured; the usual deployment relays through
// a host-local MTA.
type SMTPMailer struct {
	addr     string
	from     string
	user     string
	password string

	// sendMail is a seam for tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(addr, from, user, password string) *SMTPMailer {
	return &SMTPMailer{
		addr:     addr,
		from:     from,
		user:     user,
		password: password,
		sendMail: smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.user != "" {
		host := m.addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.user, m.password, host)
	}

	if err := m.sendMail(m.addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
