package jobs

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers transactional email over SMTP. With no host configured it
// logs the message instead, which is what local development wants.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *slog.Logger
}

// NewMailer constructs a Mailer.
func NewMailer(host string, port int, username, password, from string, logger *slog.Logger) *Mailer {
	return &Mailer{host: host, port: port, username: username, password: password, from: from, logger: logger}
}

// Send delivers one message.
func (m *Mailer) Send(payload SendEmailPayload) error {
	if m.host == "" {
		m.logger.Info("mail (smtp not configured)",
			slog.String("to", payload.To),
			slog.String("subject", payload.Subject))
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", payload.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", payload.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(payload.Body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{payload.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("jobs: send mail: %w", err)
	}
	return nil
}
