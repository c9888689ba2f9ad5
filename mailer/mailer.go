// mailer.go - Outbound email
//
// A Message goes out in a single SMTP transaction. Bulk notifications put
// every recipient in Bcc so addresses are not disclosed to each other.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"cima-backend/logging"
)

type Message struct {
	To      []string // Visible recipients
	Bcc     []string // Hidden recipients
	Subject string
	HTML    string
}

// Recipients returns every envelope address of the message.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Bcc))
	out = append(out, m.To...)
	return append(out, m.Bcc...)
}

// Sender delivers one message per call.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

var ErrNoRecipients = errors.New("mailer: message has no recipients")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	StartTLS bool
}

// SMTPSender talks to an SMTP relay directly.
type SMTPSender struct {
	cfg         SMTPConfig
	dialTimeout time.Duration
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.FromName == "" {
		cfg.FromName = "CIMA"
	}
	return &SMTPSender{cfg: cfg, dialTimeout: 30 * time.Second}
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return ErrNoRecipients
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if s.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("start TLS: %w", err)
			}
		}
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message: %w", err)
	}
	if _, err := w.Write(s.build(msg)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	_ = client.Quit() // message already accepted
	return nil
}

func (s *SMTPSender) build(msg *Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", headerValue(s.cfg.FromName)), headerValue(s.cfg.From))
	if len(msg.To) > 0 {
		to := make([]string, len(msg.To))
		for i, addr := range msg.To {
			to[i] = headerValue(addr)
		}
		fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	} else {
		b.WriteString("To: undisclosed-recipients:;\r\n")
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// headerValue folds a user-supplied value onto one line so it cannot start
// a new header or end the header block.
func headerValue(v string) string {
	v = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
	return strings.TrimSpace(v)
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg *Message) error {
	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return ErrNoRecipients
	}
	logging.Info().
		Strs("recipients", rcpts).
		Str("subject", msg.Subject).
		Str("body", msg.HTML).
		Msg("email not sent: SMTP disabled")
	return nil
}
