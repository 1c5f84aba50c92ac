package mail

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/pkg/logger"
)

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, from string, m *Message) error
}

// NewMailer returns an SMTP mailer when a host is configured, otherwise a
// mailer that only logs.
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.SMTPHost == "" {
		logger.Warnf("mail: MAIL_SMTP_HOST not set, messages are logged instead of sent")
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// LogMailer writes messages to the log. Used in development.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, from string, m *Message) error {
	logger.Infof("mail: from=%s to=%s subject=%q", from, strings.Join(m.To, ","), m.Subject)
	return nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer submits messages with PLAIN auth (when a username is set).
type SMTPMailer struct {
	cfg  config.MailConfig
	send sendFunc
}

func (s *SMTPMailer) Send(ctx context.Context, from string, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	rcpt := append(append([]string{}, m.To...), m.Cc...)
	if err := s.send(addr, auth, from, rcpt, compose(from, m, time.Now())); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

// compose renders an RFC 5322 text/plain message.
func compose(from string, m *Message, now time.Time) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", strings.Join(m.To, ", "))
	if len(m.Cc) > 0 {
		header("Cc", strings.Join(m.Cc, ", "))
	}
	header("Subject", mimeWord(m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

func mimeWord(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	for _, r := range s {
		if r > 127 {
			return mime.QEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
