package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/iliyamo/carshare-deposits/internal/queue"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// EmailSender delivers release confirmations by email.
type EmailSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender returns a sender for cfg.
func NewEmailSender(cfg SMTPConfig) *EmailSender {
	return &EmailSender{cfg: cfg, sendMail: smtp.SendMail}
}

// Send emails the guest.  An event without a guest email is a permanent
// failure; the consumer drops it after its retry budget.
func (s *EmailSender) Send(ctx context.Context, ev queue.DepositReleasedEvent) error {
	if ev.GuestEmail == "" {
		return errors.New("event has no guest email")
	}
	if s.cfg.Host == "" {
		return errors.New("smtp not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	port := s.cfg.Port
	if port == "" {
		port = "587"
	}
	msg := buildMessage(s.cfg.From, ev.GuestEmail, subject(ev), emailBody(ev))
	if err := s.sendMail(net.JoinHostPort(s.cfg.Host, port), auth, s.cfg.From, []string{ev.GuestEmail}, msg); err != nil {
		return fmt.Errorf("send deposit email for %s: %w", ev.BookingCode, err)
	}
	return nil
}

func buildMessage(from, to, subj, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subj)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
