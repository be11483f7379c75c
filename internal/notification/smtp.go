package notification

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"ccak/internal/platform/config"
)

// SMTPSender delivers messages through a plain SMTP relay. Template data is
// rendered as a simple text body; the portal frontend owns rich rendering.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTP builds a sender from SMTP configuration.
func NewSMTP(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	if msg.Recipient == "" {
		return fmt.Errorf("notification recipient is required")
	}

	from := mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddr}
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", from.String())
	fmt.Fprintf(&body, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&body, "X-CCAK-Template: %s\r\n", msg.Template)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	for key, value := range msg.Data {
		fmt.Fprintf(&body, "%s: %v\r\n", key, value)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := smtp.SendMail(addr, auth, s.cfg.FromAddr, []string{msg.Recipient}, []byte(body.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.Recipient, err)
	}
	return nil
}
