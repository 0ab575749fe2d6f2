// Package mailer delivers notification e-mails over SMTP.
package mailer

import (
	"context"
	"fmt"

	"wheelaway/pkg/config"
	"wheelaway/pkg/logger"

	"github.com/wneessen/go-mail"
)

type Email struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type smtpMailer struct {
	client *mail.Client
	from   string
	log    *logger.Logger
}

// New returns an SMTP mailer, or a mailer that only logs when no SMTP host
// is configured.
func New(cfg *config.Config) (Mailer, error) {
	log := cfg.Log.Component("mailer")
	if cfg.SMTPHost == "" {
		log.Warn("SMTP host not configured, e-mails will only be logged")
		return &logMailer{log: log}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &smtpMailer{
		client: client,
		from:   cfg.MailFrom,
		log:    log,
	}, nil
}

func (m *smtpMailer) Send(ctx context.Context, email Email) error {
	msg, err := BuildMessage(m.from, email)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", email.To, err)
	}

	m.log.FromContext(ctx).Info("E-mail sent", "to", email.To, "subject", email.Subject)
	return nil
}

// BuildMessage renders a plain text message. from may carry a display name,
// e.g. "WheelAway <no-reply@wheelaway.app>".
func BuildMessage(from string, email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := msg.AddToFormat(email.ToName, email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	return msg, nil
}

type logMailer struct {
	log *logger.Logger
}

func (m *logMailer) Send(ctx context.Context, email Email) error {
	m.log.FromContext(ctx).Info("E-mail not sent, SMTP disabled",
		"to", email.To,
		"subject", email.Subject,
		"body", email.Text,
	)
	return nil
}
