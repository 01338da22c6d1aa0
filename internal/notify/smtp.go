package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/prn-tf/alexander-auth/internal/config"
)

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg    config.SMTPConfig
	client *mail.Client
	logger zerolog.Logger
}

// NewSMTPSender creates a sender for the relay described by cfg.
// No connection is made until the first Send.
func NewSMTPSender(cfg config.SMTPConfig, logger zerolog.Logger) (*SMTPSender, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	switch strings.ToLower(cfg.TLS) {
	case "tls":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPSender{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "smtp_sender").Logger(),
	}, nil
}

// buildMessage converts msg into a go-mail message.
func (s *SMTPSender) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	var err error
	if s.cfg.FromName != "" {
		err = m.FromFormat(s.cfg.FromName, s.cfg.From)
	} else {
		err = m.From(s.cfg.From)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	return m, nil
}

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("host", s.cfg.Host).Int("port", s.cfg.Port).Msg("smtp delivery failed")
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	s.logger.Debug().Str("host", s.cfg.Host).Msg("message delivered")
	return nil
}

var _ Sender = (*SMTPSender)(nil)
