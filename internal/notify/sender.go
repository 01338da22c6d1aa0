// Package notify delivers one-time passcodes to email addresses.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations return an error for every
// message that was not handed off successfully.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// OTPMessage builds the email carrying code, valid for ttl.
func OTPMessage(to, subject, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: subject,
		Body: fmt.Sprintf("Your OTP is: %s\n\nThis code expires in %s. If you did not request it, you can ignore this email.\n",
			code, formatTTL(ttl)),
	}
}

func formatTTL(ttl time.Duration) string {
	if ttl%time.Minute == 0 {
		minutes := int(ttl / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return ttl.String()
}

// LogSender writes messages to the log instead of sending them.
// It is meant for development, where no SMTP server is available.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log_sender").Logger()}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Warn().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("smtp disabled; message not sent")
	return nil
}

var _ Sender = (*LogSender)(nil)
