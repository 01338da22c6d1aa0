package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/prn-tf/alexander-auth/internal/config"
)

func TestOTPMessage(t *testing.T) {
	msg := OTPMessage("alice@example.com", "Your Verification OTP", "012345", 10*time.Minute)

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Your Verification OTP", msg.Subject)
	assert.Contains(t, msg.Body, "Your OTP is: 012345")
	assert.Contains(t, msg.Body, "10 minutes")

	assert.Contains(t, OTPMessage("a@b.c", "s", "1", time.Minute).Body, "1 minute.")
	assert.Contains(t, OTPMessage("a@b.c", "s", "1", 90*time.Second).Body, "1m30s")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(zerolog.New(&buf))

	require.NoError(t, sender.Send(context.Background(), Message{To: "alice@example.com", Subject: "s", Body: "Your OTP is: 123456"}))
	assert.Contains(t, buf.String(), "alice@example.com")
	assert.Contains(t, buf.String(), "123456")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.Send(ctx, Message{}), context.Canceled)
}

func testSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Enabled:  true,
		Host:     "127.0.0.1",
		Port:     1,
		From:     "no-reply@example.com",
		FromName: "Alexander",
		TLS:      "none",
		Timeout:  time.Second,
	}
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	sender, err := NewSMTPSender(testSMTPConfig(), zerolog.Nop())
	require.NoError(t, err)

	m, err := sender.buildMessage(OTPMessage("alice@example.com", "Your Verification OTP", "123456", time.Minute))
	require.NoError(t, err)

	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, rcpts)
	assert.Equal(t, []string{"Your Verification OTP"}, m.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Your OTP is: 123456")
	assert.Contains(t, buf.String(), "Alexander")

	_, err = sender.buildMessage(Message{To: "not an address", Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestSMTPSender_SendFailureIsReturned(t *testing.T) {
	sender, err := NewSMTPSender(testSMTPConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = sender.Send(ctx, OTPMessage("alice@example.com", "s", "123456", time.Minute))
	assert.Error(t, err)
}
