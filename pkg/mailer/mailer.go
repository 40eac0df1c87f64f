package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Attachment is an optional file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully rendered outbound email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers messages to recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ConsoleSender logs messages instead of delivering them. Default in
// development so the API works without a mail provider configured.
type ConsoleSender struct {
	logger *zap.Logger
}

// NewConsoleSender constructs a console sender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send writes the message to the log.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Sugar().Infow("email (console)",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
		"attachments", len(msg.Attachments),
	)
	return nil
}
