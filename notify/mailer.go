package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Message is one outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends transactional mail. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// OTPMail formats the standard verification mail for a one-time code.
func OTPMail(to, code string, purpose string) Message {
	subject := "Your verification code"
	if purpose == "reset" {
		subject = "Your password reset code"
	}
	return Message{
		To:      to,
		Subject: subject,
		Body:    fmt.Sprintf("Your one-time code is %s. It expires shortly; do not share it.", code),
	}
}

// LogMailer writes mail to the log instead of sending it. Development only.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer wraps logger as a Mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message. The body is included since development flows need
// the OTP code.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("outbound mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// MemMailbox collects sent mail in memory for tests.
type MemMailbox struct {
	mu       sync.Mutex
	messages []Message
	failWith error
}

// NewMemMailbox returns an empty mailbox.
func NewMemMailbox() *MemMailbox {
	return &MemMailbox{}
}

// Send records the message, or returns the configured failure.
func (m *MemMailbox) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MemMailbox) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// FailWith makes every subsequent Send return err. Pass nil to restore
// delivery.
func (m *MemMailbox) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}
