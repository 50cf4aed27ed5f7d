package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para correos transaccionales de cuenta.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendWelcome(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
