package sms

import "context"

// Sender delivers a single text message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
	Name() string
}
