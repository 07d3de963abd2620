package sms

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DryRunSender logs messages instead of delivering them.
type DryRunSender struct {
	Logger logrus.FieldLogger
}

func (s *DryRunSender) Name() string { return "dry-run" }

func (s *DryRunSender) Send(ctx context.Context, to, body string) (string, error) {
	id := "dry-" + uuid.NewString()
	s.Logger.WithFields(logrus.Fields{
		"to":        to,
		"messageId": id,
	}).Info(body)
	return id, nil
}
