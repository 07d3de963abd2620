package sms

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/secrets"
)

type MessageCreator interface {
	CreateMessage(*twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioSender struct {
	Client              MessageCreator
	From                string
	MessagingServiceSID string
}

// NewTwilioSender builds a sender backed by the Twilio REST API.
func NewTwilioSender(creds secrets.TwilioCredentials) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.AccountSID,
		Password: creds.AuthToken,
	})

	return &TwilioSender{
		Client:              client.Api,
		From:                creds.PhoneNumber,
		MessagingServiceSID: creds.MessagingServiceSID,
	}
}

func (s *TwilioSender) Name() string { return "twilio" }

func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetBody(body)
	// A messaging service picks its own sender number.
	if s.MessagingServiceSID != "" {
		params.SetMessagingServiceSid(s.MessagingServiceSID)
	} else {
		params.SetFrom(s.From)
	}

	resp, err := s.Client.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Sid == nil {
		return "", errors.New("twilio returned no message sid")
	}
	return aws.ToString(resp.Sid), nil
}
