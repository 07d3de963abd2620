package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
)

type SecretsApiClient interface {
	GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// TwilioCredentials is the JSON document stored in the reminder secret.
type TwilioCredentials struct {
	AccountSID          string `json:"twilioAccountSid"`
	AuthToken           string `json:"twilioAuthToken"`
	PhoneNumber         string `json:"twilioPhoneNumber"`
	MessagingServiceSID string `json:"twilioMessagingServiceSid,omitempty"`
}

func (c TwilioCredentials) Validate() error {
	var missing []string
	if c.AccountSID == "" {
		missing = append(missing, "twilioAccountSid")
	}
	if c.AuthToken == "" {
		missing = append(missing, "twilioAuthToken")
	}
	if c.PhoneNumber == "" && c.MessagingServiceSID == "" {
		missing = append(missing, "twilioPhoneNumber")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: secret lacks %v", pkgerrors.ErrMissingConfig, missing)
	}
	return nil
}

// Load fetches and decodes the Twilio credentials stored under secretARN.
func Load(ctx context.Context, client SecretsApiClient, secretARN string) (TwilioCredentials, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return TwilioCredentials{}, fmt.Errorf("get secret value: %w", err)
	}
	if out == nil || out.SecretString == nil {
		return TwilioCredentials{}, errors.New("secret has no string value")
	}

	var creds TwilioCredentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return TwilioCredentials{}, fmt.Errorf("decode secret: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return TwilioCredentials{}, err
	}
	return creds, nil
}
