package sessionreminder

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/config"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/secrets"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/sms"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/store"
)

// NewDynamoClient honours the DYNAMO_ENDPOINT override used against DynamoDB Local.
func NewDynamoClient(awsCfg aws.Config, cfg config.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})
}

// NewSender picks the provider named in cfg. Twilio credentials are fetched here,
// so it runs once per cold start.
func NewSender(ctx context.Context, awsCfg aws.Config, cfg config.Config) (sms.Sender, error) {
	switch cfg.Provider {
	case config.ProviderSNS:
		return &sms.SNSSender{Client: sns.NewFromConfig(awsCfg), SenderID: senderID(cfg.Brand)}, nil
	default:
		creds, err := secrets.Load(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.SecretsARN)
		if err != nil {
			return nil, err
		}
		return sms.NewTwilioSender(creds), nil
	}
}

// senderID turns the brand into an SNS sender id: at most 11 letters or digits,
// with at least one letter. Anything else leaves the carrier default.
func senderID(brand string) string {
	var id []rune
	hasLetter := false
	for _, r := range brand {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
			id = append(id, r)
		case r >= '0' && r <= '9':
			id = append(id, r)
		}
	}
	if !hasLetter {
		return ""
	}
	if len(id) > 11 {
		id = id[:11]
	}
	return string(id)
}

// New wires a Handler against real AWS clients. A dry run logs messages instead of
// sending them and never needs provider credentials.
func New(ctx context.Context, awsCfg aws.Config, cfg config.Config, logger logrus.FieldLogger, dryRun bool) (*Handler, error) {
	dynamoClient := NewDynamoClient(awsCfg, cfg)

	var sender sms.Sender = &sms.DryRunSender{Logger: logger}
	if !dryRun {
		var err error
		if sender, err = NewSender(ctx, awsCfg, cfg); err != nil {
			return nil, err
		}
	}

	return &Handler{
		Sessions:  &store.Sessions{Client: dynamoClient, Table: cfg.SessionsTable},
		Students:  &store.Students{Client: dynamoClient, Table: cfg.StudentsTable},
		Reminders: &store.Reminders{Client: dynamoClient, Table: cfg.RemindersTable},
		Sender:    sender,
		Config:    cfg,
		Logger:    logger,
		DryRun:    dryRun,
	}, nil
}
