package sms

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SnsApiClient interface {
	Publish(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes directly to a phone number instead of a topic.
type SNSSender struct {
	Client   SnsApiClient
	SenderID string
}

func (s *SNSSender) Name() string { return "sns" }

func (s *SNSSender) Send(ctx context.Context, to, body string) (string, error) {
	attributes := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.SenderID != "" {
		attributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.SenderID),
		}
	}

	out, err := s.Client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(body),
		MessageAttributes: attributes,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}
