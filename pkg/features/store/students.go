package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
)

const (
	maxContactNumbers = 5
	noDocURL          = "N/A"
)

type GetItemApiClient interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type contactNumber struct {
	PhoneNumber string `dynamodbav:"phoneNumber"`
	SMSEnabled  bool   `dynamodbav:"smsEnabled"`
}

type Student struct {
	Name   string
	DocURL string
	// Numbers holds only the SMS-enabled phone numbers, in slot order and without repeats.
	Numbers []string
}

type Students struct {
	Client GetItemApiClient
	Table  string
}

// Get loads the student by name. A missing item yields errors.ErrNotFound.
func (s *Students) Get(ctx context.Context, name string) (Student, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"studentName": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return Student{}, fmt.Errorf("get student %q: %w", name, err)
	}
	if out == nil || len(out.Item) == 0 {
		return Student{}, fmt.Errorf("student %q: %w", name, pkgerrors.ErrNotFound)
	}

	return ParseStudent(name, out.Item), nil
}

func ParseStudent(name string, item map[string]types.AttributeValue) Student {
	student := Student{
		Name:   name,
		DocURL: noDocURL,
	}
	if doc, ok := item["docUrl"].(*types.AttributeValueMemberS); ok && strings.TrimSpace(doc.Value) != "" {
		student.DocURL = doc.Value
	}

	seen := make(map[string]struct{})
	for i := 1; i <= maxContactNumbers; i++ {
		attr, ok := item[fmt.Sprintf("number%d", i)]
		if !ok {
			continue
		}
		// Slots with a malformed shape are treated as disabled.
		var number contactNumber
		if err := attributevalue.Unmarshal(attr, &number); err != nil {
			continue
		}
		phone := strings.TrimSpace(number.PhoneNumber)
		if !number.SMSEnabled || phone == "" {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		student.Numbers = append(student.Numbers, phone)
	}

	return student
}
