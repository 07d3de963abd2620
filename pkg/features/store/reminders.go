package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
)

type RemindersApiClient interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Record marks a reminder as sent to one recipient of one session.
type Record struct {
	UID       string `dynamodbav:"uid" json:"uid"`
	Recipient string `dynamodbav:"recipient" json:"recipient"`
	SessionID string `dynamodbav:"sessionId" json:"sessionId"`
	TutorID   string `dynamodbav:"tutorId" json:"tutorId"`
	Summary   string `dynamodbav:"summary" json:"summary"`
	Status    string `dynamodbav:"status" json:"status"`
	Start     string `dynamodbav:"start" json:"start"`
	End       string `dynamodbav:"end" json:"end"`
	StartUTC  string `dynamodbav:"start_utc" json:"start_utc"`
	EndUTC    string `dynamodbav:"end_utc" json:"end_utc"`
	Provider  string `dynamodbav:"provider" json:"provider"`
	MessageID string `dynamodbav:"messageId" json:"messageId"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
	// ExpireAt is the DynamoDB TTL in epoch seconds, zero keeps the record forever.
	ExpireAt int64 `dynamodbav:"expireAt,omitempty" json:"expireAt,omitempty"`

	StudentInfo types.AttributeValue `dynamodbav:"-" json:"-"`
}

// NewRecord fills a record for a reminder delivered at sentAt. Local times are rendered
// in the session's zone.
func NewRecord(session Session, recipient, provider, messageID string, sentAt time.Time, ttl time.Duration) Record {
	record := Record{
		UID:         session.Key(),
		Recipient:   recipient,
		SessionID:   session.SessionID,
		TutorID:     session.TutorID,
		Summary:     session.Summary,
		Status:      session.Status,
		Start:       session.Start.In(session.Location).Format(time.RFC3339),
		End:         session.End.In(session.Location).Format(time.RFC3339),
		StartUTC:    session.Start.UTC().Format(time.RFC3339),
		EndUTC:      session.End.UTC().Format(time.RFC3339),
		Provider:    provider,
		MessageID:   messageID,
		CreatedAt:   sentAt.UTC().Format(time.RFC3339),
		StudentInfo: session.StudentInfo,
	}
	if ttl > 0 {
		record.ExpireAt = session.End.Add(ttl).Unix()
	}
	return record
}

func (r Record) Item() map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"uid":       &types.AttributeValueMemberS{Value: r.UID},
		"recipient": &types.AttributeValueMemberS{Value: r.Recipient},
		"sessionId": &types.AttributeValueMemberS{Value: r.SessionID},
		"tutorId":   &types.AttributeValueMemberS{Value: r.TutorID},
		"summary":   &types.AttributeValueMemberS{Value: r.Summary},
		"status":    &types.AttributeValueMemberS{Value: r.Status},
		"start":     &types.AttributeValueMemberS{Value: r.Start},
		"end":       &types.AttributeValueMemberS{Value: r.End},
		"start_utc": &types.AttributeValueMemberS{Value: r.StartUTC},
		"end_utc":   &types.AttributeValueMemberS{Value: r.EndUTC},
		"provider":  &types.AttributeValueMemberS{Value: r.Provider},
		"messageId": &types.AttributeValueMemberS{Value: r.MessageID},
		"createdAt": &types.AttributeValueMemberS{Value: r.CreatedAt},
	}
	if r.ExpireAt > 0 {
		item["expireAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(r.ExpireAt, 10)}
	}
	if r.StudentInfo != nil {
		item["studentInfo"] = r.StudentInfo
	}
	return item
}

type Reminders struct {
	Client RemindersApiClient
	Table  string
}

func key(uid, recipient string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"uid":       &types.AttributeValueMemberS{Value: uid},
		"recipient": &types.AttributeValueMemberS{Value: recipient},
	}
}

// Exists reports whether a reminder was already recorded for the pair. The read is
// strongly consistent so a record written by the previous run is always seen.
func (r *Reminders) Exists(ctx context.Context, uid, recipient string) (bool, error) {
	out, err := r.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.Table),
		Key:                  key(uid, recipient),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("#uid"),
		ExpressionAttributeNames: map[string]string{
			"#uid": "uid",
		},
	})
	if err != nil {
		return false, fmt.Errorf("get reminder: %w", err)
	}
	return out != nil && len(out.Item) > 0, nil
}

// Create writes the record once. If the pair is already recorded it returns
// errors.ErrAlreadySent.
func (r *Reminders) Create(ctx context.Context, record Record) error {
	if _, err := r.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.Table),
		Item:                record.Item(),
		ConditionExpression: aws.String("attribute_not_exists(#uid)"),
		ExpressionAttributeNames: map[string]string{
			"#uid": "uid",
		},
	}); err != nil {
		if pkgerrors.IsConditionalCheckFailed(err) {
			return pkgerrors.ErrAlreadySent
		}
		return fmt.Errorf("put reminder: %w", err)
	}
	return nil
}

// ListForSession returns every recorded recipient of the session key.
func (r *Reminders) ListForSession(ctx context.Context, uid string) ([]Record, error) {
	paginator := dynamodb.NewQueryPaginator(r.Client, &dynamodb.QueryInput{
		TableName:              aws.String(r.Table),
		KeyConditionExpression: aws.String("#uid = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#uid": "uid",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: uid},
		},
		ConsistentRead: aws.Bool(true),
	})

	var records []Record
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query reminders: %w", err)
		}
		for _, item := range page.Items {
			var record Record
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, err
			}
			record.StudentInfo = item["studentInfo"]
			records = append(records, record)
		}
	}

	return records, nil
}

// Forget deletes the record so the recipient is reminded again on the next run.
func (r *Reminders) Forget(ctx context.Context, uid, recipient string) error {
	out, err := r.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.Table),
		Key:          key(uid, recipient),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}
