package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	// Zones are resolved from the binary, the Lambda image may ship no zoneinfo.
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// filterLayout is compared lexicographically against utcStart, so it must stay a prefix
// of the stored ISO format.
const filterLayout = "2006-01-02T15:04"

type ScanApiClient interface {
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Session struct {
	SessionID string `dynamodbav:"sessionId"`
	TutorID   string `dynamodbav:"tutorId"`
	Status    string `dynamodbav:"status"`
	Summary   string `dynamodbav:"summary"`
	Timezone  string `dynamodbav:"timezone"`
	UTCStart  string `dynamodbav:"utcStart"`
	UTCEnd    string `dynamodbav:"utcEnd"`

	Start       time.Time            `dynamodbav:"-"`
	End         time.Time            `dynamodbav:"-"`
	Location    *time.Location       `dynamodbav:"-"`
	StudentInfo types.AttributeValue `dynamodbav:"-"`
}

// Key identifies the session for deduplication. A rescheduled session gets a new key.
func (s Session) Key() string {
	return SessionKey(s.Summary, s.Start, s.End)
}

func (s Session) StudentName() string {
	return StudentName(s.Summary)
}

// InWindow reports whether the session starts within [from, to], both ends inclusive.
func (s Session) InWindow(from, to time.Time) bool {
	return !s.Start.Before(from) && !s.Start.After(to)
}

func SessionKey(summary string, start, end time.Time) string {
	return fmt.Sprintf("%s#%s#%s", summary, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}

func StudentName(summary string) string {
	name := strings.ReplaceAll(summary, " Tutoring", "")
	name = strings.ReplaceAll(name, " tutoring", "")
	return strings.TrimSpace(name)
}

type InvalidItem struct {
	Item map[string]types.AttributeValue
	Err  error
}

type ScanResult struct {
	Scanned  int
	Sessions []Session
	Invalid  []InvalidItem
}

type Sessions struct {
	Client ScanApiClient
	Table  string
}

// Upcoming scans the table for sessions whose utcStart falls roughly within [from, to].
// The filter is widened by a minute on each side, callers check the exact window.
func (s *Sessions) Upcoming(ctx context.Context, from, to time.Time) (ScanResult, error) {
	lower, upper := FilterBounds(from, to)

	paginator := dynamodb.NewScanPaginator(s.Client, &dynamodb.ScanInput{
		TableName:        aws.String(s.Table),
		FilterExpression: aws.String("#start BETWEEN :from AND :to"),
		ExpressionAttributeNames: map[string]string{
			"#start": "utcStart",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: lower},
			":to":   &types.AttributeValueMemberS{Value: upper},
		},
	})

	var result ScanResult
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return ScanResult{}, fmt.Errorf("scan %s: %w", s.Table, err)
		}
		for _, item := range page.Items {
			result.Scanned++
			session, err := ParseSession(item)
			if err != nil {
				result.Invalid = append(result.Invalid, InvalidItem{Item: item, Err: err})
				continue
			}
			result.Sessions = append(result.Sessions, session)
		}
	}

	return result, nil
}

func FilterBounds(from, to time.Time) (string, string) {
	lower := from.UTC().Add(-time.Minute).Truncate(time.Minute).Format(filterLayout)
	upper := to.UTC().Add(time.Minute).Truncate(time.Minute).Format(filterLayout)
	return lower, upper
}

// ParseSession decodes a Sessions item and resolves its times and zone.
func ParseSession(item map[string]types.AttributeValue) (Session, error) {
	var session Session
	if err := attributevalue.UnmarshalMap(item, &session); err != nil {
		return Session{}, err
	}

	if session.UTCStart == "" || session.UTCEnd == "" || session.Timezone == "" {
		return Session{}, errors.New("session lacks utcStart, utcEnd or timezone")
	}

	var err error
	if session.Start, err = ParseUTC(session.UTCStart); err != nil {
		return Session{}, fmt.Errorf("utcStart: %w", err)
	}
	if session.End, err = ParseUTC(session.UTCEnd); err != nil {
		return Session{}, fmt.Errorf("utcEnd: %w", err)
	}
	if session.Location, err = time.LoadLocation(session.Timezone); err != nil {
		return Session{}, fmt.Errorf("timezone: %w", err)
	}
	session.StudentInfo = item["studentInfo"]

	return session, nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseUTC accepts RFC 3339 timestamps and, for values written without an offset,
// reads them as UTC.
func ParseUTC(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
