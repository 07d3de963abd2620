package schedule

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedulertypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/google/uuid"

	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
)

const (
	DefaultRate  = "3 minutes"
	DefaultGroup = "default"
	EventSource  = "session-reminders"
)

type SchedulerApiClient interface {
	CreateSchedule(context.Context, *scheduler.CreateScheduleInput, ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	GetSchedule(context.Context, *scheduler.GetScheduleInput, ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	UpdateSchedule(context.Context, *scheduler.UpdateScheduleInput, ...func(*scheduler.Options)) (*scheduler.UpdateScheduleOutput, error)
}

type Definition struct {
	Name      string
	Group     string
	Rate      string
	TargetARN string
	RoleARN   string
}

func (s Definition) expression() string {
	rate := s.Rate
	if rate == "" {
		rate = DefaultRate
	}
	return fmt.Sprintf("rate(%s)", rate)
}

func (s Definition) group() *string {
	if s.Group == "" {
		return aws.String(DefaultGroup)
	}
	return aws.String(s.Group)
}

type Manager struct {
	Client SchedulerApiClient
}

func targetInput() (string, error) {
	input, err := json.Marshal(map[string]string{
		"source": EventSource,
	})
	if err != nil {
		return "", err
	}
	return string(input), nil
}

// Ensure creates the schedule that invokes the reminder function, or brings an existing
// one in line with def. It returns the schedule ARN.
func (m *Manager) Ensure(ctx context.Context, def Definition) (string, error) {
	input, err := targetInput()
	if err != nil {
		return "", err
	}
	target := &schedulertypes.Target{
		Arn:     aws.String(def.TargetARN),
		RoleArn: aws.String(def.RoleARN),
		Input:   aws.String(input),
	}

	out, err := m.Client.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:               aws.String(def.Name),
		GroupName:          def.group(),
		Description:        aws.String("Sends SMS reminders for upcoming tutoring sessions"),
		ScheduleExpression: aws.String(def.expression()),
		State:              schedulertypes.ScheduleStateEnabled,
		Target:             target,
		ClientToken:        aws.String(uuid.NewString()),
		FlexibleTimeWindow: &schedulertypes.FlexibleTimeWindow{
			Mode: schedulertypes.FlexibleTimeWindowModeOff,
		},
	})
	if err == nil {
		return aws.ToString(out.ScheduleArn), nil
	}
	if !pkgerrors.IsConflict(err) {
		return "", fmt.Errorf("create schedule %s: %w", def.Name, err)
	}

	updated, err := m.Client.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
		Name:               aws.String(def.Name),
		GroupName:          def.group(),
		Description:        aws.String("Sends SMS reminders for upcoming tutoring sessions"),
		ScheduleExpression: aws.String(def.expression()),
		State:              schedulertypes.ScheduleStateEnabled,
		Target:             target,
		ClientToken:        aws.String(uuid.NewString()),
		FlexibleTimeWindow: &schedulertypes.FlexibleTimeWindow{
			Mode: schedulertypes.FlexibleTimeWindowModeOff,
		},
	})
	if err != nil {
		return "", fmt.Errorf("update schedule %s: %w", def.Name, err)
	}
	return aws.ToString(updated.ScheduleArn), nil
}

func (m *Manager) Pause(ctx context.Context, name, group string) error {
	return m.setState(ctx, name, group, schedulertypes.ScheduleStateDisabled)
}

func (m *Manager) Resume(ctx context.Context, name, group string) error {
	return m.setState(ctx, name, group, schedulertypes.ScheduleStateEnabled)
}

// setState rewrites the schedule with a new state. UpdateSchedule replaces every field,
// so the current definition is read first and sent back unchanged.
func (m *Manager) setState(ctx context.Context, name, group string, state schedulertypes.ScheduleState) error {
	groupName := Definition{Group: group}.group()

	current, err := m.Client.GetSchedule(ctx, &scheduler.GetScheduleInput{
		Name:      aws.String(name),
		GroupName: groupName,
	})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return fmt.Errorf("schedule %s: %w", name, pkgerrors.ErrNotFound)
		}
		return fmt.Errorf("get schedule %s: %w", name, err)
	}
	if current.State == state {
		return nil
	}

	if _, err := m.Client.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
		Name:                       aws.String(name),
		GroupName:                  groupName,
		Description:                current.Description,
		ScheduleExpression:         current.ScheduleExpression,
		ScheduleExpressionTimezone: current.ScheduleExpressionTimezone,
		StartDate:                  current.StartDate,
		EndDate:                    current.EndDate,
		KmsKeyArn:                  current.KmsKeyArn,
		ActionAfterCompletion:      current.ActionAfterCompletion,
		FlexibleTimeWindow:         current.FlexibleTimeWindow,
		Target:                     current.Target,
		State:                      state,
		ClientToken:                aws.String(uuid.NewString()),
	}); err != nil {
		return fmt.Errorf("update schedule %s: %w", name, err)
	}
	return nil
}
