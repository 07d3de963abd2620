package cmd

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/spf13/cobra"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/schedule"
)

var scheduleName string
var scheduleGroup string
var scheduleRate string
var targetARN string
var roleARN string

func scheduleRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the EventBridge schedule that triggers reminders",
	}
	cmd.AddCommand(scheduleCreateCmd())
	cmd.AddCommand(scheduleStateCmd("pause", "Disable the schedule", false))
	cmd.AddCommand(scheduleStateCmd("resume", "Enable the schedule", true))
	return cmd
}

func registerScheduleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scheduleName, "name", "session-reminders", "Schedule name")
	cmd.Flags().StringVar(&scheduleGroup, "group", schedule.DefaultGroup, "Schedule group")
}

func scheduleCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the schedule or update it in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetARN == "" {
				return fmt.Errorf("--target-arn must be set")
			}
			if roleARN == "" {
				return fmt.Errorf("--role-arn must be set")
			}
			manager, err := newScheduleManager(cmd)
			if err != nil {
				return err
			}
			arn, err := manager.Ensure(cmd.Context(), schedule.Definition{
				Name:      scheduleName,
				Group:     scheduleGroup,
				Rate:      scheduleRate,
				TargetARN: targetARN,
				RoleARN:   roleARN,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Schedule %s is active: %s\n", scheduleName, arn)
			return nil
		},
	}
	registerScheduleFlags(cmd)
	cmd.Flags().StringVar(&scheduleRate, "rate", schedule.DefaultRate, "Rate expression body, e.g. \"3 minutes\"")
	cmd.Flags().StringVar(&targetARN, "target-arn", os.Getenv("REMINDER_FUNCTION_ARN"), "Reminder function ARN, default to $REMINDER_FUNCTION_ARN")
	cmd.Flags().StringVar(&roleARN, "role-arn", os.Getenv("SCHEDULER_ROLE_ARN"), "Role the scheduler assumes, default to $SCHEDULER_ROLE_ARN")
	return cmd
}

func scheduleStateCmd(use, short string, enable bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newScheduleManager(cmd)
			if err != nil {
				return err
			}
			if enable {
				err = manager.Resume(cmd.Context(), scheduleName, scheduleGroup)
			} else {
				err = manager.Pause(cmd.Context(), scheduleName, scheduleGroup)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Schedule %s: %s done.\n", scheduleName, use)
			return nil
		},
	}
	registerScheduleFlags(cmd)
	return cmd
}

func newScheduleManager(cmd *cobra.Command) (*schedule.Manager, error) {
	awsCfg, err := loadAWSConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	return &schedule.Manager{Client: scheduler.NewFromConfig(awsCfg)}, nil
}
