package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/config"
	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/store"
	sessionreminder "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/handlers/session-reminder"
)

var remindersTable string
var dynamoEndpoint string

func sentRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sent",
		Short: "Inspect or clear sent-reminder records",
	}
	cmd.AddCommand(sentListCmd())
	cmd.AddCommand(sentForgetCmd())
	return cmd
}

func registerReminderTableFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&remindersTable, "table-name", os.Getenv("SESSION_REMINDERS_TABLE_NAME"), "Reminders table, default to $SESSION_REMINDERS_TABLE_NAME")
	cmd.Flags().StringVar(&dynamoEndpoint, "endpoint", os.Getenv("DYNAMO_ENDPOINT"), "Endpoint for DynamoDB")
}

func newRemindersStore(cmd *cobra.Command) (*store.Reminders, error) {
	if remindersTable == "" {
		return nil, errors.New("--table-name must be set")
	}
	awsCfg, err := loadAWSConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	client := sessionreminder.NewDynamoClient(awsCfg, config.Config{DynamoEndpoint: dynamoEndpoint})
	return &store.Reminders{Client: client, Table: remindersTable}, nil
}

func sentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <session-key>",
		Short: "List recipients already reminded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reminders, err := newRemindersStore(cmd)
			if err != nil {
				return err
			}
			records, err := reminders.ListForSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	registerReminderTableFlags(cmd)
	return cmd
}

func sentForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget <session-key> <recipient>",
		Short: "Delete a sent record so the next run reminds the recipient again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reminders, err := newRemindersStore(cmd)
			if err != nil {
				return err
			}
			if err := reminders.Forget(cmd.Context(), args[0], args[1]); err != nil {
				if errors.Is(err, pkgerrors.ErrNotFound) {
					return fmt.Errorf("no reminder recorded for %s on %s", args[1], args[0])
				}
				return err
			}
			fmt.Printf("Reminder record for %s removed.\n", args[1])
			return nil
		},
	}
	registerReminderTableFlags(cmd)
	return cmd
}
