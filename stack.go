package main

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsscheduler"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	golambda "github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
)

type SessionReminderStackProps struct {
	awscdk.StackProps
	SessionsTableName string
	StudentsTableName string
	SecretName        string
	SMSProvider       string
}

func NewSessionReminderStack(scope constructs.Construct, id string, props *SessionReminderStackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)

	// Lambda bundling options
	bundlingOptions := &golambda.BundlingOptions{
		GoBuildFlags: jsii.Strings(`-ldflags "-s -w"`),
		Environment: &map[string]*string{
			"CGO_ENABLED": jsii.String("0"),
		},
	}

	// Sessions and Students belong to the booking system, they are only referenced here

	sessionsTable := awsdynamodb.Table_FromTableName(stack, jsii.String("GO_SessionsTable"), jsii.String(props.SessionsTableName))
	studentsTable := awsdynamodb.Table_FromTableName(stack, jsii.String("GO_StudentsTable"), jsii.String(props.StudentsTableName))

	// Creating DynamoDB Session Reminders Table

	remindersTable := awsdynamodb.NewTable(stack, jsii.String("GO_SessionRemindersTable"), &awsdynamodb.TableProps{
		TableName: jsii.String("GO_SessionRemindersTable"),
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("uid"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		SortKey: &awsdynamodb.Attribute{
			Name: jsii.String("recipient"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		BillingMode:         awsdynamodb.BillingMode_PAY_PER_REQUEST,
		TimeToLiveAttribute: jsii.String("expireAt"),
		RemovalPolicy:       awscdk.RemovalPolicy_RETAIN,
	})

	twilioSecret := awssecretsmanager.Secret_FromSecretNameV2(stack, jsii.String("GO_TwilioSecret"), jsii.String(props.SecretName))

	// Session Reminder Function
	// Reserved concurrency of one keeps scheduled runs from overlapping.
	reminderLambda := golambda.NewGoFunction(stack, jsii.String("GO_SessionReminder"), &golambda.GoFunctionProps{
		FunctionName:                 jsii.String("GO_SessionReminder"),
		Entry:                        jsii.String("lambdas/session-reminder"),
		Runtime:                      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture:                 awslambda.Architecture_ARM_64(),
		Timeout:                      awscdk.Duration_Minutes(jsii.Number(2)),
		ReservedConcurrentExecutions: jsii.Number(1),
		Environment: &map[string]*string{
			"SESSIONS_TABLE_NAME":          sessionsTable.TableName(),
			"STUDENTS_TABLE_NAME":          studentsTable.TableName(),
			"SESSION_REMINDERS_TABLE_NAME": remindersTable.TableName(),
			"SECRETS_ARN":                  twilioSecret.SecretName(),
			"SMS_PROVIDER":                 jsii.String(props.SMSProvider),
		},
		Bundling: bundlingOptions,
	})
	reminderLambda.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("dynamodb:Scan"),
		Resources: jsii.Strings(*sessionsTable.TableArn()),
	}))
	reminderLambda.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("dynamodb:GetItem"),
		Resources: jsii.Strings(*studentsTable.TableArn()),
	}))
	reminderLambda.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("dynamodb:GetItem", "dynamodb:PutItem"),
		Resources: jsii.Strings(*remindersTable.TableArn()),
	}))
	if props.SMSProvider == "sns" {
		// Direct-to-phone publishes have no topic ARN to scope to.
		reminderLambda.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Actions:   jsii.Strings("sns:Publish"),
			Resources: jsii.Strings("*"),
		}))
	} else {
		twilioSecret.GrantRead(reminderLambda, nil)
	}

	reminderInvokeRole := awsiam.NewRole(stack, jsii.String("GO_SessionReminderInvokeRole"), &awsiam.RoleProps{
		RoleName:  jsii.String("GO_SessionReminderInvokeRole"),
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("scheduler.amazonaws.com"), nil),
	})
	reminderInvokeRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("lambda:InvokeFunction"),
		Resources: jsii.Strings(*reminderLambda.FunctionArn()),
	}))

	// Every three minutes, the same cadence remindctl schedule create uses

	scheduleInput, _ := json.Marshal(map[string]string{"source": "session-reminders"})
	awsscheduler.NewCfnSchedule(stack, jsii.String("GO_SessionReminderSchedule"), &awsscheduler.CfnScheduleProps{
		Name:               jsii.String("GO_SessionReminderSchedule"),
		ScheduleExpression: jsii.String("rate(3 minutes)"),
		State:              jsii.String("ENABLED"),
		FlexibleTimeWindow: &awsscheduler.CfnSchedule_FlexibleTimeWindowProperty{
			Mode: jsii.String("OFF"),
		},
		Target: &awsscheduler.CfnSchedule_TargetProperty{
			Arn:     reminderLambda.FunctionArn(),
			RoleArn: reminderInvokeRole.RoleArn(),
			Input:   jsii.String(string(scheduleInput)),
		},
	})

	awscdk.NewCfnOutput(stack, jsii.String("ReminderFunctionArn"), &awscdk.CfnOutputProps{
		Value: reminderLambda.FunctionArn(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("SchedulerRoleArn"), &awscdk.CfnOutputProps{
		Value: reminderInvokeRole.RoleArn(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("RemindersTableName"), &awscdk.CfnOutputProps{
		Value: remindersTable.TableName(),
	})

	return stack
}

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	NewSessionReminderStack(app, "SessionReminderStack", &SessionReminderStackProps{
		StackProps: awscdk.StackProps{
			Env: env(),
		},
		SessionsTableName: contextOr(app, "sessionsTable", "Sessions"),
		StudentsTableName: contextOr(app, "studentsTable", "Students"),
		SecretName:        contextOr(app, "twilioSecretName", "session-reminders/twilio"),
		SMSProvider:       contextOr(app, "smsProvider", "twilio"),
	})

	app.Synth(nil)
}

// contextOr reads a `cdk deploy -c key=value` override.
func contextOr(app awscdk.App, key, fallback string) string {
	if v := app.Node().TryGetContext(jsii.String(key)); v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return fallback
}

func env() *awscdk.Environment {
	return nil
}
