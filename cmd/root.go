package cmd

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var awsRegion string
var logLevel string

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "remindctl",
		Short:        "Operate the tutoring session SMS reminders",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&awsRegion, "region", os.Getenv("AWS_REGION"), "AWS region, default to $AWS_REGION")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level, default to $LOG_LEVEL or info")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(scheduleRootCmd())
	cmd.AddCommand(sentRootCmd())
	return cmd
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if logLevel != "" {
		if level, err := logrus.ParseLevel(logLevel); err == nil {
			logger.SetLevel(level)
		} else {
			logger.WithError(err).Warn("ignoring --log-level")
		}
	}
	return logger
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if awsRegion != "" {
		opts = append(opts, awsconfig.WithRegion(awsRegion))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
