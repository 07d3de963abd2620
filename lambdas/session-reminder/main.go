package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/sirupsen/logrus"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/config"
	sessionreminder "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/handlers/session-reminder"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		logger.WithError(err).Fatal("loading aws config")
	}

	handler, err := sessionreminder.New(context.TODO(), awsCfg, cfg, logger, false)
	if err != nil {
		logger.WithError(err).Fatal("building reminder handler")
	}
	logger.WithField("config", cfg.JSON()).Debug("reminder function ready")

	lambda.Start(handler.Handle)
}
