package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/config"
	sessionreminder "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/handlers/session-reminder"
)

var runAt string
var dryRun bool
var every time.Duration
var runImmediately bool

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reminder pass with local credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&runAt, "now", "", "Replay the window as of this RFC 3339 instant")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log messages instead of sending them, record nothing")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run reminder passes on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&every, "every", 3*time.Minute, "Interval between passes")
	cmd.Flags().BoolVar(&runImmediately, "immediately", true, "Run a pass at startup instead of waiting for the first tick")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log messages instead of sending them, record nothing")
	return cmd
}

func buildHandler(ctx context.Context, logger *logrus.Logger) (*sessionreminder.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logger.SetLevel(cfg.LogLevel)
	}
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sessionreminder.New(ctx, awsCfg, cfg, logger, dryRun)
}

func runOnce(ctx context.Context) error {
	logger := newLogger()
	handler, err := buildHandler(ctx, logger)
	if err != nil {
		return err
	}

	summary, err := handler.Handle(ctx, sessionreminder.Event{Source: "remindctl", Now: runAt})
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func serve(ctx context.Context) error {
	if every < time.Minute {
		return fmt.Errorf("--every must be at least a minute, got %s", every)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	handler, err := buildHandler(ctx, logger)
	if err != nil {
		return err
	}

	pass := func() {
		if _, err := handler.Handle(ctx, sessionreminder.Event{Source: "remindctl"}); err != nil {
			logger.WithError(err).Error("reminder pass failed")
		}
	}

	// Passes never overlap, a slow pass makes the next tick a no-op.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", every), pass); err != nil {
		return err
	}

	if runImmediately {
		pass()
	}
	c.Start()
	logger.WithField("every", every.String()).Info("reminder loop started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("reminder loop stopped")
	return nil
}
