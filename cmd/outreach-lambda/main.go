// Package main is the entry point for the scheduled outreach Lambda function.
//
// An EventBridge schedule invokes the function; each invocation performs one
// run and returns its summary. Configuration is read once at cold start from
// the Lambda environment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/telekom/notion-outreach/pkg/app"
	"github.com/telekom/notion-outreach/pkg/config"
	"github.com/telekom/notion-outreach/pkg/dispatch"
	"github.com/telekom/notion-outreach/pkg/system"
)

// Input is the optional invocation payload.
type Input struct {
	DryRun bool `json:"dryRun"`
}

func main() {
	// No OS keyring inside Lambda.
	cfg, err := config.LoadWithProvider(nil)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error loading configuration:", err)
		os.Exit(1)
	}

	logger, err := system.NewLogger(cfg.Debug, cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error creating logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	log.Infow("Outreach Lambda initialized", "database", cfg.Notion.DatabaseID, "smtpHost", cfg.SMTP.Host)
	lambda.Start(newHandler(cfg, log))
}

func newHandler(cfg *config.Config, log *zap.SugaredLogger) func(ctx context.Context, in Input) (*dispatch.Summary, error) {
	return func(ctx context.Context, in Input) (*dispatch.Summary, error) {
		run := *cfg
		run.Run.DryRun = run.Run.DryRun || in.DryRun
		log.Infow("Outreach handler invoked", "dryRun", run.Run.DryRun)

		sum, err := app.Run(ctx, &run, log)
		if err != nil {
			log.Errorw("Outreach run failed", "error", err.Error())
			return sum, fmt.Errorf("outreach run failed: %w", err)
		}
		log.Infow("Outreach run complete", "run", sum.RunID, "sent", sum.Sent, "failed", sum.Failed, "skipped", sum.Skipped)
		return sum, nil
	}
}
