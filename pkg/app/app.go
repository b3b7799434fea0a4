// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package app builds the outreach run from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/telekom/notion-outreach/pkg/config"
	"github.com/telekom/notion-outreach/pkg/contact"
	"github.com/telekom/notion-outreach/pkg/dispatch"
	"github.com/telekom/notion-outreach/pkg/events"
	"github.com/telekom/notion-outreach/pkg/mail"
	"github.com/telekom/notion-outreach/pkg/metrics"
	"github.com/telekom/notion-outreach/pkg/notion"
	"github.com/telekom/notion-outreach/pkg/output"
	"github.com/telekom/notion-outreach/pkg/version"
)

// Predicate builds the eligibility predicate from e. The gate participates
// only when a gate property is configured.
func Predicate(e config.EligibilityConfig) contact.Predicate {
	p := contact.StatusPredicate(e.StatusProperty, contact.Kind(e.StatusKind), e.ReadyValue, e.SentValue)
	if e.HasGate() {
		p = p.WithGate(e.GateProperty, contact.Kind(e.GateKind), e.GateValue, e.GateClearedValue)
	}
	return p
}

// Fields returns the property names the extractor reads.
func Fields(n config.NotionConfig) contact.Fields {
	return contact.Fields{NameProperty: n.NameProperty, EmailProperty: n.EmailProperty}
}

// MessageTemplate returns the sender, subject and headers shared by every
// message of the run. Campaign headers override the built-in ones.
func MessageTemplate(cfg *config.Config) dispatch.MessageTemplate {
	headers := map[string]string{}
	if cfg.Message.ListUnsubscribe != "" {
		headers["List-Unsubscribe"] = cfg.Message.ListUnsubscribe
	}
	if cfg.Message.Campaign != "" {
		headers["X-Campaign"] = cfg.Message.Campaign
	}
	maps.Copy(headers, cfg.Message.Headers)

	return dispatch.MessageTemplate{
		From:    mail.Address{Name: cfg.Message.FromName, Email: cfg.Sender()},
		Subject: cfg.Message.Subject,
		Headers: headers,
	}
}

// NewNotionClient returns an API client for cfg.Notion.
func NewNotionClient(cfg config.NotionConfig, log *zap.SugaredLogger) (*notion.Client, error) {
	return notion.New(
		notion.WithBaseURL(cfg.BaseURL),
		notion.WithToken(cfg.Token.Unmask()),
		notion.WithAPIVersion(cfg.APIVersion),
		notion.WithTimeout(cfg.Timeout),
		notion.WithUserAgent(version.UserAgent()),
		notion.WithLogger(log),
	)
}

// NewStore returns the contact store over the configured database.
func NewStore(cfg *config.Config, log *zap.SugaredLogger) (*contact.Store, error) {
	client, err := NewNotionClient(cfg.Notion, log)
	if err != nil {
		return nil, fmt.Errorf("creating notion client: %w", err)
	}
	return contact.NewStore(client, cfg.Notion.DatabaseID, Predicate(cfg.Eligibility), cfg.Notion.PageSize, log)
}

// NewRenderer parses the configured message templates.
func NewRenderer(m config.MessageConfig) (*mail.Renderer, error) {
	return mail.NewRenderer(mail.RendererConfig{
		TemplatePath: m.TemplatePath,
		ContentPath:  m.ContentPath,
		TextBody:     m.TextBody,
		Style: mail.Style{
			Title:           m.Title,
			BackgroundColor: m.BackgroundColor,
			BrandColor:      m.BrandColor,
		},
	})
}

// NewDialer returns the SMTP dialer for the configured account.
func NewDialer(s config.SMTPConfig, log *zap.SugaredLogger) *mail.Dialer {
	return mail.NewDialer(mail.DialerConfig{
		Host:               s.Host,
		Port:               s.Port,
		Username:           s.Account,
		Password:           s.Password.Unmask(),
		InsecureSkipVerify: s.InsecureSkipVerify,
	}, log)
}

// NewSink returns the structured log sink, fanned out to the webhook and
// Kafka sinks when they are configured.
func NewSink(cfg config.EventsConfig, logger *zap.Logger) (events.Sink, error) {
	sinks := []events.Sink{events.NewLogSink(logger)}

	if cfg.WebhookURL != "" {
		s, err := events.NewWebhookSink(events.WebhookSinkConfig{
			URL:     cfg.WebhookURL,
			Headers: map[string]string{"User-Agent": version.UserAgent()},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating webhook sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if brokers := nonEmpty(cfg.KafkaBrokers); len(brokers) > 0 {
		s, err := events.NewKafkaSink(events.KafkaSinkConfig{Brokers: brokers, Topic: cfg.KafkaTopic}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return events.NewMultiSink(sinks, logger), nil
}

// Outreach is one fully wired run.
type Outreach struct {
	cfg    *config.Config
	runner *dispatch.Runner
	sink   events.Sink
	log    *zap.SugaredLogger
}

// New wires the store, renderer, dialer and sinks described by cfg.
// Missing templates and invalid eligibility settings fail here, before any
// network call.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Outreach, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	store, err := NewStore(cfg, log)
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(cfg.Message)
	if err != nil {
		return nil, err
	}
	log.Infow("Message templates loaded", "html", renderer.HasHTML(), "template", cfg.Message.TemplatePath)

	sink, err := NewSink(cfg.Events, log.Desugar())
	if err != nil {
		return nil, err
	}

	p := store.Predicate()
	runner, err := dispatch.NewRunner(dispatch.Config{
		Store:     store,
		Dialer:    NewDialer(cfg.SMTP, log),
		Renderer:  renderer,
		Sink:      sink,
		Predicate: &p,
		Fields:    Fields(cfg.Notion),
		Message:   MessageTemplate(cfg),
		Throttle:  cfg.Run.Throttle,
		DryRun:    cfg.Run.DryRun,
		Logger:    log,
	})
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return &Outreach{cfg: cfg, runner: runner, sink: sink, log: log.Named("app")}, nil
}

// Run executes one pass, writes the report file when configured and pushes
// metrics. Report and push failures are logged, never returned.
func (o *Outreach) Run(ctx context.Context) (*dispatch.Summary, error) {
	defer func() {
		if err := o.sink.Close(); err != nil {
			o.log.Warnw("Closing event sinks failed", "error", err.Error())
		}
	}()

	sum, runErr := o.runner.Run(ctx)

	if path := o.cfg.Run.ReportPath; path != "" && sum != nil {
		if err := output.WriteFile(path, output.Format(o.cfg.Run.ReportFormat), sum); err != nil {
			o.log.Warnw("Writing run report failed", "path", path, "error", err.Error())
		} else {
			o.log.Infow("Run report written", "path", path)
		}
	}

	runID := ""
	if sum != nil {
		runID = sum.RunID
	}
	if err := metrics.Push(context.WithoutCancel(ctx), o.cfg.Events.PushgatewayURL, o.cfg.Events.PushJob, runID); err != nil {
		o.log.Warnw("Pushing metrics failed", "error", err.Error())
	}
	return sum, withAccessHint(runErr)
}

// Run wires cfg and executes one pass.
func Run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*dispatch.Summary, error) {
	o, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}

// Diagnose samples the contact database and explains which rows a run
// would pick up.
func Diagnose(ctx context.Context, cfg *config.Config, rows int, log *zap.SugaredLogger) (*dispatch.Diagnosis, error) {
	store, err := NewStore(cfg, log)
	if err != nil {
		return nil, err
	}
	d, err := dispatch.Diagnose(ctx, store, store.Predicate(), Fields(cfg.Notion), rows)
	return d, withAccessHint(err)
}

// withAccessHint names the usual cause of a rejected Notion call.
func withAccessHint(err error) error {
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		return fmt.Errorf("%w (check NOTION_TOKEN and that the database is shared with the integration)", err)
	}
	return err
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
