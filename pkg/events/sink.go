/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/notion-outreach/pkg/metrics"
)

// Sink defines the interface for event destinations.
type Sink interface {
	// Write delivers an event to the sink.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

// Write logs the event at its level. Fatal events are logged at error level;
// ending the process is the caller's decision.
func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("run_id", event.RunID),
	}
	if event.RecordID != "" {
		fields = append(fields, zap.String("record", event.RecordID))
	}
	if event.Recipient != "" {
		fields = append(fields, zap.String("recipient", event.Recipient))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.Any(k, v))
	}

	lvl := zapcore.InfoLevel
	switch event.Level {
	case LevelDebug:
		lvl = zapcore.DebugLevel
	case LevelWarn:
		lvl = zapcore.WarnLevel
	case LevelError, LevelFatal:
		lvl = zapcore.ErrorLevel
	}
	if ce := s.logger.Check(lvl, event.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

// Close flushes the logger.
func (s *LogSink) Close() error {
	_ = s.logger.Sync()
	return nil
}

// Name returns the sink identifier.
func (s *LogSink) Name() string {
	return "log"
}

// WebhookSink posts events as JSON to an HTTP endpoint.
type WebhookSink struct {
	name     string
	url      string
	minLevel Level
	client   *resty.Client
	logger   *zap.Logger
}

// WebhookSinkConfig configures a WebhookSink.
type WebhookSinkConfig struct {
	Name     string
	URL      string
	Headers  map[string]string
	Timeout  time.Duration
	MinLevel Level
}

// NewWebhookSink creates a new WebhookSink.
func NewWebhookSink(cfg WebhookSinkConfig, logger *zap.Logger) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	minLevel := cfg.MinLevel
	if minLevel == "" {
		minLevel = LevelInfo
	}
	name := cfg.Name
	if name == "" {
		name = "webhook"
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)

	logger.Info("Webhook event sink created",
		zap.String("name", name),
		zap.String("url", cfg.URL),
		zap.Duration("timeout", timeout))

	return &WebhookSink{
		name:     name,
		url:      cfg.URL,
		minLevel: minLevel,
		client:   client,
		logger:   logger.Named("webhook-sink"),
	}, nil
}

// Write posts the event. Events below the configured level are dropped.
func (s *WebhookSink) Write(ctx context.Context, event *Event) error {
	if !event.Level.AtLeast(s.minLevel) {
		return nil
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(s.url)
	if err != nil {
		s.logger.Debug("webhook request failed",
			zap.String("url", s.url),
			zap.String("event_id", event.ID),
			zap.String("error", err.Error()))
		return fmt.Errorf("failed to send event to %s: %w", s.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s returned error status: %d", s.url, resp.StatusCode())
	}
	return nil
}

// Close is a no-op for WebhookSink.
func (s *WebhookSink) Close() error {
	return nil
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string {
	return s.name
}

// MultiSink writes to several sinks in order. A failing sink does not stop
// delivery to the others.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMultiSink creates a sink that writes to multiple destinations.
func NewMultiSink(sinks []Sink, logger *zap.Logger) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// Write sends the event to all sinks and returns the joined errors.
func (s *MultiSink) Write(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			metrics.EventsFailed.WithLabelValues(sink.Name()).Inc()
			// Use string representation to avoid noisy stacktraces for transient errors
			s.logger.Warn("event sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("event_type", string(event.Type)),
				zap.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		metrics.EventsWritten.WithLabelValues(sink.Name()).Inc()
	}
	return errors.Join(errs...)
}

// Close closes all sinks.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Name returns the sink identifier.
func (s *MultiSink) Name() string {
	return "multi"
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Write(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Name() string { return "recorder" }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
