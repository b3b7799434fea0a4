// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/telekom/notion-outreach/pkg/contact"
	"github.com/telekom/notion-outreach/pkg/events"
	"github.com/telekom/notion-outreach/pkg/mail"
	"github.com/telekom/notion-outreach/pkg/metrics"
	"github.com/telekom/notion-outreach/pkg/system"
)

// Store is the contact database.
type Store interface {
	FindEligible(ctx context.Context) (contact.Result, error)
	MarkSent(ctx context.Context, recordID string) error
}

// Dialer opens the SMTP session for a run.
type Dialer interface {
	Open(ctx context.Context) (mail.Session, error)
}

// Renderer produces the personalised message body.
type Renderer interface {
	Render(name string) (mail.Body, error)
}

// MessageTemplate holds the parts of a message shared by all recipients.
type MessageTemplate struct {
	From    mail.Address
	Subject string
	Headers map[string]string
}

// Config wires a Runner. Store, Dialer and Renderer are required.
type Config struct {
	Store    Store
	Dialer   Dialer
	Renderer Renderer
	Sink     events.Sink

	// Predicate, when set, re-checks every queried record before sending.
	Predicate *contact.Predicate
	Fields    contact.Fields
	Message   MessageTemplate

	// Throttle is the minimum spacing between two sends; zero disables it.
	Throttle time.Duration
	DryRun   bool

	Logger *zap.SugaredLogger
	Now    func() time.Time
}

// Runner executes outreach runs.
type Runner struct {
	cfg     Config
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("contact store is required")
	}
	if cfg.Dialer == nil && !cfg.DryRun {
		return nil, errors.New("mail dialer is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if cfg.Message.From.Email == "" {
		return nil, errors.New("sender address is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Sink == nil {
		cfg.Sink = events.NewLogSink(cfg.Logger.Desugar())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	limit := rate.Inf
	if cfg.Throttle > 0 {
		limit = rate.Every(cfg.Throttle)
	}
	return &Runner{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     cfg.Logger.Named("dispatch"),
	}, nil
}

// Run performs one pass. A returned error means the run aborted (query or
// session failure, or cancellation); per-record failures are only reported
// in the Summary and never abort the run. The Summary is non-nil in both
// cases.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString(), StartedAt: r.cfg.Now().UTC(), DryRun: r.cfg.DryRun, Outcomes: []Outcome{}}
	log := r.log.With("run", sum.RunID)

	r.emit(ctx, r.event(sum, events.RunStarted, events.LevelInfo, "Outreach run started").
		With("dryRun", r.cfg.DryRun))

	res, err := r.cfg.Store.FindEligible(ctx)
	if err != nil {
		r.emit(ctx, r.event(sum, events.QueryFailed, events.LevelFatal, "Querying eligible contacts failed").
			With("error", err.Error()))
		return r.abort(ctx, sum, fmt.Errorf("finding eligible contacts: %w", err))
	}
	sum.Eligible = len(res.Records)
	sum.Truncated = res.Truncated
	log.Infow("Eligible contacts found", "count", sum.Eligible, "truncated", sum.Truncated)

	if res.Truncated {
		r.emit(ctx, r.event(sum, events.QueryTruncated, events.LevelWarn,
			"Query returned a full page; further eligible rows are left for the next run").
			With("count", sum.Eligible))
	}
	if len(res.Records) == 0 {
		r.emit(ctx, r.event(sum, events.RunNoRecords, events.LevelInfo, "No eligible contacts"))
		return r.finish(ctx, sum), nil
	}

	var session mail.Session
	if !r.cfg.DryRun {
		session, err = r.cfg.Dialer.Open(ctx)
		if err != nil {
			r.emit(ctx, r.event(sum, events.SessionFailed, events.LevelFatal, "Opening the SMTP session failed").
				With("error", err.Error()))
			return r.abort(ctx, sum, fmt.Errorf("opening smtp session: %w", err))
		}
		defer func() {
			if cerr := session.Close(); cerr != nil {
				log.Warnw("Closing SMTP session failed", "error", cerr.Error())
			}
		}()
	}

	for _, rec := range res.Records {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, sum, err)
		}
		out := r.process(ctx, sum, session, rec)
		log.Debugw("Record processed", append(system.RecordFields(out.RecordID, out.Email), "status", string(out.Status))...)
		sum.add(out)
	}
	return r.finish(ctx, sum), nil
}

func (r *Runner) process(ctx context.Context, sum *Summary, session mail.Session, rec contact.Record) Outcome {
	out := Outcome{RecordID: rec.ID}
	done := func(status Status, err error) Outcome {
		out.Status = status
		out.At = r.cfg.Now().UTC()
		if err != nil {
			out.Error = err.Error()
		}
		return out
	}

	if r.cfg.Predicate != nil && !r.cfg.Predicate.Matches(rec) {
		metrics.RecordsSkipped.WithLabelValues(string(StatusSkipped)).Inc()
		r.emit(ctx, r.event(sum, events.RecordSkipped, events.LevelWarn, "Record no longer matches the eligibility predicate").
			ForRecord(rec.ID, ""))
		return done(StatusSkipped, nil)
	}

	c, err := contact.Extract(rec, r.cfg.Fields)
	out.Name, out.Email = c.Name, c.Email
	if err != nil {
		metrics.RecordsSkipped.WithLabelValues(string(StatusMissingRecipient)).Inc()
		r.emit(ctx, r.event(sum, events.RecordMissingRecipient, events.LevelWarn, "Record has no email address").
			ForRecord(rec.ID, "").With("name", c.Name))
		return done(StatusMissingRecipient, err)
	}

	body, err := r.cfg.Renderer.Render(c.Name)
	if err != nil {
		metrics.RecordsSkipped.WithLabelValues(string(StatusRenderFailed)).Inc()
		r.emit(ctx, r.event(sum, events.RecordRenderFailed, events.LevelError, "Rendering the message failed").
			ForRecord(rec.ID, c.Email).With("error", err.Error()))
		return done(StatusRenderFailed, err)
	}
	msg := r.message(c, body)

	if r.cfg.DryRun {
		r.emit(ctx, r.event(sum, events.RecordSkipped, events.LevelInfo, "Dry run, message not sent").
			ForRecord(rec.ID, c.Email).With("subject", msg.Subject))
		return done(StatusDryRun, nil)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return done(StatusSendFailed, err)
	}
	if err := session.Send(msg); err != nil {
		r.emit(ctx, r.event(sum, events.EmailFailed, events.LevelError, "Sending the email failed").
			ForRecord(rec.ID, c.Email).With("error", err.Error()))
		return done(StatusSendFailed, err)
	}
	r.emit(ctx, r.event(sum, events.EmailSent, events.LevelInfo, "Email sent").
		ForRecord(rec.ID, c.Email).With("name", c.Name))

	if err := r.cfg.Store.MarkSent(ctx, rec.ID); err != nil {
		r.emit(ctx, r.event(sum, events.StatusUpdateFailed, events.LevelError,
			"Email sent but marking the record failed; it stays eligible and may be sent again").
			ForRecord(rec.ID, c.Email).With("error", err.Error()))
		return done(StatusUpdateFailed, err)
	}
	r.emit(ctx, r.event(sum, events.StatusUpdated, events.LevelInfo, "Record marked as sent").
		ForRecord(rec.ID, c.Email))
	return done(StatusSent, nil)
}

func (r *Runner) message(c contact.Contact, body mail.Body) mail.Message {
	to := mail.Address{Email: c.Email}
	if c.Name != contact.DefaultName {
		to.Name = c.Name
	}
	return mail.Message{
		From:    r.cfg.Message.From,
		To:      to,
		Subject: r.cfg.Message.Subject,
		Headers: maps.Clone(r.cfg.Message.Headers),
		Text:    body.Text,
		HTML:    body.HTML,
	}
}

func (r *Runner) abort(ctx context.Context, sum *Summary, err error) (*Summary, error) {
	sum.Error = err.Error()
	return r.finish(ctx, sum), err
}

func (r *Runner) finish(ctx context.Context, sum *Summary) *Summary {
	sum.FinishedAt = r.cfg.Now().UTC()
	level := events.LevelInfo
	if sum.Error != "" {
		level = events.LevelError
	}
	r.emit(ctx, r.event(sum, events.RunFinished, level, "Outreach run finished").
		With("eligible", sum.Eligible).
		With("sent", sum.Sent).
		With("failed", sum.Failed).
		With("skipped", sum.Skipped).
		With("updateFailed", sum.UpdateFailed).
		With("duration", sum.FinishedAt.Sub(sum.StartedAt).String()))
	return sum
}

func (r *Runner) event(sum *Summary, t events.Type, level events.Level, msg string) *events.Event {
	e := events.New(sum.RunID, t, level, msg)
	e.Timestamp = r.cfg.Now().UTC()
	return e
}

// emit never fails the run; sinks report their own errors.
func (r *Runner) emit(ctx context.Context, e *events.Event) {
	if err := r.cfg.Sink.Write(context.WithoutCancel(ctx), e); err != nil {
		r.log.Debugw("Event delivery failed", "event_type", string(e.Type), "error", err.Error())
	}
}
