// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/notion-outreach/pkg/contact"
	"github.com/telekom/notion-outreach/pkg/events"
	"github.com/telekom/notion-outreach/pkg/mail"
	"github.com/telekom/notion-outreach/pkg/system"
)

type harness struct {
	log      *callLog
	store    *memoryStore
	dialer   *fakeDialer
	recorder *events.Recorder
	cfg      Config
}

func newHarness(records ...contact.Record) *harness {
	log := &callLog{}
	h := &harness{
		log:      log,
		store:    &memoryStore{log: log, predicate: defaultPredicate, records: records, updateErr: map[string]error{}},
		dialer:   &fakeDialer{log: log, failFor: map[string]error{}},
		recorder: events.NewRecorder(),
	}
	h.cfg = Config{
		Store:    h.store,
		Dialer:   h.dialer,
		Renderer: fakeRenderer{},
		Sink:     h.recorder,
		Message: MessageTemplate{
			From:    mail.Address{Name: "Outreach Team", Email: "team@example.com"},
			Subject: "Let's collaborate",
			Headers: map[string]string{"X-Campaign-Category": "partners"},
		},
		Logger: system.NewTestLogger(),
	}
	return h
}

func (h *harness) run(t *testing.T) (*Summary, error) {
	t.Helper()
	r, err := NewRunner(h.cfg)
	require.NoError(t, err)
	return r.Run(context.Background())
}

func TestNewRunner_Validation(t *testing.T) {
	h := newHarness()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no store", func(c *Config) { c.Store = nil }},
		{"no dialer", func(c *Config) { c.Dialer = nil }},
		{"no renderer", func(c *Config) { c.Renderer = nil }},
		{"no sender", func(c *Config) { c.Message.From.Email = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := h.cfg
			tt.mutate(&cfg)
			_, err := NewRunner(cfg)
			require.Error(t, err)
		})
	}

	cfg := h.cfg
	cfg.Dialer = nil
	cfg.DryRun = true
	_, err := NewRunner(cfg)
	assert.NoError(t, err, "dry run needs no dialer")
}

func TestRun_ZeroEligibleOpensNoSession(t *testing.T) {
	h := newHarness(record("p1", "Old", "old@x.com", "Sent"))

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Eligible)
	assert.Equal(t, 0, h.dialer.opened)
	assert.Equal(t, []string{"query"}, h.log.all())
	assert.Equal(t, []events.Type{events.RunStarted, events.RunNoRecords, events.RunFinished}, h.recorder.Types())
}

func TestRun_JaneDoe(t *testing.T) {
	h := newHarness(record("p1", "Jane Doe", "jane@x.com", "Ready to Send"))

	sum, err := h.run(t)
	require.NoError(t, err)

	require.NotNil(t, h.dialer.session)
	sent := h.dialer.session.sent
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@x.com", sent[0].To.Email)
	assert.Equal(t, "Jane Doe", sent[0].To.Name)
	assert.Contains(t, sent[0].Subject, "Let's collaborate")
	assert.Equal(t, "team@example.com", sent[0].From.Email)
	assert.Equal(t, "partners", sent[0].Headers["X-Campaign-Category"])
	assert.Equal(t, "Hi Jane Doe", sent[0].Text)

	assert.Equal(t, "Sent", h.store.status("p1"))
	assert.Equal(t, []string{"query", "open", "send jane@x.com", "update p1", "close"}, h.log.all())

	assert.Equal(t, 1, sum.Eligible)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 0, sum.Failed)
	require.Len(t, sum.Outcomes, 1)
	assert.Equal(t, StatusSent, sum.Outcomes[0].Status)
	assert.NotEmpty(t, sum.RunID)
	assert.False(t, sum.FinishedAt.Before(sum.StartedAt))

	assert.Equal(t, []events.Type{
		events.RunStarted, events.EmailSent, events.StatusUpdated, events.RunFinished,
	}, h.recorder.Types())
	for _, e := range h.recorder.Events() {
		assert.Equal(t, sum.RunID, e.RunID)
	}
}

func TestRun_SendPrecedesUpdateExactlyOnce(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "B", "b@x.com", "Ready to Send"),
		record("p3", "C", "c@x.com", "Ready to Send"),
	)

	_, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"query", "open",
		"send a@x.com", "update p1",
		"send b@x.com", "update p2",
		"send c@x.com", "update p3",
		"close",
	}, h.log.all())
	assert.Equal(t, 1, h.dialer.opened, "one session for the whole run")
	assert.Equal(t, 1, h.dialer.session.closed)
}

func TestRun_EmptyNameAndEmail(t *testing.T) {
	h := newHarness(
		record("p1", "", "", "Ready to Send"),
		record("p2", "Bob", "bob@x.com", "Ready to Send"),
	)

	sum, err := h.run(t)
	require.NoError(t, err)

	require.Len(t, sum.Outcomes, 2)
	first := sum.Outcomes[0]
	assert.Equal(t, StatusMissingRecipient, first.Status)
	assert.Equal(t, contact.DefaultName, first.Name)
	assert.NotEmpty(t, first.Error)
	assert.Equal(t, "Ready to Send", h.store.status("p1"), "record stays eligible")

	assert.Equal(t, StatusSent, sum.Outcomes[1].Status, "run continues with the next record")
	assert.Equal(t, []string{"query", "open", "send bob@x.com", "update p2", "close"}, h.log.all())
	assert.Equal(t, 1, sum.Skipped)

	missing := h.recorder.OfType(events.RecordMissingRecipient)
	require.Len(t, missing, 1)
	assert.Equal(t, "p1", missing[0].RecordID)
	assert.Equal(t, events.LevelWarn, missing[0].Level)
}

func TestRun_DefaultNameHasNoDisplayName(t *testing.T) {
	h := newHarness(record("p1", "", "anon@x.com", "Ready to Send"))
	_, err := h.run(t)
	require.NoError(t, err)

	sent := h.dialer.session.sent
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].To.Name)
	assert.Equal(t, "Hi there", sent[0].Text)
}

func TestRun_QueryFailureAborts(t *testing.T) {
	h := newHarness(record("p1", "Jane Doe", "jane@x.com", "Ready to Send"))
	h.store.queryErr = errors.New("dial tcp: i/o timeout")

	sum, err := h.run(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	require.NotNil(t, sum)
	assert.NotEmpty(t, sum.Error)
	assert.Equal(t, 0, h.dialer.opened)
	assert.Equal(t, []string{"query"}, h.log.all(), "zero sends, zero updates")

	fatal := h.recorder.OfType(events.QueryFailed)
	require.Len(t, fatal, 1)
	assert.Equal(t, events.LevelFatal, fatal[0].Level)
	finished := h.recorder.OfType(events.RunFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, events.LevelError, finished[0].Level)
}

func TestRun_SessionFailureAborts(t *testing.T) {
	h := newHarness(record("p1", "Jane Doe", "jane@x.com", "Ready to Send"))
	h.dialer.openErr = errors.New("535 authentication failed")

	_, err := h.run(t)
	require.Error(t, err)
	assert.Equal(t, []string{"query", "open"}, h.log.all())
	assert.Equal(t, "Ready to Send", h.store.status("p1"))
	assert.Len(t, h.recorder.OfType(events.SessionFailed), 1)
}

func TestRun_SendFailureContinues(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "B", "bounce@x.com", "Ready to Send"),
		record("p3", "C", "c@x.com", "Ready to Send"),
	)
	h.dialer.failFor["bounce@x.com"] = errors.New("550 no such user")

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"query", "open",
		"send a@x.com", "update p1",
		"send bounce@x.com",
		"send c@x.com", "update p3",
		"close",
	}, h.log.all())
	assert.Equal(t, "Ready to Send", h.store.status("p2"), "failed send is not marked")
	assert.Equal(t, 2, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, StatusSendFailed, sum.Outcomes[1].Status)
	assert.Contains(t, sum.Outcomes[1].Error, "550")
	assert.Len(t, sum.Errors(), 1)
}

func TestRun_UpdateFailureContinues(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "B", "b@x.com", "Ready to Send"),
	)
	h.store.updateErr["p1"] = errors.New("409 conflict")

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Sent)
	assert.Equal(t, 1, sum.UpdateFailed)
	assert.Equal(t, StatusUpdateFailed, sum.Outcomes[0].Status)
	assert.Equal(t, StatusSent, sum.Outcomes[1].Status)
	assert.Equal(t, "Ready to Send", h.store.status("p1"))
	assert.Equal(t, "Sent", h.store.status("p2"))

	failed := h.recorder.OfType(events.StatusUpdateFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, events.LevelError, failed[0].Level)
}

func TestRun_RenderFailureSkipsSend(t *testing.T) {
	h := newHarness(
		record("p1", "Broken", "broken@x.com", "Ready to Send"),
		record("p2", "Fine", "fine@x.com", "Ready to Send"),
	)
	h.cfg.Renderer = fakeRenderer{failFor: "Broken"}

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, StatusRenderFailed, sum.Outcomes[0].Status)
	assert.Equal(t, []string{"query", "open", "send fine@x.com", "update p2", "close"}, h.log.all())
}

func TestRun_RerunSelectsNothing(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "B", "b@x.com", "Ready to Send"),
	)

	first, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sent)

	second, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Eligible)
	assert.Equal(t, 1, h.dialer.opened, "second run opens no session")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_GatedPredicate(t *testing.T) {
	gated := defaultPredicate.WithGate("Send Email", contact.KindSelect, "Yes", "No")
	open := record("p1", "A", "a@x.com", "Ready to Send")
	open.Properties["Send Email"] = selectValue("Yes")
	closed := record("p2", "B", "b@x.com", "Ready to Send")
	closed.Properties["Send Email"] = selectValue("No")

	h := newHarness(open, closed)
	h.store.predicate = gated
	h.cfg.Predicate = &gated

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Eligible)
	assert.Equal(t, "Sent", h.store.status("p1"))
	assert.Equal(t, "No", open.Properties["Send Email"].Select.Name)
}

func TestRun_GuardSkipsStaleRecords(t *testing.T) {
	h := newHarness(record("p1", "A", "a@x.com", "Ready to Send"))
	h.store.stale = []contact.Record{record("p9", "Z", "z@x.com", "Sent")}
	h.cfg.Predicate = &defaultPredicate

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Eligible)
	assert.Equal(t, StatusSkipped, sum.Outcomes[1].Status)
	assert.NotContains(t, h.log.all(), "send z@x.com")
	assert.Len(t, h.recorder.OfType(events.RecordSkipped), 1)
}

func TestRun_TruncatedWarns(t *testing.T) {
	h := newHarness(record("p1", "A", "a@x.com", "Ready to Send"))
	h.store.truncated = true

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, sum.Truncated)
	warn := h.recorder.OfType(events.QueryTruncated)
	require.Len(t, warn, 1)
	assert.Equal(t, events.LevelWarn, warn[0].Level)
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "", "", "Ready to Send"),
	)
	h.cfg.DryRun = true

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 0, h.dialer.opened)
	assert.Equal(t, []string{"query"}, h.log.all(), "no sends and no updates")
	assert.Equal(t, StatusDryRun, sum.Outcomes[0].Status)
	assert.Equal(t, StatusMissingRecipient, sum.Outcomes[1].Status)
	assert.Equal(t, 0, sum.Sent)
}

func TestRun_Throttle(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "B", "b@x.com", "Ready to Send"),
		record("p3", "C", "c@x.com", "Ready to Send"),
	)
	h.cfg.Throttle = 30 * time.Millisecond

	start := time.Now()
	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Sent)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRun_CanceledContextStopsLoop(t *testing.T) {
	h := newHarness(
		record("p1", "A", "a@x.com", "Ready to Send"),
		record("p2", "B", "b@x.com", "Ready to Send"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	h.cfg.Renderer = cancelingRenderer{cancel: cancel}

	r, err := NewRunner(h.cfg)
	require.NoError(t, err)
	sum, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sum.Outcomes, 1)
	assert.Equal(t, 1, h.dialer.session.closed, "session is closed on early exit")
	assert.Len(t, h.recorder.OfType(events.RunFinished), 1)
}

// cancelingRenderer cancels the run while the first record is processed.
type cancelingRenderer struct {
	cancel context.CancelFunc
}

func (r cancelingRenderer) Render(name string) (mail.Body, error) {
	r.cancel()
	return mail.Body{Text: "Hi " + name}, nil
}

func TestRun_FixedClock(t *testing.T) {
	h := newHarness()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	h.cfg.Now = func() time.Time { return fixed }

	sum, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, fixed, sum.StartedAt)
	assert.Equal(t, fixed, sum.FinishedAt)
	for _, e := range h.recorder.Events() {
		assert.Equal(t, fixed, e.Timestamp)
	}
}

func TestRun_LogsEachRecordOutcome(t *testing.T) {
	h := newHarness(
		record("p1", "Jane Doe", "jane@x.com", "Ready to Send"),
		record("p2", "No Mail", "", "Ready to Send"),
	)
	logger, logs := system.NewObservedLogger()
	h.cfg.Logger = logger

	_, err := h.run(t)
	require.NoError(t, err)

	entries := logs.FilterMessage("Record processed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "dispatch", entries[0].LoggerName)
	assert.Equal(t, "p1", entries[0].ContextMap()["record"])
	assert.Equal(t, "jane@x.com", entries[0].ContextMap()["recipient"])
	assert.Equal(t, "sent", entries[0].ContextMap()["status"])

	fields := entries[1].ContextMap()
	assert.Equal(t, "p2", fields["record"])
	assert.NotContains(t, fields, "recipient")
	assert.Equal(t, "missing_recipient", fields["status"])
}
