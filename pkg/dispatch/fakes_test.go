// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/telekom/notion-outreach/pkg/contact"
	"github.com/telekom/notion-outreach/pkg/mail"
	"github.com/telekom/notion-outreach/pkg/notion"
)

var defaultPredicate = contact.StatusPredicate("Status", contact.KindStatus, "Ready to Send", "Sent")

// callLog records the order of side effects across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func record(id, name, email, status string) contact.Record {
	props := map[string]notion.PropertyValue{
		"Name":   {Type: notion.TypeTitle, Title: []notion.RichText{{PlainText: name}}},
		"Status": {Type: notion.TypeStatus, Status: &notion.SelectOption{Name: status}},
	}
	if email != "" {
		props["Email"] = notion.PropertyValue{Type: notion.TypeEmail, Email: &email}
	} else {
		props["Email"] = notion.PropertyValue{Type: notion.TypeEmail}
	}
	return contact.Record{ID: id, Properties: props}
}

// memoryStore selects records with a predicate and applies its sent
// assignments on MarkSent, like the Notion-backed store.
type memoryStore struct {
	log       *callLog
	predicate contact.Predicate
	records   []contact.Record
	truncated bool
	queryErr  error
	updateErr map[string]error
	// stale is returned as-is by FindEligible, bypassing the predicate.
	stale []contact.Record
}

func (s *memoryStore) FindEligible(context.Context) (contact.Result, error) {
	s.log.add("query")
	if s.queryErr != nil {
		return contact.Result{}, s.queryErr
	}
	res := contact.Result{Truncated: s.truncated}
	for _, r := range s.records {
		if s.predicate.Matches(r) {
			res.Records = append(res.Records, r)
		}
	}
	res.Records = append(res.Records, s.stale...)
	return res, nil
}

func (s *memoryStore) Sample(context.Context) (contact.Result, error) {
	if s.queryErr != nil {
		return contact.Result{}, s.queryErr
	}
	return contact.Result{Records: s.records, Truncated: s.truncated}, nil
}

func (s *memoryStore) MarkSent(_ context.Context, id string) error {
	s.log.add("update %s", id)
	if err := s.updateErr[id]; err != nil {
		return err
	}
	props, err := s.predicate.SentProperties()
	if err != nil {
		return err
	}
	for _, r := range s.records {
		if r.ID != id {
			continue
		}
		for name, v := range props {
			cur := r.Properties[name]
			if v.Status != nil {
				cur.Status = v.Status
			}
			if v.Select != nil {
				cur.Select = v.Select
			}
			r.Properties[name] = cur
		}
	}
	return nil
}

func (s *memoryStore) status(id string) string {
	for _, r := range s.records {
		if r.ID == id {
			return r.Properties["Status"].Text()
		}
	}
	return ""
}

type fakeDialer struct {
	log     *callLog
	openErr error
	failFor map[string]error
	opened  int
	session *fakeSession
}

func (d *fakeDialer) Open(context.Context) (mail.Session, error) {
	d.log.add("open")
	d.opened++
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.session = &fakeSession{dialer: d}
	return d.session, nil
}

type fakeSession struct {
	dialer *fakeDialer
	sent   []mail.Message
	closed int
}

func (s *fakeSession) Send(m mail.Message) error {
	if s.closed > 0 {
		return errors.New("send on closed session")
	}
	s.dialer.log.add("send %s", m.To.Email)
	if err := s.dialer.failFor[m.To.Email]; err != nil {
		return err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSession) Close() error {
	s.dialer.log.add("close")
	s.closed++
	return nil
}

type fakeRenderer struct {
	failFor string
}

func (r fakeRenderer) Render(name string) (mail.Body, error) {
	if r.failFor != "" && name == r.failFor {
		return mail.Body{}, errors.New("template: missing key")
	}
	return mail.Body{Text: "Hi " + name, HTML: "<p>Hi " + name + "</p>"}, nil
}

func selectValue(v string) notion.PropertyValue {
	return notion.PropertyValue{Type: notion.TypeSelect, Select: &notion.SelectOption{Name: v}}
}
