// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/notion-outreach/pkg/metrics"
	"github.com/telekom/notion-outreach/pkg/notion"
)

// DefaultPageSize is the largest page the Notion query endpoint returns.
const DefaultPageSize = 100

// Database is the subset of the Notion client used by Store.
type Database interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.QueryRequest) (*notion.QueryResponse, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]notion.PropertyValue) error
}

// Result is one page of query results. Truncated is set when more rows may
// exist beyond this page; only the first page is ever read.
type Result struct {
	Records   []Record
	Truncated bool
}

// Store reads eligible contacts from a database and marks them as sent.
type Store struct {
	db         Database
	databaseID string
	predicate  Predicate
	pageSize   int
	log        *zap.SugaredLogger
}

// NewStore validates p and returns a Store over db.
func NewStore(db Database, databaseID string, p Predicate, pageSize int, log *zap.SugaredLogger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database client is required")
	}
	if databaseID == "" {
		return nil, errors.New("database id is required")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid eligibility predicate: %w", err)
	}
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, databaseID: databaseID, predicate: p, pageSize: pageSize, log: log.Named("contacts")}, nil
}

// Predicate returns the eligibility predicate the store queries with.
func (s *Store) Predicate() Predicate {
	return s.predicate
}

// FindEligible issues one filtered query and returns the first page of
// eligible records.
func (s *Store) FindEligible(ctx context.Context) (Result, error) {
	filter, err := s.predicate.Filter()
	if err != nil {
		return Result{}, err
	}
	res, err := s.query(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("querying eligible contacts: %w", err)
	}
	metrics.RecordsEligible.Set(float64(len(res.Records)))
	if res.Truncated {
		metrics.QueryTruncated.Inc()
	}
	s.log.Debugw("Eligible contacts fetched", "count", len(res.Records), "truncated", res.Truncated, "predicate", s.predicate.String())
	return res, nil
}

// Sample returns the first page of the database without any filter.
func (s *Store) Sample(ctx context.Context) (Result, error) {
	res, err := s.query(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("sampling contacts: %w", err)
	}
	return res, nil
}

// MarkSent patches the record with the predicate's sent assignments.
func (s *Store) MarkSent(ctx context.Context, recordID string) error {
	props, err := s.predicate.SentProperties()
	if err != nil {
		return err
	}
	if err := s.db.UpdatePage(ctx, recordID, props); err != nil {
		metrics.StatusUpdates.WithLabelValues("error").Inc()
		return fmt.Errorf("marking record %s as sent: %w", recordID, err)
	}
	metrics.StatusUpdates.WithLabelValues("success").Inc()
	return nil
}

func (s *Store) query(ctx context.Context, filter *notion.Filter) (Result, error) {
	resp, err := s.db.QueryDatabase(ctx, s.databaseID, notion.QueryRequest{Filter: filter, PageSize: s.pageSize})
	if err != nil {
		return Result{}, err
	}
	records := make([]Record, 0, len(resp.Results))
	for _, p := range resp.Results {
		if p.Archived {
			continue
		}
		records = append(records, FromPage(p))
	}
	return Result{
		Records:   records,
		Truncated: resp.HasMore || len(resp.Results) >= s.pageSize,
	}, nil
}
