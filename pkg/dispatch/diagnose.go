// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/telekom/notion-outreach/pkg/contact"
)

// DefaultDiagnoseRows is the number of rows diagnose prints.
const DefaultDiagnoseRows = 3

// Sampler returns an unfiltered page of the contact database.
type Sampler interface {
	Sample(ctx context.Context) (contact.Result, error)
}

// DiagnoseRow shows how one row is read.
type DiagnoseRow struct {
	RecordID    string `json:"recordId" yaml:"recordId"`
	Name        string `json:"name" yaml:"name"`
	Email       string `json:"email" yaml:"email"`
	StatusType  string `json:"statusType" yaml:"statusType"`
	StatusValue string `json:"statusValue" yaml:"statusValue"`
	Eligible    bool   `json:"eligible" yaml:"eligible"`
}

// Diagnosis explains why rows are or are not picked up by a run.
type Diagnosis struct {
	Predicate      string `json:"predicate" yaml:"predicate"`
	StatusProperty string `json:"statusProperty" yaml:"statusProperty"`
	Total          int    `json:"total" yaml:"total"`
	Truncated      bool   `json:"truncated" yaml:"truncated"`
	Eligible       int    `json:"eligible" yaml:"eligible"`
	// Properties maps the property names of the first row to their types.
	Properties map[string]string `json:"properties" yaml:"properties"`
	Rows       []DiagnoseRow     `json:"rows" yaml:"rows"`
}

// Diagnose reads the first page without a filter, describes the first limit
// rows and counts the rows the predicate accepts.
func Diagnose(ctx context.Context, s Sampler, p contact.Predicate, f contact.Fields, limit int) (*Diagnosis, error) {
	if len(p.Conditions) == 0 {
		return nil, errors.New("eligibility predicate has no conditions")
	}
	if limit <= 0 {
		limit = DefaultDiagnoseRows
	}

	res, err := s.Sample(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading contact database: %w", err)
	}

	statusProp := p.Conditions[0].Property
	d := &Diagnosis{
		Predicate:      p.String(),
		StatusProperty: statusProp,
		Total:          len(res.Records),
		Truncated:      res.Truncated,
		Properties:     map[string]string{},
		Rows:           []DiagnoseRow{},
	}
	if len(res.Records) > 0 {
		for name, prop := range res.Records[0].Properties {
			d.Properties[name] = prop.Type
		}
	}

	for i, rec := range res.Records {
		eligible := p.Matches(rec)
		if eligible {
			d.Eligible++
		}
		if i >= limit {
			continue
		}
		c, _ := contact.Extract(rec, f)
		row := DiagnoseRow{RecordID: rec.ID, Name: c.Name, Email: c.Email, StatusType: "missing", Eligible: eligible}
		if prop, ok := rec.Properties[statusProp]; ok {
			row.StatusType = prop.Type
			row.StatusValue = prop.Text()
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

// PropertyNames returns the property names of the first row, sorted.
func (d *Diagnosis) PropertyNames() []string {
	names := make([]string, 0, len(d.Properties))
	for n := range d.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
