// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "time"

// Status is the result of processing one record.
type Status string

const (
	StatusSent             Status = "sent"
	StatusSendFailed       Status = "send_failed"
	StatusUpdateFailed     Status = "update_failed"
	StatusMissingRecipient Status = "missing_recipient"
	StatusRenderFailed     Status = "render_failed"
	StatusSkipped          Status = "skipped"
	StatusDryRun           Status = "dry_run"
)

// Outcome records what happened to one eligible record.
type Outcome struct {
	RecordID string    `json:"recordId" yaml:"recordId"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Email    string    `json:"email,omitempty" yaml:"email,omitempty"`
	Status   Status    `json:"status" yaml:"status"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	At       time.Time `json:"at" yaml:"at"`
}

// Summary is the machine-readable report of one run.
type Summary struct {
	RunID      string    `json:"runId" yaml:"runId"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
	DryRun     bool      `json:"dryRun" yaml:"dryRun"`

	Eligible  int  `json:"eligible" yaml:"eligible"`
	Truncated bool `json:"truncated" yaml:"truncated"`
	// Sent counts delivered emails, including those whose status update failed.
	Sent         int `json:"sent" yaml:"sent"`
	Failed       int `json:"failed" yaml:"failed"`
	Skipped      int `json:"skipped" yaml:"skipped"`
	UpdateFailed int `json:"updateFailed" yaml:"updateFailed"`

	// Error is set when the run aborted.
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusSent:
		s.Sent++
	case StatusUpdateFailed:
		s.Sent++
		s.UpdateFailed++
	case StatusSendFailed, StatusRenderFailed:
		s.Failed++
	case StatusMissingRecipient, StatusSkipped, StatusDryRun:
		s.Skipped++
	}
}

// Errors lists the per-record failures.
func (s *Summary) Errors() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Error != "" {
			out = append(out, o)
		}
	}
	return out
}
