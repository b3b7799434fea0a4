// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/notion-outreach/pkg/contact"
	"github.com/telekom/notion-outreach/pkg/notion"
)

func TestDiagnose(t *testing.T) {
	noStatus := record("p5", "No Status", "n@x.com", "")
	delete(noStatus.Properties, "Status")
	selectStatus := record("p4", "Select", "s@x.com", "")
	selectStatus.Properties["Status"] = selectValue("Ready to Send")

	store := &memoryStore{log: &callLog{}, predicate: defaultPredicate, records: []contact.Record{
		record("p1", "Jane Doe", "jane@x.com", "Ready to Send"),
		record("p2", "", "", "Sent"),
		record("p3", "Ready Too", "r@x.com", "Ready to Send"),
		selectStatus,
		noStatus,
	}}

	d, err := Diagnose(context.Background(), store, defaultPredicate, contact.Fields{}, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, d.Total)
	assert.Equal(t, 3, d.Eligible, "select-typed status with the right value also matches locally")
	assert.Equal(t, "Status", d.StatusProperty)
	assert.Equal(t, `Status(status) == "Ready to Send"`, d.Predicate)
	assert.Equal(t, []string{"Email", "Name", "Status"}, d.PropertyNames())
	assert.Equal(t, notion.TypeStatus, d.Properties["Status"])

	require.Len(t, d.Rows, 3)
	assert.Equal(t, DiagnoseRow{RecordID: "p1", Name: "Jane Doe", Email: "jane@x.com", StatusType: "status", StatusValue: "Ready to Send", Eligible: true}, d.Rows[0])
	assert.Equal(t, contact.DefaultName, d.Rows[1].Name)
	assert.Equal(t, "Sent", d.Rows[1].StatusValue)
	assert.False(t, d.Rows[1].Eligible)
}

func TestDiagnose_MissingStatusProperty(t *testing.T) {
	rec := record("p1", "A", "a@x.com", "")
	delete(rec.Properties, "Status")
	store := &memoryStore{log: &callLog{}, predicate: defaultPredicate, records: []contact.Record{rec}}

	d, err := Diagnose(context.Background(), store, defaultPredicate, contact.Fields{}, 0)
	require.NoError(t, err)
	require.Len(t, d.Rows, 1)
	assert.Equal(t, "missing", d.Rows[0].StatusType)
	assert.Equal(t, 0, d.Eligible)
}

func TestDiagnose_Errors(t *testing.T) {
	store := &memoryStore{log: &callLog{}, queryErr: errors.New("401 unauthorized")}
	_, err := Diagnose(context.Background(), store, defaultPredicate, contact.Fields{}, 3)
	require.Error(t, err)

	_, err = Diagnose(context.Background(), store, contact.Predicate{}, contact.Fields{}, 3)
	require.Error(t, err)
}
