// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/telekom/notion-outreach/pkg/notion"
)

// DefaultName greets contacts whose name is empty.
const DefaultName = "there"

// ErrMissingRecipient is returned by Extract when a record has no email address.
var ErrMissingRecipient = errors.New("missing recipient address")

// Record is one database row: an opaque id plus the raw property map.
type Record struct {
	ID         string
	URL        string
	Properties map[string]notion.PropertyValue
}

// FromPage converts a Notion page into a Record.
func FromPage(p notion.Page) Record {
	return Record{ID: p.ID, URL: p.URL, Properties: p.Properties}
}

// Contact is the part of a record needed to address a message.
type Contact struct {
	RecordID string `json:"recordId" yaml:"recordId"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
}

// Fields names the properties holding the contact name and address. An empty
// name selects the first property of type title or email respectively.
type Fields struct {
	NameProperty  string
	EmailProperty string
}

// Extract reads the name and email of rec. The name falls back to DefaultName,
// a missing email yields an error wrapping ErrMissingRecipient. The returned
// Contact is populated in both cases.
func Extract(rec Record, f Fields) (Contact, error) {
	c := Contact{RecordID: rec.ID, Name: DefaultName}

	if prop, ok := rec.lookup(f.NameProperty, notion.TypeTitle); ok {
		if name := strings.TrimSpace(firstSegment(prop)); name != "" {
			c.Name = name
		}
	}
	if prop, ok := rec.lookup(f.EmailProperty, notion.TypeEmail); ok {
		c.Email = strings.TrimSpace(prop.Text())
	}
	if c.Email == "" {
		return c, fmt.Errorf("record %s: %w", rec.ID, ErrMissingRecipient)
	}
	return c, nil
}

// lookup returns the named property, or the first property of kind in name
// order when name is empty.
func (r Record) lookup(name, kind string) (notion.PropertyValue, bool) {
	if name != "" {
		p, ok := r.Properties[name]
		return p, ok
	}
	keys := make([]string, 0, len(r.Properties))
	for k := range r.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if r.Properties[k].Type == kind {
			return r.Properties[k], true
		}
	}
	return notion.PropertyValue{}, false
}

// firstSegment returns the plain text of the first rich text segment of a
// title or rich_text property and the full text of anything else.
func firstSegment(p notion.PropertyValue) string {
	var segments []notion.RichText
	switch p.Type {
	case notion.TypeTitle:
		segments = p.Title
	case notion.TypeRichText:
		segments = p.RichText
	default:
		return p.Text()
	}
	if len(segments) == 0 {
		return ""
	}
	if segments[0].PlainText != "" {
		return segments[0].PlainText
	}
	if segments[0].Text != nil {
		return segments[0].Text.Content
	}
	return ""
}
