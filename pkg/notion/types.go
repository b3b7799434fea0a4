// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notion

import (
	"fmt"
	"strings"
	"time"
)

// Property types the dispatcher reads or writes.
const (
	TypeTitle    = "title"
	TypeRichText = "rich_text"
	TypeEmail    = "email"
	TypeSelect   = "select"
	TypeStatus   = "status"
	TypeCheckbox = "checkbox"
)

// TextContent is the writable part of a rich text segment.
type TextContent struct {
	Content string `json:"content"`
}

// RichText is one segment of a title or rich_text property.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
}

// SelectOption is the value of a select or status property.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// PropertyValue is a page property. Exactly one of the typed fields is set,
// matching Type; Notion sends explicit nulls for empty select/status/email.
type PropertyValue struct {
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Email    *string       `json:"email,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	Status   *SelectOption `json:"status,omitempty"`
	Checkbox *bool         `json:"checkbox,omitempty"`
}

// Text returns the value of a textual property as a string: the option name of
// select/status, the email address, or the concatenated plain text of
// title/rich_text.
func (p PropertyValue) Text() string {
	switch p.Type {
	case TypeSelect:
		if p.Select != nil {
			return p.Select.Name
		}
	case TypeStatus:
		if p.Status != nil {
			return p.Status.Name
		}
	case TypeEmail:
		if p.Email != nil {
			return *p.Email
		}
	case TypeTitle:
		return plainText(p.Title)
	case TypeRichText:
		return plainText(p.RichText)
	case TypeCheckbox:
		if p.Checkbox != nil {
			return fmt.Sprintf("%t", *p.Checkbox)
		}
	}
	return ""
}

func plainText(segments []RichText) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.PlainText != "" {
			b.WriteString(seg.PlainText)
		} else if seg.Text != nil {
			b.WriteString(seg.Text.Content)
		}
	}
	return b.String()
}

// StatusValue builds a status property write.
func StatusValue(name string) PropertyValue {
	return PropertyValue{Status: &SelectOption{Name: name}}
}

// SelectValue builds a select property write.
func SelectValue(name string) PropertyValue {
	return PropertyValue{Select: &SelectOption{Name: name}}
}

// RichTextValue builds a rich_text property write.
func RichTextValue(content string) PropertyValue {
	return PropertyValue{RichText: []RichText{{Text: &TextContent{Content: content}}}}
}

// CheckboxValue builds a checkbox property write.
func CheckboxValue(checked bool) PropertyValue {
	return PropertyValue{Checkbox: &checked}
}

// Page is a database row.
type Page struct {
	Object         string                   `json:"object"`
	ID             string                   `json:"id"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Archived       bool                     `json:"archived"`
	URL            string                   `json:"url,omitempty"`
	Properties     map[string]PropertyValue `json:"properties"`
}

// Condition compares a textual property to a value.
type Condition struct {
	Equals string `json:"equals"`
}

// CheckboxCondition compares a checkbox property.
type CheckboxCondition struct {
	Equals bool `json:"equals"`
}

// Filter is a database query filter: either a property filter or a compound
// "and" of property filters.
type Filter struct {
	Property string             `json:"property,omitempty"`
	Status   *Condition         `json:"status,omitempty"`
	Select   *Condition         `json:"select,omitempty"`
	RichText *Condition         `json:"rich_text,omitempty"`
	Checkbox *CheckboxCondition `json:"checkbox,omitempty"`
	And      []Filter           `json:"and,omitempty"`
}

// QueryRequest is the body of POST /v1/databases/{id}/query.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

// QueryResponse is one page of query results.
type QueryResponse struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type updatePageRequest struct {
	Properties map[string]PropertyValue `json:"properties"`
}
