// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package contact

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/telekom/notion-outreach/pkg/notion"
)

// Kind is the Notion property type a condition or assignment works on.
type Kind string

const (
	KindStatus   Kind = "status"
	KindSelect   Kind = "select"
	KindRichText Kind = "rich_text"
	KindCheckbox Kind = "checkbox"
)

// Condition requires Property to equal Equals.
type Condition struct {
	Property string `json:"property" yaml:"property"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Equals   string `json:"equals" yaml:"equals"`
}

// Assignment sets Property to Value after a successful send.
type Assignment struct {
	Property string `json:"property" yaml:"property"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Value    string `json:"value" yaml:"value"`
}

// Predicate decides which records are eligible and how a record is marked once
// it was sent. A record is eligible iff every condition holds.
type Predicate struct {
	Conditions []Condition  `json:"conditions" yaml:"conditions"`
	OnSent     []Assignment `json:"onSent" yaml:"onSent"`
}

// StatusPredicate is the single-condition form: property == ready, set to sent.
func StatusPredicate(property string, kind Kind, ready, sent string) Predicate {
	return Predicate{
		Conditions: []Condition{{Property: property, Kind: kind, Equals: ready}},
		OnSent:     []Assignment{{Property: property, Kind: kind, Value: sent}},
	}
}

// WithGate returns a copy of p that additionally requires property == value and
// sets it to cleared after sending.
func (p Predicate) WithGate(property string, kind Kind, value, cleared string) Predicate {
	out := Predicate{
		Conditions: append([]Condition{}, p.Conditions...),
		OnSent:     append([]Assignment{}, p.OnSent...),
	}
	out.Conditions = append(out.Conditions, Condition{Property: property, Kind: kind, Equals: value})
	out.OnSent = append(out.OnSent, Assignment{Property: property, Kind: kind, Value: cleared})
	return out
}

// Validate checks that the predicate can be rendered and that applying OnSent
// makes a record ineligible, so a rerun never selects a row it already sent.
func (p Predicate) Validate() error {
	if len(p.Conditions) == 0 {
		return errors.New("eligibility predicate needs at least one condition")
	}
	if len(p.OnSent) == 0 {
		return errors.New("eligibility predicate needs at least one sent assignment")
	}
	for _, c := range p.Conditions {
		if c.Property == "" {
			return errors.New("condition property must not be empty")
		}
		if err := checkValue(c.Kind, c.Equals); err != nil {
			return fmt.Errorf("condition on %q: %w", c.Property, err)
		}
	}
	breaks := false
	for _, a := range p.OnSent {
		if a.Property == "" {
			return errors.New("assignment property must not be empty")
		}
		if err := checkValue(a.Kind, a.Value); err != nil {
			return fmt.Errorf("assignment of %q: %w", a.Property, err)
		}
		for _, c := range p.Conditions {
			if c.Property == a.Property && !sameValue(c.Kind, c.Equals, a.Value) {
				breaks = true
			}
		}
	}
	if !breaks {
		return errors.New("sent assignments leave the record eligible")
	}
	return nil
}

// Filter renders the predicate as a Notion query filter: a single property
// filter, or an "and" compound for several conditions.
func (p Predicate) Filter() (*notion.Filter, error) {
	filters := make([]notion.Filter, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		f, err := c.filter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	switch len(filters) {
	case 0:
		return nil, errors.New("eligibility predicate has no conditions")
	case 1:
		return &filters[0], nil
	default:
		return &notion.Filter{And: filters}, nil
	}
}

// Matches evaluates the predicate against a record locally.
func (p Predicate) Matches(rec Record) bool {
	if len(p.Conditions) == 0 {
		return false
	}
	for _, c := range p.Conditions {
		if !c.holds(rec) {
			return false
		}
	}
	return true
}

// SentProperties is the page patch that marks a record as sent.
func (p Predicate) SentProperties() (map[string]notion.PropertyValue, error) {
	props := make(map[string]notion.PropertyValue, len(p.OnSent))
	for _, a := range p.OnSent {
		v, err := a.value()
		if err != nil {
			return nil, err
		}
		props[a.Property] = v
	}
	return props, nil
}

// String is a compact human-readable form used in logs.
func (p Predicate) String() string {
	parts := make([]string, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		parts = append(parts, fmt.Sprintf("%s(%s) == %q", c.Property, c.Kind, c.Equals))
	}
	return strings.Join(parts, " AND ")
}

func (c Condition) filter() (notion.Filter, error) {
	f := notion.Filter{Property: c.Property}
	switch c.Kind {
	case KindStatus:
		f.Status = &notion.Condition{Equals: c.Equals}
	case KindSelect:
		f.Select = &notion.Condition{Equals: c.Equals}
	case KindRichText:
		f.RichText = &notion.Condition{Equals: c.Equals}
	case KindCheckbox:
		b, err := parseCheckbox(c.Equals)
		if err != nil {
			return f, err
		}
		f.Checkbox = &notion.CheckboxCondition{Equals: b}
	default:
		return f, fmt.Errorf("unsupported property kind %q", c.Kind)
	}
	return f, nil
}

func (c Condition) holds(rec Record) bool {
	prop, ok := rec.Properties[c.Property]
	if !ok {
		return false
	}
	if c.Kind == KindCheckbox {
		want, err := parseCheckbox(c.Equals)
		return err == nil && prop.Checkbox != nil && *prop.Checkbox == want
	}
	return prop.Text() == c.Equals
}

func (a Assignment) value() (notion.PropertyValue, error) {
	switch a.Kind {
	case KindStatus:
		return notion.StatusValue(a.Value), nil
	case KindSelect:
		return notion.SelectValue(a.Value), nil
	case KindRichText:
		return notion.RichTextValue(a.Value), nil
	case KindCheckbox:
		b, err := parseCheckbox(a.Value)
		if err != nil {
			return notion.PropertyValue{}, err
		}
		return notion.CheckboxValue(b), nil
	default:
		return notion.PropertyValue{}, fmt.Errorf("unsupported property kind %q", a.Kind)
	}
}

func checkValue(kind Kind, value string) error {
	switch kind {
	case KindStatus, KindSelect, KindRichText:
		if kind != KindRichText && value == "" {
			return fmt.Errorf("%s value must not be empty", kind)
		}
		return nil
	case KindCheckbox:
		_, err := parseCheckbox(value)
		return err
	default:
		return fmt.Errorf("unsupported property kind %q", kind)
	}
}

func sameValue(kind Kind, a, b string) bool {
	if kind == KindCheckbox {
		x, errX := parseCheckbox(a)
		y, errY := parseCheckbox(b)
		return errX == nil && errY == nil && x == y
	}
	return a == b
}

// parseCheckbox accepts yes/no next to the strconv boolean forms.
func parseCheckbox(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid checkbox value %q", v)
	}
	return b, nil
}
