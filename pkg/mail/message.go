// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gomail.v2"
)

// ErrInvalidMessage is wrapped by every message construction error.
var ErrInvalidMessage = errors.New("invalid message")

type Address struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Email string `json:"email" yaml:"email"`
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Message is one outreach email. Text is the plain-text part; HTML, when set,
// becomes the preferred alternative.
type Message struct {
	From    Address
	To      Address
	Subject string
	Headers map[string]string
	Text    string
	HTML    string
}

// build converts m into a gomail message.
func (m Message) build() (*gomail.Message, error) {
	if strings.TrimSpace(m.From.Email) == "" {
		return nil, fmt.Errorf("%w: sender address is empty", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.To.Email) == "" {
		return nil, fmt.Errorf("%w: recipient address is empty", ErrInvalidMessage)
	}
	if m.Text == "" && m.HTML == "" {
		return nil, fmt.Errorf("%w: body is empty", ErrInvalidMessage)
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return nil, fmt.Errorf("%w: subject contains a line break", ErrInvalidMessage)
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.From.Email, m.From.Name)
	gm.SetAddressHeader("To", m.To.Email, m.To.Name)
	gm.SetHeader("Subject", m.Subject)

	names := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := m.Headers[k]
		if k == "" || strings.ContainsAny(k, "\r\n: ") || strings.ContainsAny(v, "\r\n") {
			return nil, fmt.Errorf("%w: header %q", ErrInvalidMessage, k)
		}
		gm.SetHeader(k, v)
	}

	switch {
	case m.HTML == "":
		gm.SetBody("text/plain", m.Text)
	case m.Text == "":
		gm.SetBody("text/html", m.HTML)
	default:
		gm.SetBody("text/plain", m.Text)
		gm.AddAlternative("text/html", m.HTML)
	}
	return gm, nil
}
