// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

const redactedPlaceholder = "[REDACTED]"

// SecretString is a string whose fmt, JSON and YAML renderings are redacted.
// Use Unmask where the plaintext is genuinely required (Authorization header,
// SMTP AUTH).
type SecretString string

func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return redactedPlaceholder
}

// GoString keeps %#v from leaking the value.
func (s SecretString) GoString() string {
	return s.String()
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// MarshalYAML satisfies both yaml.v2 and yaml.v3 Marshaler.
func (s SecretString) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Unmask returns the plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
