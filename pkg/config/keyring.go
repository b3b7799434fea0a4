// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name credentials are stored under.
const KeyringService = "notion-outreach"

// CredentialKeys are the environment variables that may be resolved from a
// SecretProvider when they are not set in the environment.
var CredentialKeys = []string{
	"NOTION_TOKEN",
	"NOTION_DATABASE_ID",
	"EMAIL_ACCOUNT",
	"EMAIL_PASSWORD",
}

// SecretProvider resolves credentials that are absent from the environment.
type SecretProvider interface {
	// Lookup returns the value for key and whether it was found. A missing key
	// is not an error.
	Lookup(key string) (string, bool, error)
}

// KeyringProvider reads and writes credentials in the OS keyring (macOS
// Keychain, Secret Service, Windows Credential Manager).
type KeyringProvider struct {
	Service string
}

// NewKeyringProvider returns a provider bound to KeyringService.
func NewKeyringProvider() *KeyringProvider {
	return &KeyringProvider{Service: KeyringService}
}

func (p *KeyringProvider) Lookup(key string) (string, bool, error) {
	v, err := keyring.Get(p.service(), key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring lookup %s: %w", key, err)
	}
	return v, true, nil
}

// Store saves a credential. Only CredentialKeys are accepted.
func (p *KeyringProvider) Store(key, value string) error {
	if !IsCredentialKey(key) {
		return fmt.Errorf("unknown credential %q, expected one of %v", key, CredentialKeys)
	}
	if value == "" {
		return fmt.Errorf("refusing to store empty value for %s", key)
	}
	return keyring.Set(p.service(), key, value)
}

// Delete removes a credential; deleting a missing credential is not an error.
func (p *KeyringProvider) Delete(key string) error {
	if !IsCredentialKey(key) {
		return fmt.Errorf("unknown credential %q, expected one of %v", key, CredentialKeys)
	}
	err := keyring.Delete(p.service(), key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (p *KeyringProvider) service() string {
	if p.Service == "" {
		return KeyringService
	}
	return p.Service
}

// IsCredentialKey reports whether key is one of CredentialKeys.
func IsCredentialKey(key string) bool {
	return slices.Contains(CredentialKeys, key)
}
