// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType categorizes configuration failures.
type ConfigErrorType string

const (
	ErrParsing    ConfigErrorType = "PARSING"
	ErrValidation ConfigErrorType = "VALIDATION"
	ErrSecret     ConfigErrorType = "SECRET"
	ErrCampaign   ConfigErrorType = "CAMPAIGN"
)

// ConfigError is returned by Load. Missing lists the environment variables
// that were required but absent or empty.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	loadEnv   func() error
	secrets   SecretProvider
}

func defaultDeps(secrets SecretProvider) loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		loadEnv:   func() error { return godotenv.Load() },
		secrets:   secrets,
	}
}

// Load reads the configuration from the environment. A .env file in the working
// directory is applied first without overriding variables already set. When
// OUTREACH_KEYRING=true, credentials still missing are resolved from the OS keyring.
func Load() (*Config, error) {
	return LoadWithProvider(NewKeyringProvider())
}

// LoadWithProvider is Load with an explicit SecretProvider (nil disables
// secret resolution).
func LoadWithProvider(secrets SecretProvider) (*Config, error) {
	return loadWithDeps(defaultDeps(secrets))
}

func loadWithDeps(deps loaderDeps) (*Config, error) {
	// A missing .env is the normal case in CI and Lambda.
	_ = deps.loadEnv()

	if useKeyring(deps) && deps.secrets != nil {
		if err := resolveSecrets(deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	trimCredentials(&cfg)
	if cfg.Message.TextBody == "" {
		cfg.Message.TextBody = DefaultTextBody
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// trimCredentials strips surrounding whitespace so blank credentials fail
// the required check.
func trimCredentials(cfg *Config) {
	cfg.Notion.Token = SecretString(strings.TrimSpace(cfg.Notion.Token.Unmask()))
	cfg.Notion.DatabaseID = strings.TrimSpace(cfg.Notion.DatabaseID)
	cfg.SMTP.Account = strings.TrimSpace(cfg.SMTP.Account)
	cfg.SMTP.Password = SecretString(strings.TrimSpace(cfg.SMTP.Password.Unmask()))
}

func useKeyring(deps loaderDeps) bool {
	v, _ := deps.lookupEnv("OUTREACH_KEYRING")
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func resolveSecrets(deps loaderDeps) error {
	for _, key := range CredentialKeys {
		if v, ok := deps.lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			continue
		}
		value, found, err := deps.secrets.Lookup(key)
		if err != nil {
			return &ConfigError{
				Type:    ErrSecret,
				Message: "failed to resolve credential " + key,
				Err:     err,
			}
		}
		if !found {
			continue
		}
		if err := deps.setEnv(key, value); err != nil {
			return &ConfigError{
				Type:    ErrSecret,
				Message: "failed to export credential " + key,
				Err:     err,
			}
		}
	}
	return nil
}

// Validate checks cfg against its validate tags. Missing required values are
// reported by environment variable name.
func Validate(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("envconfig"); name != "" {
			return name
		}
		return fld.Name
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	var missing []string
	var invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	sort.Strings(missing)

	cerr := &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Missing: missing}
	if len(invalid) > 0 {
		cerr.Err = fmt.Errorf("invalid values: %s", strings.Join(invalid, ", "))
	}
	return cerr
}
