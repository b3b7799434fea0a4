// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// DefaultTextBody is the plain-text message used when EMAIL_TEXT_BODY is unset.
const DefaultTextBody = `Hi {{.Name}},

We would love to explore a collaboration with you. Are you open to a short call next week?

Best regards`

// Config is the complete configuration of one outreach run. It is populated once
// by Load and never modified afterwards.
type Config struct {
	Notion      NotionConfig
	SMTP        SMTPConfig
	Message     MessageConfig
	Eligibility EligibilityConfig
	Run         RunConfig
	Events      EventsConfig

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Debug    bool   `envconfig:"OUTREACH_DEBUG" default:"false"`
	// UseKeyring resolves missing credentials from the OS keyring before validation.
	UseKeyring bool `envconfig:"OUTREACH_KEYRING" default:"false"`
}

// NotionConfig holds the contact database coordinates and API client tuning.
type NotionConfig struct {
	Token      SecretString `envconfig:"NOTION_TOKEN" validate:"required"`
	DatabaseID string       `envconfig:"NOTION_DATABASE_ID" validate:"required"`

	BaseURL    string        `envconfig:"NOTION_API_URL" default:"https://api.notion.com" validate:"url"`
	APIVersion string        `envconfig:"NOTION_API_VERSION" default:"2022-06-28"`
	PageSize   int           `envconfig:"NOTION_PAGE_SIZE" default:"100" validate:"min=1,max=100"`
	Timeout    time.Duration `envconfig:"NOTION_TIMEOUT" default:"30s"`

	// Empty means "first property of type title" / "first property of type email".
	NameProperty  string `envconfig:"NOTION_NAME_PROPERTY"`
	EmailProperty string `envconfig:"NOTION_EMAIL_PROPERTY"`
}

// SMTPConfig holds the outbound mail account. Port 465 uses implicit TLS,
// any other port upgrades with STARTTLS when the server offers it.
type SMTPConfig struct {
	Account  string       `envconfig:"EMAIL_ACCOUNT" validate:"required"`
	Password SecretString `envconfig:"EMAIL_PASSWORD" validate:"required"`

	Host               string `envconfig:"SMTP_HOST" default:"smtp.gmail.com" validate:"hostname_rfc1123|ip"`
	Port               int    `envconfig:"SMTP_PORT" default:"465" validate:"min=1,max=65535"`
	InsecureSkipVerify bool   `envconfig:"SMTP_INSECURE_SKIP_VERIFY" default:"false"`
}

// MessageConfig describes the outreach message. Setting TemplatePath or
// ContentPath adds an HTML alternative with the text body as fallback; a
// content fragment without a template uses the built-in layout.
type MessageConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM" validate:"omitempty,email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Outreach Team"`
	Subject     string `envconfig:"EMAIL_SUBJECT" default:"Let's collaborate" validate:"required"`
	// TextBody is a text/template; DefaultTextBody applies when unset.
	TextBody string `envconfig:"EMAIL_TEXT_BODY"`

	TemplatePath    string `envconfig:"EMAIL_TEMPLATE_PATH"`
	ContentPath     string `envconfig:"EMAIL_CONTENT_PATH"`
	Title           string `envconfig:"EMAIL_TITLE" default:"Let's collaborate"`
	BackgroundColor string `envconfig:"EMAIL_BACKGROUND_COLOR" default:"#f4f4f7"`
	BrandColor      string `envconfig:"EMAIL_BRAND_COLOR" default:"#e20074"`

	ListUnsubscribe string            `envconfig:"EMAIL_LIST_UNSUBSCRIBE"`
	Campaign        string            `envconfig:"OUTREACH_CAMPAIGN"`
	Headers         map[string]string `ignored:"true"`
}

// EligibilityConfig parameterises which rows are selected and what is written
// back after a successful send. The gate is optional.
type EligibilityConfig struct {
	StatusProperty string `envconfig:"OUTREACH_STATUS_PROPERTY" default:"Status" validate:"required"`
	StatusKind     string `envconfig:"OUTREACH_STATUS_KIND" default:"status" validate:"oneof=status select rich_text"`
	ReadyValue     string `envconfig:"OUTREACH_READY_VALUE" default:"Ready to Send" validate:"required"`
	SentValue      string `envconfig:"OUTREACH_SENT_VALUE" default:"Sent" validate:"required,nefield=ReadyValue"`

	GateProperty     string `envconfig:"OUTREACH_GATE_PROPERTY"`
	GateKind         string `envconfig:"OUTREACH_GATE_KIND" default:"select" validate:"oneof=status select rich_text checkbox"`
	GateValue        string `envconfig:"OUTREACH_GATE_VALUE" default:"Yes"`
	GateClearedValue string `envconfig:"OUTREACH_GATE_CLEARED_VALUE" default:"No"`
}

// HasGate reports whether a secondary gate property participates in eligibility.
func (e EligibilityConfig) HasGate() bool {
	return e.GateProperty != ""
}

// RunConfig holds per-invocation switches.
type RunConfig struct {
	DryRun bool `envconfig:"OUTREACH_DRY_RUN" default:"false"`
	// Throttle is the minimum spacing between two sends.
	Throttle     time.Duration `envconfig:"OUTREACH_THROTTLE" default:"100ms"`
	ReportPath   string        `envconfig:"OUTREACH_REPORT_PATH"`
	ReportFormat string        `envconfig:"OUTREACH_REPORT_FORMAT" default:"json" validate:"oneof=json yaml"`
}

// EventsConfig selects the event sinks next to the structured log.
type EventsConfig struct {
	WebhookURL   string   `envconfig:"OUTREACH_EVENTS_WEBHOOK_URL" validate:"omitempty,url"`
	KafkaBrokers []string `envconfig:"OUTREACH_EVENTS_KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"OUTREACH_EVENTS_KAFKA_TOPIC" validate:"required_with=KafkaBrokers"`

	PushgatewayURL string `envconfig:"OUTREACH_PUSHGATEWAY_URL" validate:"omitempty,url"`
	PushJob        string `envconfig:"OUTREACH_PUSH_JOB" default:"notion-outreach"`
}

// Sender returns the From address, falling back to the SMTP account.
func (c *Config) Sender() string {
	if c.Message.FromAddress != "" {
		return c.Message.FromAddress
	}
	return c.SMTP.Account
}
