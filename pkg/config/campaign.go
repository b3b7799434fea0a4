// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Campaign is the optional YAML file describing one outreach campaign. Non-empty
// values override what the environment provided; credentials never come from here.
type Campaign struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	From    struct {
		Address string `yaml:"address"`
		Name    string `yaml:"name"`
	} `yaml:"from"`
	TextBody string `yaml:"textBody"`
	Template struct {
		Path            string `yaml:"path"`
		ContentPath     string `yaml:"contentPath"`
		Title           string `yaml:"title"`
		BackgroundColor string `yaml:"backgroundColor"`
		BrandColor      string `yaml:"brandColor"`
	} `yaml:"template"`
	ListUnsubscribe string            `yaml:"listUnsubscribe"`
	Headers         map[string]string `yaml:"headers"`
	Eligibility     struct {
		StatusProperty string `yaml:"statusProperty"`
		StatusKind     string `yaml:"statusKind"`
		Ready          string `yaml:"ready"`
		Sent           string `yaml:"sent"`
		Gate           struct {
			Property string `yaml:"property"`
			Kind     string `yaml:"kind"`
			Value    string `yaml:"value"`
			Cleared  string `yaml:"cleared"`
		} `yaml:"gate"`
	} `yaml:"eligibility"`
}

// LoadCampaign reads a campaign file.
func LoadCampaign(path string) (*Campaign, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Type: ErrCampaign, Message: "reading campaign file " + path, Err: err}
	}
	var c Campaign
	if err := yaml.UnmarshalStrict(content, &c); err != nil {
		return nil, &ConfigError{Type: ErrCampaign, Message: fmt.Sprintf("unmarshaling campaign YAML %s", path), Err: err}
	}
	return &c, nil
}

// ApplyCampaign overlays c on cfg and re-validates the result.
func (cfg *Config) ApplyCampaign(c *Campaign) error {
	if c == nil {
		return nil
	}
	m := &cfg.Message
	setIf(&m.Campaign, c.Name)
	setIf(&m.Subject, c.Subject)
	setIf(&m.FromAddress, c.From.Address)
	setIf(&m.FromName, c.From.Name)
	setIf(&m.TextBody, c.TextBody)
	setIf(&m.TemplatePath, c.Template.Path)
	setIf(&m.ContentPath, c.Template.ContentPath)
	setIf(&m.Title, c.Template.Title)
	setIf(&m.BackgroundColor, c.Template.BackgroundColor)
	setIf(&m.BrandColor, c.Template.BrandColor)
	setIf(&m.ListUnsubscribe, c.ListUnsubscribe)
	if len(c.Headers) > 0 {
		if m.Headers == nil {
			m.Headers = make(map[string]string, len(c.Headers))
		}
		for k, v := range c.Headers {
			m.Headers[k] = v
		}
	}

	e := &cfg.Eligibility
	setIf(&e.StatusProperty, c.Eligibility.StatusProperty)
	setIf(&e.StatusKind, c.Eligibility.StatusKind)
	setIf(&e.ReadyValue, c.Eligibility.Ready)
	setIf(&e.SentValue, c.Eligibility.Sent)
	setIf(&e.GateProperty, c.Eligibility.Gate.Property)
	setIf(&e.GateKind, c.Eligibility.Gate.Kind)
	setIf(&e.GateValue, c.Eligibility.Gate.Value)
	setIf(&e.GateClearedValue, c.Eligibility.Gate.Cleared)

	return Validate(cfg)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
