// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/outreach.html
var defaultTemplateRaw string

// Style holds the fixed presentation parameters of the HTML template.
type Style struct {
	Title           string
	BackgroundColor string
	BrandColor      string
}

// RendererConfig selects the message bodies. Without TemplatePath and
// ContentPath only the text body is rendered. ContentPath without a template
// uses the embedded layout.
type RendererConfig struct {
	TemplatePath string
	ContentPath  string
	Style        Style
	// TextBody is a text/template executed with the same data as the HTML part.
	TextBody string
}

// TemplateData is passed to both templates.
type TemplateData struct {
	Name            string
	Content         template.HTML
	Title           string
	BackgroundColor string
	BrandColor      string
}

// Body is the rendered message content for one recipient.
type Body struct {
	Text string
	HTML string
}

// Renderer personalises the message body per recipient. Templates and the
// content fragment are read once by NewRenderer; Render does no I/O.
type Renderer struct {
	html    *template.Template
	text    *texttemplate.Template
	content template.HTML
	style   Style
}

// NewRenderer loads and parses the configured templates. A missing or
// unparsable file is an error.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{style: cfg.Style}

	text, err := texttemplate.New("text").Funcs(sprig.TxtFuncMap()).Parse(cfg.TextBody)
	if err != nil {
		return nil, fmt.Errorf("parsing text body: %w", err)
	}
	r.text = text

	if cfg.TemplatePath == "" && cfg.ContentPath == "" {
		return r, nil
	}

	raw := defaultTemplateRaw
	if cfg.TemplatePath != "" {
		b, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		raw = string(b)
	}
	r.html, err = template.New("html").Funcs(sprig.HtmlFuncMap()).Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", cfg.TemplatePath, err)
	}

	if cfg.ContentPath != "" {
		b, err := os.ReadFile(cfg.ContentPath)
		if err != nil {
			return nil, fmt.Errorf("reading content fragment: %w", err)
		}
		// The fragment is authored by the operator and inserted verbatim.
		r.content = template.HTML(b) // #nosec G203
	}
	return r, nil
}

// HasHTML reports whether Render produces an HTML part.
func (r *Renderer) HasHTML() bool {
	return r.html != nil
}

// Render produces the bodies for a recipient called name.
func (r *Renderer) Render(name string) (Body, error) {
	data := TemplateData{
		Name:            name,
		Content:         r.content,
		Title:           r.style.Title,
		BackgroundColor: r.style.BackgroundColor,
		BrandColor:      r.style.BrandColor,
	}

	var out Body
	text, err := execute(r.text, data)
	if err != nil {
		return Body{}, fmt.Errorf("rendering text body: %w", err)
	}
	out.Text = text

	if r.html != nil {
		html, err := execute(r.html, data)
		if err != nil {
			return Body{}, fmt.Errorf("rendering html body: %w", err)
		}
		out.HTML = html
	}
	return out, nil
}

type executor interface {
	Execute(w io.Writer, data any) error
}

func execute(t executor, data any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, data)
	return b.String(), err
}
