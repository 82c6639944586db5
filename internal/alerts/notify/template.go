package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `Panel voltage dropped to {{printf "%.2f" .Voltage}}V, below the {{printf "%.0f" .Threshold}}V safety threshold, at {{.StartTime}}. Check panel output and light conditions.`

// TemplateData provides fields for rendering the notification body.
type TemplateData struct {
	Voltage   float64
	Threshold float64
	StartTime string
}

// Template renders notification body content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
