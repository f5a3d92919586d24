package notify

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
)

//go:embed templates.yaml
var defaultTemplates []byte

type templateSpec struct {
	Category string `yaml:"category"`
	Subject  string `yaml:"subject"`
	Body     string `yaml:"body"`
}

type compiled struct {
	category mail.Category
	subject  *template.Template
	body     *template.Template
}

// Catalog holds the parsed message templates.
type Catalog struct {
	templates map[string]compiled
}

// LoadCatalog parses a YAML catalog. A nil src loads the embedded default.
func LoadCatalog(src []byte) (*Catalog, error) {
	if src == nil {
		src = defaultTemplates
	}
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(src, &specs); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	c := &Catalog{templates: make(map[string]compiled, len(specs))}
	for name, spec := range specs {
		category := mail.Category(spec.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("template %s: unknown category %q", name, spec.Category)
		}
		subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(spec.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		c.templates[name] = compiled{category: category, subject: subject, body: body}
	}
	return c, nil
}

// Render builds a message for recipient from the named template.
func (c *Catalog) Render(name, to string, data Data) (mail.Message, error) {
	tpl, ok := c.templates[name]
	if !ok {
		return mail.Message{}, fmt.Errorf("unknown template %q", name)
	}
	var subject, body strings.Builder
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return mail.Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return mail.Message{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return mail.Message{
		To:       to,
		Subject:  strings.TrimSpace(subject.String()),
		Body:     strings.TrimSpace(body.String()) + "\n",
		Category: tpl.category,
	}, nil
}

// Has reports whether the catalog defines name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.templates[name]
	return ok
}
