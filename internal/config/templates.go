package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// Template names looked up by the bot.
const (
	TemplateHome        = "home.md"
	TemplateList        = "list.md"
	TemplatePreview     = "preview.md"
	TemplateCoupon      = "coupon.md"
	TemplateFailed      = "failed.md"
	TemplateFAQ         = "faq.md"
	TemplatePromo       = "promo.md"
	TemplateBroadcast   = "broadcast.md"
	TemplateMaintenance = "maintenance.md"
)

// Templates resolves message templates by file name from a directory.
// Parsed templates are cached for the process lifetime.
type Templates struct {
	dir    string
	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// NewTemplates builds a lookup rooted at dir.
func NewTemplates(dir string) *Templates {
	return &Templates{dir: dir, parsed: make(map[string]*template.Template)}
}

// Render executes the named template with data.
func (t *Templates) Render(name string, data any) (string, error) {
	tpl, err := t.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (t *Templates) lookup(name string) (*template.Template, error) {
	t.mu.RLock()
	tpl, ok := t.parsed[name]
	t.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	raw, err := os.ReadFile(filepath.Join(t.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	tpl, err = template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	t.mu.Lock()
	t.parsed[name] = tpl
	t.mu.Unlock()
	return tpl, nil
}
