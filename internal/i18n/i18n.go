// Package i18n renders terminal messages from embedded locale files.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

const DefaultLanguage = "en"

//go:embed locales/*.json
var localeFS embed.FS

// Bundle holds every embedded translation.
type Bundle struct {
	bundle *i18n.Bundle
	logger *slog.Logger
}

// Load parses the embedded locales with fallback as the default language.
func Load(fallback string, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", fallback, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := path.Join("locales", entry.Name())
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", name, err)
		}
		if _, err := b.ParseMessageFileBytes(data, name); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", name, err)
		}
	}

	return &Bundle{bundle: b, logger: logger}, nil
}

// Languages lists the loaded language tags.
func (b *Bundle) Languages() []string {
	tags := b.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

// Printer resolves messages for one preferred language.
type Printer struct {
	localizer *i18n.Localizer
	logger    *slog.Logger
}

// Printer returns a printer for langs in preference order; unknown languages fall back.
func (b *Bundle) Printer(langs ...string) *Printer {
	return &Printer{localizer: i18n.NewLocalizer(b.bundle, langs...), logger: b.logger}
}

// T translates a message by id.
func (p *Printer) T(id string) string {
	return p.localize(&i18n.LocalizeConfig{MessageID: id})
}

// Td translates a message by id with template data.
func (p *Printer) Td(id string, data map[string]any) string {
	return p.localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
}

// Tp translates a pluralized message; the template sees .Count.
func (p *Printer) Tp(id string, count int) string {
	return p.localize(&i18n.LocalizeConfig{
		MessageID:    id,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func (p *Printer) localize(cfg *i18n.LocalizeConfig) string {
	s, err := p.localizer.Localize(cfg)
	if err != nil {
		p.logger.Warn("missing translation", "id", cfg.MessageID, "error", err.Error())
		return cfg.MessageID
	}
	return s
}
