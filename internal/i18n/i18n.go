// Package i18n translates the user facing strings (chart titles, export
// headers, summary texts) into the supported languages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFiles embed.FS

type Language string

const (
	English Language = "en"
	Spanish Language = "es"
	French  Language = "fr"
	German  Language = "de"
)

var Supported = []Language{English, Spanish, French, German}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
})

func (l Language) IsValid() bool {
	for _, s := range Supported {
		if l == s {
			return true
		}
	}
	return false
}

func (l Language) tag() language.Tag {
	return language.Make(string(l))
}

// ParseLanguage accepts a BCP 47 tag ("de", "es-MX", "fr-CA") and maps it
// onto a supported language. Unsupported languages are an error.
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", fmt.Errorf("unsupported language: %q", s)
	}
	return Supported[idx], nil
}

// Catalog holds the loaded message bundle.
type Catalog struct {
	bundle *goi18n.Bundle
}

// NewCatalog loads the embedded message files.
func NewCatalog() (*Catalog, error) {
	return NewCatalogFS(localeFiles, "locales")
}

// NewCatalogFS loads every active.<lang>.toml message file under dir.
func NewCatalogFS(fsys fs.FS, dir string) (*Catalog, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(fsys, path.Join(dir, e.Name())); err != nil {
			return nil, fmt.Errorf("load message file %s: %w", e.Name(), err)
		}
	}

	return &Catalog{bundle: bundle}, nil
}

func (c *Catalog) Translator(lang Language) *Translator {
	if !lang.IsValid() {
		lang = English
	}
	return &Translator{
		lang:      lang,
		localizer: goi18n.NewLocalizer(c.bundle, string(lang)),
		fallback:  goi18n.NewLocalizer(c.bundle, string(English)),
	}
}

type Translator struct {
	lang      Language
	localizer *goi18n.Localizer
	fallback  *goi18n.Localizer
}

func (t *Translator) Language() Language {
	return t.lang
}

// T returns the translation of key, falling back to English and then to
// the key itself.
func (t *Translator) T(key string) string {
	return t.Tf(key, nil)
}

// Tf is T with template data, e.g. Tf("ageInMonths", map[string]any{"Months": 3}).
func (t *Translator) Tf(key string, data map[string]any) string {
	cfg := &goi18n.LocalizeConfig{MessageID: key, TemplateData: data}

	msg, err := t.localizer.Localize(cfg)
	if err == nil && msg != "" {
		return msg
	}
	msg, fallbackErr := t.fallback.Localize(cfg)
	if fallbackErr == nil && msg != "" {
		return msg
	}
	log.Tracef("i18n: no translation for [%s] in [%s]: %v", key, t.lang, err)
	return key
}

// ShortMonth is the localized abbreviated month name.
func (t *Translator) ShortMonth(m time.Month) string {
	return t.T("monthShort" + strconv.Itoa(int(m)))
}

// FormatShortDate renders "MMM dd", as used on chart tooltips and lists.
func (t *Translator) FormatShortDate(d time.Time) string {
	return fmt.Sprintf("%s %02d", t.ShortMonth(d.Month()), d.Day())
}

// FormatDate renders "dd MMM yyyy".
func (t *Translator) FormatDate(d time.Time) string {
	return fmt.Sprintf("%02d %s %d", d.Day(), t.ShortMonth(d.Month()), d.Year())
}
