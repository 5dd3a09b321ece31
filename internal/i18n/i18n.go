// Package i18n holds the user-facing confirmation, status and error
// messages of the control surface.
package i18n

import (
	"fmt"
	"strings"
)

const (
	// DefaultLanguage is used when a language or key is missing.
	DefaultLanguage = "en"
	// BerneseGermanMessages is the Swiss German dialect of the Canton of Bern.
	BerneseGermanMessages = "ch_be"
)

var catalogs = map[string]map[string]string{
	DefaultLanguage:       englishMessages,
	BerneseGermanMessages: berneseGermanMessages,
}

// Localizer formats messages in one language, falling back to English for
// keys the language lacks.
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer returns a localizer for language. Unknown languages get
// English.
func NewLocalizer(language string) *Localizer {
	lang, ok := Match(language)
	if !ok {
		lang = DefaultLanguage
	}
	return &Localizer{
		language: lang,
		messages: catalogs[lang],
	}
}

// Language returns the language the localizer formats in.
func (l *Localizer) Language() string {
	return l.language
}

// Has reports whether key has a message in any fallback step.
func (l *Localizer) Has(key string) bool {
	_, ok := l.lookup(key)
	return ok
}

// T formats the message for key with args. A key without a message is
// returned as is.
func (l *Localizer) T(key string, args ...any) string {
	message, ok := l.lookup(key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func (l *Localizer) lookup(key string) (string, bool) {
	if message, ok := l.messages[key]; ok {
		return message, true
	}
	message, ok := catalogs[DefaultLanguage][key]
	return message, ok
}

// Match maps a user supplied language code like "CH-BE" onto a supported
// one.
func Match(language string) (string, bool) {
	lang := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(language), "-", "_"))
	if _, ok := catalogs[lang]; ok {
		return lang, true
	}
	return "", false
}

// GetSupportedLanguages returns the supported language codes, default first.
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, BerneseGermanMessages}
}

func getMessages(language string) map[string]string {
	if messages, ok := catalogs[language]; ok {
		return messages
	}
	return englishMessages
}
