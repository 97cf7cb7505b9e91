package domain

import (
	"fmt"
	"strings"
)

// NormalizeLanguage lowercases a language code and maps "auto" to the empty
// string, which means the engine should detect the language itself.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "auto" {
		return ""
	}
	return lang
}

// ValidateLanguage accepts the empty string (auto-detect) or a two- or
// three-letter ISO 639 code.
func ValidateLanguage(lang string) error {
	if lang == "" {
		return nil
	}
	if len(lang) < 2 || len(lang) > 3 {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	for _, r := range lang {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
		}
	}
	return nil
}

// ResolveLanguage picks the language for a request: an explicit request value
// wins over the configured default, and an empty result means auto-detect.
func ResolveLanguage(requested, configured string) (string, error) {
	lang := NormalizeLanguage(requested)
	if strings.TrimSpace(requested) == "" {
		lang = NormalizeLanguage(configured)
	}
	if err := ValidateLanguage(lang); err != nil {
		return "", err
	}
	return lang, nil
}
