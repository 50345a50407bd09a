package dyntrans

import (
	"strings"
	"sync"
)

// StaticSource is a LocaleSource backed by plain values. The current locale
// can be swapped at any time with SetCurrent; consumers observe the change on
// their next poll, there is no notification.
type StaticSource struct {
	mu        sync.RWMutex
	current   string
	defLocale string
	supported []string
}

// NewStaticSource creates a LocaleSource with the given current, default, and
// supported locales.
func NewStaticSource(current, defaultLocale string, supported []string) *StaticSource {
	return &StaticSource{
		current:   current,
		defLocale: defaultLocale,
		supported: supported,
	}
}

// Current returns the active locale.
func (s *StaticSource) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Default returns the default (source) locale.
func (s *StaticSource) Default() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defLocale
}

// Supported returns the configured target locales.
func (s *StaticSource) Supported() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.supported))
	copy(out, s.supported)
	return out
}

// SetCurrent switches the active locale.
func (s *StaticSource) SetCurrent(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = locale
}

var _ LocaleSource = (*StaticSource)(nil)

// LanguageNames maps locale codes to human-readable names for provider
// prompts. Falls through to the raw code for anything not listed.
var LanguageNames = map[string]string{
	"en_US": "English (United States)",
	"en_GB": "English (United Kingdom)",
	"de_DE": "German (Germany)",
	"es_ES": "Spanish (Spain)",
	"es_MX": "Spanish (Mexico)",
	"fr_FR": "French (France)",
	"it_IT": "Italian (Italy)",
	"ja_JP": "Japanese (Japan)",
	"ko_KR": "Korean (South Korea)",
	"nl_NL": "Dutch (Netherlands)",
	"pl_PL": "Polish (Poland)",
	"pt_BR": "Portuguese (Brazil)",
	"pt_PT": "Portuguese (Portugal)",
	"ru_RU": "Russian (Russia)",
	"sv_SE": "Swedish (Sweden)",
	"tr_TR": "Turkish (Turkey)",
	"uk_UA": "Ukrainian (Ukraine)",
	"vi_VN": "Vietnamese (Vietnam)",
	"zh_CN": "Chinese (Simplified)",
	"zh_TW": "Chinese (Traditional)",
	"ar_SA": "Arabic (Saudi Arabia)",
	"he_IL": "Hebrew (Israel)",
	"hi_IN": "Hindi (India)",
}

// ShortCodeToLocale maps short language codes to full locale codes.
var ShortCodeToLocale = map[string]string{
	"en": "en_US",
	"de": "de_DE",
	"es": "es_ES",
	"fr": "fr_FR",
	"it": "it_IT",
	"ja": "ja_JP",
	"ko": "ko_KR",
	"nl": "nl_NL",
	"pl": "pl_PL",
	"pt": "pt_BR",
	"ru": "ru_RU",
	"tr": "tr_TR",
	"vi": "vi_VN",
	"zh": "zh_CN",
	"ar": "ar_SA",
	"he": "he_IL",
	"hi": "hi_IN",
}

// GetLanguageName returns the human-readable name for a locale code.
func GetLanguageName(locale string) string {
	if name, ok := LanguageNames[locale]; ok {
		return name
	}
	if full, ok := ShortCodeToLocale[locale]; ok {
		if name, ok := LanguageNames[full]; ok {
			return name
		}
	}
	return locale
}

// NormalizeLocale converts a locale code to the standard underscore format
// (e.g. "es-ES" → "es_ES").
func NormalizeLocale(locale string) string {
	return strings.ReplaceAll(locale, "-", "_")
}

// BaseLocale extracts the base language code (e.g. "en" from "en_US").
func BaseLocale(locale string) string {
	parts := strings.SplitN(NormalizeLocale(locale), "_", 2)
	return strings.ToLower(parts[0])
}
