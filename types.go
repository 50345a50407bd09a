package dyntrans

import (
	"context"
	"time"
)

// ContentItem is one translatable unit of dynamic content as assembled by the
// caller for a view. Identity is the (ContentType, ContentID) pair; Text is
// the source-locale text at the time the view was assembled.
type ContentItem struct {
	ContentType string // Content kind, e.g. "product", "article"
	ContentID   string // Identifier within the content type
	Text        string // Source text to translate
}

// TranslationRecord is a persisted translation, keyed by
// (ContentType, ContentID, Locale). At most one record exists per key; writes
// replace in place. SourceHash is the hash of OriginalText at the time the
// translation was produced; a consumer seeing a record whose SourceHash no
// longer matches the current source text must treat it as stale.
type TranslationRecord struct {
	ContentType    string
	ContentID      string
	Locale         string
	OriginalText   string
	TranslatedText string
	SourceHash     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ViewMetadata is the client-local record of the last successful sync for one
// (view, locale) session. It is only a skip hint: the store remains the
// source of truth and is read on every cycle regardless.
type ViewMetadata struct {
	ContentHash    string
	LastTranslated time.Time
	Locale         string
	ItemCount      int
}

// DiscoveredContent is one translatable item enumerated from a configured
// content source during batch discovery.
type DiscoveredContent struct {
	ContentType string
	ContentID   string
	Text        string
	SourceHash  string
}

// TranslationGap is one content item's outstanding translation work across
// the candidate locale set. Computed by the gap-filling engine, never stored.
type TranslationGap struct {
	ContentType    string
	ContentID      string
	Text           string
	SourceHash     string
	MissingLocales []string
}

// TranslateRequest contains the parameters for one provider translation call.
type TranslateRequest struct {
	Texts        []string // Source texts, order-significant
	SourceLocale string
	TargetLocale string
	ItemContexts []string // Optional per-text disambiguation hints (e.g. content type)
}

// Provider is the interface for translation backends. TranslateBatch must
// return translated strings in exactly the same order and count as
// req.Texts; a mismatched count is a contract violation and callers treat it
// as a provider error rather than zipping mismatched slices.
type Provider interface {
	TranslateBatch(ctx context.Context, req TranslateRequest) ([]string, error)
}

// Store is the interface for the shared translation store. Implementations
// wrap I/O failures in *StoreError and never retry internally.
type Store interface {
	// GetCached returns the records that exist for the given items at exactly
	// the given locale. Passing zero items returns an empty result, not an
	// error.
	GetCached(ctx context.Context, items []ContentItem, locale string) ([]TranslationRecord, error)

	// Save upserts records by (ContentType, ContentID, Locale). It is
	// idempotent and safe under concurrent writers; overlapping keys resolve
	// last-write-wins, never as a duplicate-key failure.
	Save(ctx context.Context, records []TranslationRecord) error
}

// Enumerator is an optional store capability: enumeration of all translatable
// content from configured sources. Batch discovery requires it; a store
// without it yields a *ConfigError, not a silent no-op.
type Enumerator interface {
	Discover(ctx context.Context, sources []string) ([]DiscoveredContent, error)
}

// LocaleSource reports the active, default, and supported locales. It is
// polled, not pushed: the current locale can change between calls without any
// notification, and consumers must tolerate that.
type LocaleSource interface {
	Current() string
	Default() string
	Supported() []string
}
