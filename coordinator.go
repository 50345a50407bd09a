package dyntrans

import (
	"context"
	"sync"
	"time"
)

// SyncState describes where a (view, locale) session is in its lifecycle.
type SyncState int

const (
	// StateIdle means no sync cycle has run yet for the active locale.
	StateIdle SyncState = iota
	// StateSyncing means a cycle is in flight.
	StateSyncing
	// StateSettled means the last cycle finished and the translation map
	// reflects the store for the active locale.
	StateSettled
)

// Coordinator is the stateful engine behind one rendered view. Given the
// view's items and the active locale it resolves cache hits from the store,
// requests translation for misses, persists new results, and exposes
// per-item state to the rendering layer.
//
// The active locale is polled from the LocaleSource at every observation
// point. When it diverges from the locale the coordinator last synced, the
// in-memory translation map and in-flight flags are cleared immediately so
// stale-locale text is never visible under the new locale, not even
// transiently.
type Coordinator struct {
	viewID   string
	store    Store
	provider Provider
	locales  LocaleSource
	diag     func(error)
	now      func() time.Time

	mu           sync.Mutex
	state        SyncState
	activeLocale string
	translations map[itemKey]string
	inflight     map[itemKey]bool
	meta         map[string]ViewMetadata // keyed by locale
	generation   uint64
	syncing      bool
	pending      []ContentItem
	hasPending   bool
}

type itemKey struct {
	contentType string
	contentID   string
}

// CoordinatorOption is a functional option for configuring a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithDiagnostics sets a callback that receives per-cycle failures. The
// rendering layer never sees these errors directly; a failed cycle degrades
// to fallback text.
func WithDiagnostics(fn func(error)) CoordinatorOption {
	return func(c *Coordinator) {
		c.diag = fn
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a Coordinator for one view.
func NewCoordinator(viewID string, store Store, provider Provider, locales LocaleSource, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		viewID:       viewID,
		store:        store,
		provider:     provider,
		locales:      locales,
		now:          time.Now,
		state:        StateIdle,
		activeLocale: NormalizeLocale(locales.Current()),
		translations: make(map[itemKey]string),
		inflight:     make(map[itemKey]bool),
		meta:         make(map[string]ViewMetadata),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ViewID returns the view identifier this coordinator serves.
func (c *Coordinator) ViewID() string {
	return c.viewID
}

// Sync runs one coordination cycle for the given items. Concurrent calls
// collapse: while a cycle is in flight, the most recent item set is parked
// and replayed as a single trailing cycle once the current one finishes, so
// a rapid burst of triggers never piles up provider calls for the same view.
// A parked call returns nil immediately; errors from its trailing cycle go
// to the caller that started the in-flight cycle and to the diagnostics
// callback, not to the parked caller.
func (c *Coordinator) Sync(ctx context.Context, items []ContentItem) error {
	c.mu.Lock()
	if c.syncing {
		c.pending = append([]ContentItem(nil), items...)
		c.hasPending = true
		c.mu.Unlock()
		return nil
	}
	c.syncing = true
	c.mu.Unlock()

	var firstErr error
	for {
		if err := c.runCycle(ctx, items); err != nil && firstErr == nil {
			firstErr = err
		}

		c.mu.Lock()
		if c.hasPending {
			items = c.pending
			c.pending = nil
			c.hasPending = false
			c.mu.Unlock()
			continue
		}
		c.syncing = false
		c.mu.Unlock()
		return firstErr
	}
}

// runCycle executes the sync algorithm once: short-circuit, fingerprint,
// store read, provider call for misses, save, commit.
func (c *Coordinator) runCycle(ctx context.Context, items []ContentItem) error {
	locale := NormalizeLocale(c.locales.Current())
	defaultLocale := NormalizeLocale(c.locales.Default())

	c.mu.Lock()
	c.observeLocale(locale)
	gen := c.generation

	// Nothing to translate at the default locale or for an empty view.
	if locale == defaultLocale || len(items) == 0 {
		c.translations = make(map[itemKey]string)
		c.inflight = make(map[itemKey]bool)
		c.state = StateSettled
		c.mu.Unlock()
		return nil
	}

	fingerprint := FingerprintView(items)
	// Local metadata never substitutes for the store: every cycle reads the
	// store, fingerprint match or not.
	c.state = StateSyncing
	c.mu.Unlock()

	records, err := c.store.GetCached(ctx, items, locale)
	if err != nil {
		c.failCycle(gen, err)
		return err
	}

	byKey := make(map[itemKey]TranslationRecord, len(records))
	for _, rec := range records {
		byKey[itemKey{rec.ContentType, rec.ContentID}] = rec
	}

	hits := make(map[itemKey]string)
	var misses []ContentItem
	for _, item := range items {
		key := itemKey{item.ContentType, item.ContentID}
		rec, ok := byKey[key]
		if ok && rec.SourceHash == HashText(item.Text) {
			hits[key] = rec.TranslatedText
			continue
		}
		// Missing, or the source text changed since it was last translated.
		misses = append(misses, item)
	}

	fresh := make(map[itemKey]string, len(misses))
	if len(misses) > 0 {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			c.report(&LocaleMismatchError{Expected: locale, Got: NormalizeLocale(c.locales.Current())})
			return nil
		}
		for _, item := range misses {
			c.inflight[itemKey{item.ContentType, item.ContentID}] = true
		}
		c.mu.Unlock()

		texts := make([]string, len(misses))
		contexts := make([]string, len(misses))
		for i, item := range misses {
			texts[i] = item.Text
			contexts[i] = item.ContentType
		}

		results, err := c.provider.TranslateBatch(ctx, TranslateRequest{
			Texts:        texts,
			SourceLocale: defaultLocale,
			TargetLocale: locale,
			ItemContexts: contexts,
		})
		if err != nil {
			c.failCycle(gen, err)
			return err
		}
		if len(results) != len(misses) {
			err := &ProviderError{
				Message: "batch result does not pair with submitted items",
				Cause:   &CountMismatchError{Expected: len(misses), Got: len(results)},
			}
			c.failCycle(gen, err)
			return err
		}

		now := c.now()
		saved := make([]TranslationRecord, len(misses))
		for i, item := range misses {
			saved[i] = TranslationRecord{
				ContentType:    item.ContentType,
				ContentID:      item.ContentID,
				Locale:         locale,
				OriginalText:   item.Text,
				TranslatedText: results[i],
				SourceHash:     HashText(item.Text),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		}
		if err := c.store.Save(ctx, saved); err != nil {
			// Items already hit from cache stay visible; the unsaved items
			// remain on fallback text and retry next cycle.
			c.commitPartial(gen, hits)
			c.report(err)
			return err
		}
		for i, item := range misses {
			fresh[itemKey{item.ContentType, item.ContentID}] = results[i]
		}
	}

	if !c.commit(gen, locale, fingerprint, len(items), hits, fresh) {
		c.report(&LocaleMismatchError{Expected: locale, Got: NormalizeLocale(c.locales.Current())})
	}
	return nil
}

// observeLocale reconciles the sampled locale with the active one. Must be
// called with c.mu held.
func (c *Coordinator) observeLocale(locale string) {
	if locale == c.activeLocale {
		return
	}
	c.activeLocale = locale
	c.translations = make(map[itemKey]string)
	c.inflight = make(map[itemKey]bool)
	c.generation++
	c.state = StateIdle
}

// commit merges the cycle's results into visible state. Returns false when
// the cycle was superseded (locale changed while it was in flight), in which
// case the results are discarded.
func (c *Coordinator) commit(gen uint64, locale, fingerprint string, itemCount int, hits, fresh map[itemKey]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	for key, text := range hits {
		c.translations[key] = text
	}
	for key, text := range fresh {
		c.translations[key] = text
	}
	c.inflight = make(map[itemKey]bool)
	c.meta[locale] = ViewMetadata{
		ContentHash:    fingerprint,
		LastTranslated: c.now(),
		Locale:         locale,
		ItemCount:      itemCount,
	}
	c.state = StateSettled
	return true
}

// commitPartial applies cache hits after a failed save. Metadata is not
// updated, so the next cycle re-detects and retries the failed items.
func (c *Coordinator) commitPartial(gen uint64, hits map[itemKey]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	for key, text := range hits {
		c.translations[key] = text
	}
	c.inflight = make(map[itemKey]bool)
	c.state = StateSettled
}

// failCycle clears in-flight flags after a store or provider failure so the
// rendering layer is not left permanently blocked, then reports the error.
func (c *Coordinator) failCycle(gen uint64, err error) {
	c.mu.Lock()
	if c.generation == gen {
		c.inflight = make(map[itemKey]bool)
		c.state = StateSettled
	}
	c.mu.Unlock()
	c.report(err)
}

func (c *Coordinator) report(err error) {
	if c.diag != nil && err != nil {
		c.diag(err)
	}
}

// GetTranslation returns the cached translation for an item, or fallback when
// the item has none or the active locale is the default. It never fails.
func (c *Coordinator) GetTranslation(contentType, contentID, fallback string) string {
	locale := NormalizeLocale(c.locales.Current())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocale(locale)
	if locale == NormalizeLocale(c.locales.Default()) {
		return fallback
	}
	if text, ok := c.translations[itemKey{contentType, contentID}]; ok {
		return text
	}
	return fallback
}

// IsItemTranslating reports whether that specific item's batch is in flight.
// Always false at the default locale.
func (c *Coordinator) IsItemTranslating(contentType, contentID string) bool {
	locale := NormalizeLocale(c.locales.Current())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocale(locale)
	if locale == NormalizeLocale(c.locales.Default()) {
		return false
	}
	return c.inflight[itemKey{contentType, contentID}]
}

// IsTranslating reports whether a sync cycle is in flight for the view.
func (c *Coordinator) IsTranslating() bool {
	locale := NormalizeLocale(c.locales.Current())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocale(locale)
	return c.state == StateSyncing
}

// State returns the session state for the active locale.
func (c *Coordinator) State() SyncState {
	locale := NormalizeLocale(c.locales.Current())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocale(locale)
	return c.state
}

// Metadata returns the last-sync metadata for a locale, if a cycle has
// completed for it.
func (c *Coordinator) Metadata(locale string) (ViewMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.meta[NormalizeLocale(locale)]
	return m, ok
}
