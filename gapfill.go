package dyntrans

import (
	"context"
	"sync"
	"time"
)

// DefaultBatchSize is the provider batch size used when the caller passes a
// non-positive value to Run.
const DefaultBatchSize = 50

// ProgressEvent reports per-batch progress during a gap-filling run.
type ProgressEvent struct {
	Locale     string
	Batch      int // 1-based batch index
	BatchCount int
	Translated int // running total for the locale
}

// GapFiller is the batch counterpart of the Coordinator: it discovers all
// translatable content from configured sources, diffs it against the store
// per locale using content hashes, and drives the same provider and store
// contracts in bulk. Failures propagate loudly; already-saved batches are
// never rolled back.
type GapFiller struct {
	store    Store
	provider Provider
	force    bool
	progress func(ProgressEvent)
	now      func() time.Time

	// Minimum candidate locales before per-locale store scans fan out to
	// goroutines.
	parallelThreshold int
}

// GapFillerOption is a functional option for configuring a GapFiller.
type GapFillerOption func(*GapFiller)

// WithForce makes every discovered (item, locale) pair a gap, ignoring
// cached records.
func WithForce(force bool) GapFillerOption {
	return func(g *GapFiller) {
		g.force = force
	}
}

// WithProgress sets a callback invoked after each completed batch.
func WithProgress(fn func(ProgressEvent)) GapFillerOption {
	return func(g *GapFiller) {
		g.progress = fn
	}
}

// WithGapClock overrides the time source. Used by tests.
func WithGapClock(now func() time.Time) GapFillerOption {
	return func(g *GapFiller) {
		g.now = now
	}
}

// NewGapFiller creates a batch gap-filling engine over the given store and
// provider.
func NewGapFiller(store Store, provider Provider, opts ...GapFillerOption) *GapFiller {
	g := &GapFiller{
		store:             store,
		provider:          provider,
		now:               time.Now,
		parallelThreshold: 2,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Discover enumerates translatable content from the configured sources,
// drops excluded content types, and computes each item's source hash. The
// store must support enumeration; a store without it is a configuration
// error, not a silent empty result.
func (g *GapFiller) Discover(ctx context.Context, sources []string, excludeTypes []string) ([]DiscoveredContent, error) {
	enum, ok := g.store.(Enumerator)
	if !ok {
		return nil, &ConfigError{Message: "store does not support content discovery"}
	}

	found, err := enum.Discover(ctx, sources)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(excludeTypes))
	for _, t := range excludeTypes {
		excluded[t] = true
	}

	out := make([]DiscoveredContent, 0, len(found))
	for _, item := range found {
		if excluded[item.ContentType] {
			continue
		}
		item.SourceHash = HashText(item.Text)
		out = append(out, item)
	}
	return out, nil
}

// FindGaps computes the outstanding work across the candidate locales. An
// item is a gap for a locale when no record exists for that
// (ContentType, ContentID, locale) or when the cached record's source hash no
// longer matches the item's current hash. That mismatch is what drives
// re-translation on content edits without any explicit invalidation.
//
// The store is queried once per candidate locale: a record cached under one
// locale says nothing about any other.
func (g *GapFiller) FindGaps(ctx context.Context, content []DiscoveredContent, locales []string, targetLocale string) ([]TranslationGap, error) {
	candidates := locales
	if targetLocale != "" {
		candidates = nil
		for _, locale := range locales {
			if NormalizeLocale(locale) == NormalizeLocale(targetLocale) {
				candidates = append(candidates, locale)
			}
		}
	}
	if len(candidates) == 0 || len(content) == 0 {
		return nil, nil
	}

	cached, err := g.scanLocales(ctx, content, candidates)
	if err != nil {
		return nil, err
	}

	var gaps []TranslationGap
	for _, item := range content {
		key := itemKey{item.ContentType, item.ContentID}
		var missing []string
		for _, locale := range candidates {
			rec, ok := cached[locale][key]
			if g.force || !ok || rec.SourceHash != item.SourceHash {
				missing = append(missing, locale)
			}
		}
		if len(missing) > 0 {
			gaps = append(gaps, TranslationGap{
				ContentType:    item.ContentType,
				ContentID:      item.ContentID,
				Text:           item.Text,
				SourceHash:     item.SourceHash,
				MissingLocales: missing,
			})
		}
	}
	return gaps, nil
}

// scanLocales reads the cached records for every candidate locale. Scans fan
// out to one goroutine per locale once the candidate set is large enough;
// the store contract already requires concurrent-reader safety.
func (g *GapFiller) scanLocales(ctx context.Context, content []DiscoveredContent, locales []string) (map[string]map[itemKey]TranslationRecord, error) {
	items := make([]ContentItem, len(content))
	for i, c := range content {
		items[i] = ContentItem{ContentType: c.ContentType, ContentID: c.ContentID, Text: c.Text}
	}

	if len(locales) < g.parallelThreshold {
		out := make(map[string]map[itemKey]TranslationRecord, len(locales))
		for _, locale := range locales {
			byKey, err := g.lookupLocale(ctx, items, locale)
			if err != nil {
				return nil, err
			}
			out[locale] = byKey
		}
		return out, nil
	}

	type scanResult struct {
		locale string
		byKey  map[itemKey]TranslationRecord
		err    error
	}

	results := make(chan scanResult, len(locales))
	var wg sync.WaitGroup
	for _, locale := range locales {
		wg.Add(1)
		go func(locale string) {
			defer wg.Done()
			byKey, err := g.lookupLocale(ctx, items, locale)
			results <- scanResult{locale: locale, byKey: byKey, err: err}
		}(locale)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]map[itemKey]TranslationRecord, len(locales))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		out[res.locale] = res.byKey
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (g *GapFiller) lookupLocale(ctx context.Context, items []ContentItem, locale string) (map[itemKey]TranslationRecord, error) {
	records, err := g.store.GetCached(ctx, items, NormalizeLocale(locale))
	if err != nil {
		return nil, err
	}
	byKey := make(map[itemKey]TranslationRecord, len(records))
	for _, rec := range records {
		byKey[itemKey{rec.ContentType, rec.ContentID}] = rec
	}
	return byKey, nil
}

// Run translates the gaps belonging to one locale in fixed-size batches,
// calling the provider and then the store sequentially per batch. The first
// batch failure aborts the run; batches already saved stay saved. Returns
// the number of items translated before any failure.
func (g *GapFiller) Run(ctx context.Context, gaps []TranslationGap, locale, sourceLocale string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	locale = NormalizeLocale(locale)

	var work []TranslationGap
	for _, gap := range gaps {
		for _, missing := range gap.MissingLocales {
			if NormalizeLocale(missing) == locale {
				work = append(work, gap)
				break
			}
		}
	}
	if len(work) == 0 {
		return 0, nil
	}

	batchCount := (len(work) + batchSize - 1) / batchSize
	total := 0
	for b := 0; b < batchCount; b++ {
		start := b * batchSize
		end := start + batchSize
		if end > len(work) {
			end = len(work)
		}
		batch := work[start:end]

		texts := make([]string, len(batch))
		contexts := make([]string, len(batch))
		for i, gap := range batch {
			texts[i] = gap.Text
			contexts[i] = gap.ContentType
		}

		results, err := g.provider.TranslateBatch(ctx, TranslateRequest{
			Texts:        texts,
			SourceLocale: NormalizeLocale(sourceLocale),
			TargetLocale: locale,
			ItemContexts: contexts,
		})
		if err != nil {
			return total, err
		}
		if len(results) != len(batch) {
			return total, &ProviderError{
				Message: "batch result does not pair with submitted items",
				Cause:   &CountMismatchError{Expected: len(batch), Got: len(results)},
			}
		}

		now := g.now()
		records := make([]TranslationRecord, len(batch))
		for i, gap := range batch {
			records[i] = TranslationRecord{
				ContentType:    gap.ContentType,
				ContentID:      gap.ContentID,
				Locale:         locale,
				OriginalText:   gap.Text,
				TranslatedText: results[i],
				SourceHash:     gap.SourceHash,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		}
		if err := g.store.Save(ctx, records); err != nil {
			return total, err
		}

		total += len(batch)
		if g.progress != nil {
			g.progress(ProgressEvent{
				Locale:     locale,
				Batch:      b + 1,
				BatchCount: batchCount,
				Translated: total,
			})
		}
	}
	return total, nil
}

// GapSummary is the per-locale result of a dry run.
type GapSummary struct {
	Locale  string
	Missing int
}

// DryRun performs discovery and gap-finding only: it reports how many items
// each candidate locale is missing and makes zero provider calls and zero
// store writes.
func (g *GapFiller) DryRun(ctx context.Context, sources, excludeTypes, locales []string, targetLocale string) ([]GapSummary, error) {
	content, err := g.Discover(ctx, sources, excludeTypes)
	if err != nil {
		return nil, err
	}

	gaps, err := g.FindGaps(ctx, content, locales, targetLocale)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, gap := range gaps {
		for _, locale := range gap.MissingLocales {
			counts[NormalizeLocale(locale)]++
		}
	}

	candidates := locales
	if targetLocale != "" {
		candidates = []string{targetLocale}
	}
	summaries := make([]GapSummary, 0, len(candidates))
	for _, locale := range candidates {
		locale = NormalizeLocale(locale)
		summaries = append(summaries, GapSummary{Locale: locale, Missing: counts[locale]})
	}
	return summaries, nil
}
