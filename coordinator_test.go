package dyntrans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockStore is an in-memory Store for coordinator and gap-filler tests.
type mockStore struct {
	mu        sync.Mutex
	records   map[string]TranslationRecord
	getCalls  int
	saveCalls int
	getErr    error
	saveErr   error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]TranslationRecord)}
}

func (s *mockStore) GetCached(ctx context.Context, items []ContentItem, locale string) ([]TranslationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []TranslationRecord
	for _, item := range items {
		if rec, ok := s.records[RecordKey(item.ContentType, item.ContentID, locale)]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *mockStore) Save(ctx context.Context, records []TranslationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, rec := range records {
		s.records[RecordKey(rec.ContentType, rec.ContentID, rec.Locale)] = rec
	}
	return nil
}

func (s *mockStore) seed(rec TranslationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[RecordKey(rec.ContentType, rec.ContentID, rec.Locale)] = rec
}

func (s *mockStore) get(contentType, contentID, locale string) (TranslationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[RecordKey(contentType, contentID, locale)]
	return rec, ok
}

func (s *mockStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// mockProvider translates by bracketing the target locale in front of each
// text, so tests can tell translated output from fallback text.
type mockProvider struct {
	mu          sync.Mutex
	calls       int
	lastReq     TranslateRequest
	err         error
	resultCount int // when >= 0, return exactly this many results
}

func newMockProvider() *mockProvider {
	return &mockProvider{resultCount: -1}
}

func (p *mockProvider) TranslateBatch(ctx context.Context, req TranslateRequest) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	n := len(req.Texts)
	if p.resultCount >= 0 {
		n = p.resultCount
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		text := ""
		if i < len(req.Texts) {
			text = req.Texts[i]
		}
		out[i] = fmt.Sprintf("[%s] %s", req.TargetLocale, text)
	}
	return out, nil
}

func (p *mockProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testItems() []ContentItem {
	return []ContentItem{
		{ContentType: "product", ContentID: "p1", Text: "Wireless Mouse"},
		{ContentType: "product", ContentID: "p2", Text: "Mechanical Keyboard"},
	}
}

func TestSync_DefaultLocaleShortCircuits(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	locales := NewStaticSource("en_US", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	if err := coord.Sync(context.Background(), testItems()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if store.getCalls != 0 {
		t.Errorf("Expected no store reads at default locale, got %d", store.getCalls)
	}
	if prov.callCount() != 0 {
		t.Errorf("Expected no provider calls at default locale, got %d", prov.callCount())
	}
	if coord.State() != StateSettled {
		t.Errorf("Expected StateSettled, got %v", coord.State())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Expected fallback text at default locale, got %q", got)
	}
}

func TestSync_EmptyItems(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	if err := coord.Sync(context.Background(), nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if store.getCalls != 0 || prov.callCount() != 0 {
		t.Errorf("Expected no store or provider activity for empty view, got %d/%d", store.getCalls, prov.callCount())
	}
	if coord.State() != StateSettled {
		t.Errorf("Expected StateSettled, got %v", coord.State())
	}
}

func TestSync_TranslatesMissesAndSaves(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	items := testItems()
	if err := coord.Sync(context.Background(), items); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if prov.callCount() != 1 {
		t.Fatalf("Expected 1 provider call, got %d", prov.callCount())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "[es_ES] Wireless Mouse" {
		t.Errorf("Unexpected translation: %q", got)
	}

	rec, ok := store.get("product", "p1", "es_ES")
	if !ok {
		t.Fatal("Expected record saved for p1")
	}
	if rec.SourceHash != HashText("Wireless Mouse") {
		t.Errorf("Saved record has wrong source hash: %q", rec.SourceHash)
	}
	if rec.TranslatedText != "[es_ES] Wireless Mouse" {
		t.Errorf("Saved record has wrong translation: %q", rec.TranslatedText)
	}

	if prov.lastReq.SourceLocale != "en_US" || prov.lastReq.TargetLocale != "es_ES" {
		t.Errorf("Unexpected request locales: %s -> %s", prov.lastReq.SourceLocale, prov.lastReq.TargetLocale)
	}
	if len(prov.lastReq.ItemContexts) != 2 || prov.lastReq.ItemContexts[0] != "product" {
		t.Errorf("Expected content types as item contexts, got %v", prov.lastReq.ItemContexts)
	}
}

func TestSync_CacheHitsSkipProvider(t *testing.T) {
	store := newMockStore()
	store.seed(TranslationRecord{
		ContentType:    "product",
		ContentID:      "p1",
		Locale:         "es_ES",
		OriginalText:   "Wireless Mouse",
		TranslatedText: "Ratón inalámbrico",
		SourceHash:     HashText("Wireless Mouse"),
	})
	store.seed(TranslationRecord{
		ContentType:    "product",
		ContentID:      "p2",
		Locale:         "es_ES",
		OriginalText:   "Mechanical Keyboard",
		TranslatedText: "Teclado mecánico",
		SourceHash:     HashText("Mechanical Keyboard"),
	})

	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	if err := coord.Sync(context.Background(), testItems()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if prov.callCount() != 0 {
		t.Errorf("Expected 0 provider calls for a fully cached view, got %d", prov.callCount())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Ratón inalámbrico" {
		t.Errorf("Expected cached translation, got %q", got)
	}
}

func TestSync_StaleHashRetranslates(t *testing.T) {
	store := newMockStore()
	store.seed(TranslationRecord{
		ContentType:    "product",
		ContentID:      "p1",
		Locale:         "es_ES",
		OriginalText:   "Wired Mouse",
		TranslatedText: "Ratón con cable",
		SourceHash:     HashText("Wired Mouse"), // source text has since changed
	})

	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	items := []ContentItem{{ContentType: "product", ContentID: "p1", Text: "Wireless Mouse"}}
	if err := coord.Sync(context.Background(), items); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if prov.callCount() != 1 {
		t.Fatalf("Expected stale record to be re-translated, provider calls = %d", prov.callCount())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "[es_ES] Wireless Mouse" {
		t.Errorf("Expected fresh translation, got %q", got)
	}

	rec, _ := store.get("product", "p1", "es_ES")
	if rec.SourceHash != HashText("Wireless Mouse") {
		t.Errorf("Expected replaced record to carry the new hash, got %q", rec.SourceHash)
	}
}

func TestSync_ProviderErrorDegradesToFallback(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	prov.err = &ProviderError{Message: "boom", Retryable: false}

	var reported []error
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales,
		WithDiagnostics(func(err error) { reported = append(reported, err) }),
	)

	err := coord.Sync(context.Background(), testItems())
	if err == nil {
		t.Fatal("Expected Sync to return the provider error")
	}

	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Expected fallback after provider failure, got %q", got)
	}
	if coord.IsItemTranslating("product", "p1") {
		t.Error("Expected in-flight flags cleared after failure")
	}
	if coord.State() != StateSettled {
		t.Errorf("Expected StateSettled after failed cycle, got %v", coord.State())
	}
	if len(reported) != 1 {
		t.Errorf("Expected 1 diagnostic report, got %d", len(reported))
	}
	if store.len() != 0 {
		t.Errorf("Expected no records saved on failure, store has %d", store.len())
	}
}

func TestSync_ProviderCountMismatch(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	prov.resultCount = 1 // two items submitted

	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	err := coord.Sync(context.Background(), testItems())
	if err == nil {
		t.Fatal("Expected error for count mismatch")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected *ProviderError, got %T", err)
	}
	var mismatch *CountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected wrapped *CountMismatchError, got %v", err)
	}
	if mismatch.Expected != 2 || mismatch.Got != 1 {
		t.Errorf("Unexpected mismatch counts: %+v", mismatch)
	}

	if store.len() != 0 {
		t.Errorf("Expected nothing saved from a mismatched batch, store has %d", store.len())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Expected fallback after mismatch, got %q", got)
	}
}

func TestSync_SaveFailureKeepsHitsVisible(t *testing.T) {
	store := newMockStore()
	store.seed(TranslationRecord{
		ContentType:    "product",
		ContentID:      "p1",
		Locale:         "es_ES",
		OriginalText:   "Wireless Mouse",
		TranslatedText: "Ratón inalámbrico",
		SourceHash:     HashText("Wireless Mouse"),
	})
	store.saveErr = &StoreError{Message: "disk full"}

	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	err := coord.Sync(context.Background(), testItems())
	if err == nil {
		t.Fatal("Expected Sync to return the save error")
	}

	// The hit stays visible, the failed item degrades to fallback.
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Ratón inalámbrico" {
		t.Errorf("Expected cache hit to stay visible, got %q", got)
	}
	if got := coord.GetTranslation("product", "p2", "Mechanical Keyboard"); got != "Mechanical Keyboard" {
		t.Errorf("Expected fallback for unsaved item, got %q", got)
	}
	if coord.IsItemTranslating("product", "p2") {
		t.Error("Expected in-flight flags cleared after save failure")
	}

	// No metadata means the next cycle re-runs in full and retries.
	if _, ok := coord.Metadata("es_ES"); ok {
		t.Error("Expected no metadata recorded for a failed cycle")
	}
}

func TestSync_RecordsMetadata(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales,
		WithClock(func() time.Time { return fixed }),
	)

	items := testItems()
	if err := coord.Sync(context.Background(), items); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	meta, ok := coord.Metadata("es_ES")
	if !ok {
		t.Fatal("Expected metadata after a successful cycle")
	}
	if meta.ItemCount != 2 {
		t.Errorf("Expected ItemCount 2, got %d", meta.ItemCount)
	}
	if meta.ContentHash != FingerprintView(items) {
		t.Errorf("Metadata fingerprint does not match the view")
	}
	if !meta.LastTranslated.Equal(fixed) {
		t.Errorf("Expected LastTranslated %v, got %v", fixed, meta.LastTranslated)
	}
	if meta.Locale != "es_ES" {
		t.Errorf("Expected locale es_ES, got %q", meta.Locale)
	}
}

func TestLocaleSwitch_ClearsImmediately(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES", "fr_FR"})
	coord := NewCoordinator("view", store, prov, locales)

	items := testItems()
	if err := coord.Sync(context.Background(), items); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "[es_ES] Wireless Mouse" {
		t.Fatalf("Setup: expected Spanish translation, got %q", got)
	}

	// No sync yet after the switch: the old locale's text must already be
	// gone, not still visible until the next cycle.
	locales.SetCurrent("fr_FR")
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Expected fallback right after locale switch, got %q", got)
	}
	if coord.State() != StateIdle {
		t.Errorf("Expected StateIdle after locale switch, got %v", coord.State())
	}
}

func TestLocaleSwitch_BackServesFromStore(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES", "fr_FR"})
	coord := NewCoordinator("view", store, prov, locales)

	items := testItems()
	ctx := context.Background()
	if err := coord.Sync(ctx, items); err != nil {
		t.Fatalf("Sync es failed: %v", err)
	}

	locales.SetCurrent("fr_FR")
	if err := coord.Sync(ctx, items); err != nil {
		t.Fatalf("Sync fr failed: %v", err)
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "[fr_FR] Wireless Mouse" {
		t.Fatalf("Expected French translation, got %q", got)
	}

	callsBefore := prov.callCount()
	locales.SetCurrent("es_ES")
	if err := coord.Sync(ctx, items); err != nil {
		t.Fatalf("Sync back to es failed: %v", err)
	}

	if prov.callCount() != callsBefore {
		t.Errorf("Expected switch-back to be served from the store, provider calls went %d -> %d", callsBefore, prov.callCount())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "[es_ES] Wireless Mouse" {
		t.Errorf("Expected Spanish translation restored, got %q", got)
	}
}

func TestLocaleNormalization(t *testing.T) {
	store := newMockStore()
	prov := newMockProvider()
	// Dashed form from the locale source, underscore form in the store.
	locales := NewStaticSource("es-ES", "en-US", []string{"es-ES"})
	coord := NewCoordinator("view", store, prov, locales)

	items := []ContentItem{{ContentType: "product", ContentID: "p1", Text: "Wireless Mouse"}}
	if err := coord.Sync(context.Background(), items); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if _, ok := store.get("product", "p1", "es_ES"); !ok {
		t.Error("Expected record stored under the normalized locale")
	}
	if prov.lastReq.TargetLocale != "es_ES" {
		t.Errorf("Expected normalized target locale, got %q", prov.lastReq.TargetLocale)
	}
}

// blockingProvider lets a test hold one translation call open while more sync
// triggers arrive.
type blockingProvider struct {
	inner   *mockProvider
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingProvider) TranslateBatch(ctx context.Context, req TranslateRequest) ([]string, error) {
	p.once.Do(func() {
		p.started <- struct{}{}
		<-p.release
	})
	return p.inner.TranslateBatch(ctx, req)
}

func TestSync_CollapsesConcurrentTriggers(t *testing.T) {
	store := newMockStore()
	prov := &blockingProvider{
		inner:   newMockProvider(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	first := []ContentItem{{ContentType: "product", ContentID: "p1", Text: "One"}}
	second := []ContentItem{{ContentType: "product", ContentID: "p2", Text: "Two"}}
	third := []ContentItem{{ContentType: "product", ContentID: "p3", Text: "Three"}}

	done := make(chan error, 1)
	go func() {
		done <- coord.Sync(context.Background(), first)
	}()

	<-prov.started

	// Both of these arrive while the first cycle is blocked in the provider;
	// they must park and return immediately.
	if err := coord.Sync(context.Background(), second); err != nil {
		t.Fatalf("Parked sync returned error: %v", err)
	}
	if err := coord.Sync(context.Background(), third); err != nil {
		t.Fatalf("Parked sync returned error: %v", err)
	}

	close(prov.release)
	if err := <-done; err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// First cycle plus exactly one trailing cycle for the latest item set.
	if got := prov.inner.callCount(); got != 2 {
		t.Errorf("Expected 2 provider calls (initial + trailing), got %d", got)
	}
	if texts := prov.inner.lastReq.Texts; len(texts) != 1 || texts[0] != "Three" {
		t.Errorf("Expected trailing cycle to use the latest item set, got %v", texts)
	}
	if got := coord.GetTranslation("product", "p3", "Three"); got != "[es_ES] Three" {
		t.Errorf("Expected latest item translated, got %q", got)
	}
}

func TestSync_SupersededCycleDiscarded(t *testing.T) {
	store := newMockStore()
	prov := &blockingProvider{
		inner:   newMockProvider(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	var mu sync.Mutex
	var reported []error
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES", "fr_FR"})
	coord := NewCoordinator("view", store, prov, locales,
		WithDiagnostics(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}),
	)

	items := []ContentItem{{ContentType: "product", ContentID: "p1", Text: "Wireless Mouse"}}
	done := make(chan error, 1)
	go func() {
		done <- coord.Sync(context.Background(), items)
	}()

	<-prov.started

	// The locale changes while the Spanish batch is still in the provider.
	// The getter observes the switch, which must mark the in-flight cycle
	// as superseded.
	locales.SetCurrent("fr_FR")
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Expected fallback under the new locale, got %q", got)
	}

	close(prov.release)
	if err := <-done; err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// The Spanish result arrived after the switch; it must never surface
	// under French.
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Superseded result became visible: %q", got)
	}
	if coord.State() != StateIdle {
		t.Errorf("Expected StateIdle for the new locale, got %v", coord.State())
	}
	if _, ok := coord.Metadata("fr_FR"); ok {
		t.Error("Expected no metadata recorded under the new locale")
	}

	mu.Lock()
	defer mu.Unlock()
	foundMismatch := false
	for _, err := range reported {
		var mismatch *LocaleMismatchError
		if errors.As(err, &mismatch) {
			foundMismatch = true
			if mismatch.Expected != "es_ES" || mismatch.Got != "fr_FR" {
				t.Errorf("Unexpected mismatch locales: %+v", mismatch)
			}
		}
	}
	if !foundMismatch {
		t.Error("Expected the discarded cycle reported through diagnostics")
	}
}

func TestSync_StoreReadError(t *testing.T) {
	store := newMockStore()
	store.getErr = &StoreError{Message: "connection refused"}
	prov := newMockProvider()
	locales := NewStaticSource("es_ES", "en_US", []string{"es_ES"})
	coord := NewCoordinator("view", store, prov, locales)

	err := coord.Sync(context.Background(), testItems())
	if err == nil {
		t.Fatal("Expected Sync to surface the store error")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected *StoreError, got %T", err)
	}
	if prov.callCount() != 0 {
		t.Errorf("Expected no provider calls after read failure, got %d", prov.callCount())
	}
	if got := coord.GetTranslation("product", "p1", "Wireless Mouse"); got != "Wireless Mouse" {
		t.Errorf("Expected fallback after read failure, got %q", got)
	}
}

func TestViewID(t *testing.T) {
	coord := NewCoordinator("product-page", newMockStore(), newMockProvider(), NewStaticSource("es_ES", "en_US", nil))
	if coord.ViewID() != "product-page" {
		t.Errorf("Expected view ID 'product-page', got %q", coord.ViewID())
	}
}
