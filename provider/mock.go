package provider

import (
	"context"
	"fmt"
)

// MockProvider is a mock translation provider for testing.
type MockProvider struct {
	Translations map[string]string // Map of source text to translation
	Err          error             // When set, every call fails with this error
	CallCount    int               // Number of times TranslateBatch was called
	LastRequest  *TranslateRequest // Last request received
}

// NewMockProvider creates a new mock provider. Texts without an entry in
// Translations come back bracketed with the target locale so tests can tell
// translated output apart from source text.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]string{},
	}
}

// TranslateBatch returns mock translations.
func (m *MockProvider) TranslateBatch(ctx context.Context, req TranslateRequest) ([]string, error) {
	m.CallCount++
	m.LastRequest = &req

	if m.Err != nil {
		return nil, m.Err
	}

	results := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		if translation, ok := m.Translations[text]; ok {
			results[i] = translation
		} else {
			results[i] = fmt.Sprintf("[%s] %s", req.TargetLocale, text)
		}
	}

	return results, nil
}

// Reset resets the call count and last request.
func (m *MockProvider) Reset() {
	m.CallCount = 0
	m.LastRequest = nil
}

// Verify MockProvider implements Provider
var _ Provider = (*MockProvider)(nil)
