package dyntrans

import "fmt"

// StoreError indicates a translation store read or write failure.
type StoreError struct {
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("store error: %s", e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// ProviderError indicates a translation provider failure (API error, rate
// limit, malformed or miscounted response).
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ConfigError indicates a missing or invalid configuration, such as batch
// discovery against a store that does not support enumeration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Message)
}

// CountMismatchError indicates the provider returned a different number of
// translations than texts submitted.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("translation count mismatch: expected %d, got %d", e.Expected, e.Got)
}

// LocaleMismatchError is an internal guard: a sync cycle finished for a
// locale that is no longer active. It is never surfaced to the rendering
// layer; the coordinator discards the result and resyncs silently, reporting
// the mismatch only through its diagnostics channel.
type LocaleMismatchError struct {
	Expected string
	Got      string
}

func (e *LocaleMismatchError) Error() string {
	return fmt.Sprintf("locale changed during sync: expected %s, got %s", e.Expected, e.Got)
}
