package domain

import "fmt"

// ValidationError marks a request that is malformed or incomplete.
// It is returned before any provider or store access happens.
type ValidationError struct {
	Msg string
}

func (self ValidationError) Error() string {
	return self.Msg
}

func NewValidationError(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderError marks a failed CI-status lookup. It is transient and must
// never be interpreted as "checks failed": a provider outage must not
// trigger a fallback.
type ProviderError struct {
	Err     error
	Timeout bool
}

func (self ProviderError) Error() string {
	if self.Timeout {
		return fmt.Sprintf("CI-status provider timed out: %s", self.Err)
	}
	return fmt.Sprintf("CI-status provider failed: %s", self.Err)
}

func (self ProviderError) Unwrap() error {
	return self.Err
}

// StorageError marks an unreadable or unwritable state store. When it occurs
// after checks passed the caller must know that the good state was not
// durably recorded.
type StorageError struct {
	Err error
}

func (self StorageError) Error() string {
	return fmt.Sprintf("state store failed: %s", self.Err)
}

func (self StorageError) Unwrap() error {
	return self.Err
}
