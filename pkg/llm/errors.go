package llm

import (
	"errors"
	"fmt"
	"strings"
)

// SentinelPrefix starts every string Complete returns when no provider produced text.
const SentinelPrefix = "LLM Error: "

var ErrNoProviders = errors.New("no LLM providers configured")

// ProviderFailure is one provider's failed attempt.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ExhaustedError reports that every configured provider failed for one call.
type ExhaustedError struct {
	Failures []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrNoProviders.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Provider, f.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	if len(e.Failures) == 0 {
		return []error{ErrNoProviders}
	}
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Sentinel renders err as the in-band failure string.
func Sentinel(err error) string {
	return SentinelPrefix + err.Error()
}

// IsSentinel reports whether text is a failure string rather than model output.
func IsSentinel(text string) bool {
	return strings.HasPrefix(text, SentinelPrefix)
}
