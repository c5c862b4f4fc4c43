package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures that are expected to clear on retry.
	ErrTransient = errors.New("transient failure")
	// ErrRateLimited marks failures caused by the service rate limit. Retryable,
	// but call sites may log it distinctly.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation marks malformed items or outputs. Fatal for the item.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks batch storage failures. Fatal for the whole run because
	// resume correctness depends on storage integrity.
	ErrStorage = errors.New("storage error")
	// ErrConfiguration marks unusable configuration (missing API key, bad URL).
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks absent batches or records.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the error may succeed on a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}

// IsStorage reports whether the error is a storage failure that must halt the run.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
