package services_test

import (
	"errors"
	"strings"
	"testing"

	"refinery/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRateLimited, "llm", "refine", "http 429", base)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	if !strings.Contains(err.Error(), "llm: refine: http 429") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "llm", "refine", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", services.Wrap(services.ErrTransient, "llm", "refine", "", nil), true},
		{"rate limited", services.Wrap(services.ErrRateLimited, "llm", "refine", "", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "llm", "refine", "", nil), false},
		{"storage", services.Wrap(services.ErrStorage, "store", "write", "", nil), false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
