package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil error", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"wrapped rate limited", fmt.Errorf("attempt: %w", ErrRateLimited), ErrorCategoryRateLimited},
		{"wrapped no route", fmt.Errorf("attempt: %w", ErrNoRoute), ErrorCategoryNoRoute},
		{"wrapped upstream", fmt.Errorf("%w: HTTP 502", ErrUpstream), ErrorCategoryUpstream},
		{"invalid key", fmt.Errorf("%w: too short", ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"timeout string", errors.New("request timeout after 10s"), ErrorCategoryTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"parse failure", errors.New("parse response: unexpected EOF"), ErrorCategoryParsing},
		{"anything else", errors.New("something odd"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
