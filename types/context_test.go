package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		with func(context.Context, string) context.Context
		get  func(context.Context) (string, bool)
	}{
		{"trace", WithTraceID, TraceID},
		{"user", WithUserID, UserID},
		{"run", WithRunID, RunID},
		{"session", WithSessionID, SessionID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.get(context.Background()); ok {
				t.Fatalf("%s present on empty context", tt.name)
			}
			if got, ok := tt.get(tt.with(context.Background(), "v1")); !ok || got != "v1" {
				t.Fatalf("%s mismatch: %v %v", tt.name, got, ok)
			}
			if _, ok := tt.get(tt.with(context.Background(), "")); ok {
				t.Fatalf("empty %s must report absent", tt.name)
			}
		})
	}

	ctx := WithRunID(WithSessionID(context.Background(), "s1"), "r1")
	if sid, _ := SessionID(ctx); sid != "s1" {
		t.Fatalf("session lost under run id: %q", sid)
	}
}
