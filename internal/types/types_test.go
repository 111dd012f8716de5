package types

import (
	"errors"
	"testing"

	"peach/internal/token"
)

func TestFromName(t *testing.T) {
	tests := []struct {
		name string
		want Ty
	}{
		{"u64", U64},
		{"bool", Bool},
		{"()", Unit},
	}
	for _, tt := range tests {
		got, err := FromName(tt.name)
		if err != nil {
			t.Fatalf("FromName(%q): unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("FromName(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}

	if _, err := FromName("i32"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for i32, got %v", err)
	}
}

func TestUnify(t *testing.T) {
	if got, err := Unify(Unknown, Bool); err != nil || got != Bool {
		t.Fatalf("Unify(_, bool) = %s, %v", got, err)
	}
	if got, err := Unify(U64, Unknown); err != nil || got != U64 {
		t.Fatalf("Unify(u64, _) = %s, %v", got, err)
	}
	if _, err := Unify(U64, Bool); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestBinary(t *testing.T) {
	if got, _ := Binary(token.Star, U64, U64); got != U64 {
		t.Errorf("u64 * u64 = %s", got)
	}
	if got, _ := Binary(token.Lt, U64, Unknown); got != Bool {
		t.Errorf("u64 < _ = %s", got)
	}
	if _, err := Binary(token.Plus, Bool, U64); !errors.Is(err, ErrMismatch) {
		t.Errorf("expected mismatch for bool + u64, got %v", err)
	}
	if _, err := Binary(token.Eq, U64, U64); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected unsupported for ==, got %v", err)
	}
}
