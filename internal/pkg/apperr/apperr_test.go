package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	ve := NewValidation(Violation{Field: "taskName", Message: "Task name is required"})

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: ve, want: KindValidation},
		{name: "wrapped validation", err: fmt.Errorf("create task: %w", ve), want: KindValidation},
		{name: "not found", err: fmt.Errorf("find task: %w", ErrNotFound), want: KindNotFound},
		{name: "conflict", err: ErrConflict, want: KindConflict},
		{name: "unauthenticated", err: ErrUnauthenticated, want: KindUnauthenticated},
		{name: "other", err: errors.New("boom"), want: KindInternal},
		{name: "nil", err: nil, want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationError_Aggregates(t *testing.T) {
	ve := &ValidationError{}
	if ve.Err() != nil {
		t.Fatalf("expected nil error for empty validation")
	}
	ve.Add("email", "Please provide a valid email address")
	ve.Add("password", "Password is required")

	err := fmt.Errorf("login: %w", ve.Err())
	got := Violations(err)
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(got))
	}
	if got[1].Field != "password" {
		t.Fatalf("unexpected field order: %+v", got)
	}
}
