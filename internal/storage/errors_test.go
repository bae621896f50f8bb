package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyConstraintViolations(t *testing.T) {
	for _, code := range []string{"23505", "23502", "23514"} {
		err := &pgconn.PgError{Code: code}
		if got := Classify(err); got != CategoryConstraint {
			t.Fatalf("Classify(%s) = %s, want constraint", code, got)
		}
	}
}

func TestClassifyOperationalFailures(t *testing.T) {
	for _, code := range []string{"08006", "53300", "57P01", "58030", "XX000"} {
		err := &pgconn.PgError{Code: code}
		if got := Classify(err); got != CategoryOperational {
			t.Fatalf("Classify(%s) = %s, want operational", code, got)
		}
	}

	if got := Classify(context.DeadlineExceeded); got != CategoryOperational {
		t.Fatalf("deadline exceeded should be operational, got %s", got)
	}
	if got := Classify(context.Canceled); got != CategoryOperational {
		t.Fatalf("cancellation should be operational, got %s", got)
	}
	if got := Classify(ErrNotConfigured); got != CategoryOperational {
		t.Fatalf("missing pool should be operational, got %s", got)
	}
}

func TestClassifyWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("insert price: %w", &pgconn.PgError{Code: "23505"})
	if got := Classify(wrapped); got != CategoryConstraint {
		t.Fatalf("wrapped pg error should still classify, got %s", got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	if got := Classify(errors.New("something odd")); got != CategoryUnknown {
		t.Fatalf("plain error should be unknown, got %s", got)
	}
	if got := Classify(&pgconn.PgError{Code: "42703"}); got != CategoryUnknown {
		t.Fatalf("syntax-class pg error should be unknown, got %s", got)
	}
	if got := Classify(nil); got != CategoryUnknown {
		t.Fatalf("nil error should be unknown, got %s", got)
	}
}
