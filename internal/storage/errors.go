package storage

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Category buckets a storage failure for logging and degradation decisions.
type Category string

const (
	// CategoryConstraint covers integrity violations (duplicate keys, null
	// violations). SQLSTATE class 23.
	CategoryConstraint Category = "constraint"
	// CategoryOperational covers connectivity and server-side resource
	// failures that a later run may not hit.
	CategoryOperational Category = "operational"
	// CategoryUnknown covers everything else.
	CategoryUnknown Category = "unknown"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

// Classify maps a storage error onto a failure category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return CategoryConstraint
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"),
			strings.HasPrefix(pgErr.Code, "58"),
			strings.HasPrefix(pgErr.Code, "XX"):
			return CategoryOperational
		default:
			return CategoryUnknown
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryOperational
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryOperational
	}
	if errors.Is(err, ErrNotConfigured) {
		return CategoryOperational
	}

	return CategoryUnknown
}
