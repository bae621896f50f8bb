package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseType distinguishes the two purchase flows.
type PurchaseType string

const (
	// PurchaseBase is an unconditional recurring purchase.
	PurchaseBase PurchaseType = "base"
	// PurchaseAdd is a signal-gated conditional purchase.
	PurchaseAdd PurchaseType = "add"
	// PurchaseAny matches either type in lookups.
	PurchaseAny PurchaseType = ""
)

// DailyPrice is one persisted closing price, unique per (symbol, date).
type DailyPrice struct {
	Symbol string
	Date   time.Time
	Price  decimal.Decimal
}

// ShortTermPrice is a sub-daily price sample used only for drop detection.
type ShortTermPrice struct {
	Symbol    string
	Timestamp time.Time
	Price     decimal.Decimal
}

// PurchaseRecord is one row of the append-only purchase ledger. Executed
// fields stay nil when fill reconciliation was unavailable.
type PurchaseRecord struct {
	ID            int64
	Symbol        string
	Type          PurchaseType
	CreatedAt     time.Time
	JPYAmount     decimal.Decimal
	CryptoAmount  decimal.Decimal
	QuotedPrice   decimal.Decimal
	ExecutedPrice *decimal.Decimal
	ExecutedTime  *time.Time
}
