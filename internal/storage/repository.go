package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS price_history (
        symbol TEXT NOT NULL,
        date   DATE NOT NULL,
        price  NUMERIC NOT NULL,
        PRIMARY KEY (symbol, date)
    );
    CREATE TABLE IF NOT EXISTS short_term_price (
        symbol TEXT NOT NULL,
        ts     TIMESTAMPTZ NOT NULL,
        price  NUMERIC NOT NULL,
        PRIMARY KEY (symbol, ts)
    );
    CREATE TABLE IF NOT EXISTS purchase_history (
        id             BIGSERIAL PRIMARY KEY,
        symbol         TEXT NOT NULL,
        purchase_type  TEXT NOT NULL,
        created_at     TIMESTAMPTZ NOT NULL,
        jpy_amount     NUMERIC NOT NULL,
        crypto_amount  NUMERIC NOT NULL,
        price          NUMERIC NOT NULL,
        executed_price NUMERIC,
        executed_time  TIMESTAMPTZ
    );`

	upsertDailyPriceSQL = `INSERT INTO price_history (symbol, date, price)
    VALUES ($1, $2, $3)
    ON CONFLICT (symbol, date) DO UPDATE
    SET price = EXCLUDED.price;`

	listDailyHistorySQL = `SELECT symbol, date, price::text
    FROM price_history
    WHERE symbol = $1
    ORDER BY date DESC
    LIMIT $2;`

	upsertShortTermPriceSQL = `INSERT INTO short_term_price (symbol, ts, price)
    VALUES ($1, $2, $3)
    ON CONFLICT (symbol, ts) DO UPDATE
    SET price = EXCLUDED.price;`

	listShortTermPricesSQL = `SELECT symbol, ts, price::text
    FROM short_term_price
    WHERE symbol = $1
    ORDER BY ts DESC
    LIMIT $2;`

	insertPurchaseSQL = `INSERT INTO purchase_history (
        symbol,
        purchase_type,
        created_at,
        jpy_amount,
        crypto_amount,
        price,
        executed_price,
        executed_time
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    ) RETURNING id;`

	purchaseColumns = `id, symbol, purchase_type, created_at,
        jpy_amount::text, crypto_amount::text, price::text,
        executed_price::text, executed_time`
)

// Store is the pgx-backed repository behind the price history facade.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables when missing. Safe to run every invocation.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// UpsertDailyPrice writes one (symbol, date) row, replacing any prior value.
func (s *Store) UpsertDailyPrice(ctx context.Context, price DailyPrice) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertDailyPriceSQL,
		price.Symbol,
		price.Date,
		price.Price.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert daily price: %w", execErr)
	}
	return nil
}

// ListDailyHistory returns up to limit most recent rows in ascending date order.
func (s *Store) ListDailyHistory(ctx context.Context, symbol string, limit int) ([]DailyPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDailyHistorySQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list daily history: %w", queryErr)
	}
	defer rows.Close()

	prices := make([]DailyPrice, 0, limit)
	for rows.Next() {
		var (
			p        DailyPrice
			priceStr string
		)
		if err := rows.Scan(&p.Symbol, &p.Date, &priceStr); err != nil {
			return nil, err
		}
		p.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse daily price: %w", err)
		}
		prices = append(prices, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	reverseDaily(prices)
	return prices, nil
}

// UpsertShortTermPrice writes one (symbol, timestamp) tick, replacing any prior value.
func (s *Store) UpsertShortTermPrice(ctx context.Context, tick ShortTermPrice) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertShortTermPriceSQL,
		tick.Symbol,
		tick.Timestamp,
		tick.Price.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert short term price: %w", execErr)
	}
	return nil
}

// ListLatestShortTermPrices returns up to limit most recent ticks in ascending order.
func (s *Store) ListLatestShortTermPrices(ctx context.Context, symbol string, limit int) ([]ShortTermPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listShortTermPricesSQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list short term prices: %w", queryErr)
	}
	defer rows.Close()

	ticks := make([]ShortTermPrice, 0, limit)
	for rows.Next() {
		var (
			t        ShortTermPrice
			priceStr string
		)
		if err := rows.Scan(&t.Symbol, &t.Timestamp, &priceStr); err != nil {
			return nil, err
		}
		t.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse short term price: %w", err)
		}
		ticks = append(ticks, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	reverseTicks(ticks)
	return ticks, nil
}

// InsertPurchase appends one ledger row. The ledger is never updated or deleted.
func (s *Store) InsertPurchase(ctx context.Context, rec PurchaseRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var executedPrice interface{}
	if rec.ExecutedPrice != nil {
		executedPrice = rec.ExecutedPrice.String()
	}
	var executedTime interface{}
	if rec.ExecutedTime != nil {
		executedTime = *rec.ExecutedTime
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertPurchaseSQL,
		rec.Symbol,
		string(rec.Type),
		rec.CreatedAt,
		rec.JPYAmount.String(),
		rec.CryptoAmount.String(),
		rec.QuotedPrice.String(),
		executedPrice,
		executedTime,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert purchase: %w", scanErr)
	}
	return id, nil
}

// LastPurchase returns the most recent ledger row, optionally filtered by type.
// Returns (nil, nil) when no purchase exists.
func (s *Store) LastPurchase(ctx context.Context, symbol string, typ PurchaseType) (*PurchaseRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + purchaseColumns + ` FROM purchase_history WHERE symbol = $1`
	args := []interface{}{symbol}
	if typ != PurchaseAny {
		query += fmt.Sprintf(" AND purchase_type = $%d", len(args)+1)
		args = append(args, string(typ))
	}
	query += " ORDER BY created_at DESC LIMIT 1"

	rec, scanErr := scanPurchase(pool.QueryRow(ctx, query, args...))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last purchase: %w", scanErr)
	}
	return &rec, nil
}

// ListPurchases returns up to limit ledger rows in descending created_at order,
// optionally restricted to rows strictly before a timestamp and/or to one type.
func (s *Store) ListPurchases(ctx context.Context, symbol string, limit int, before *time.Time, typ PurchaseType) ([]PurchaseRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + purchaseColumns + ` FROM purchase_history WHERE symbol = $1`
	args := []interface{}{symbol}
	if typ != PurchaseAny {
		query += fmt.Sprintf(" AND purchase_type = $%d", len(args)+1)
		args = append(args, string(typ))
	}
	if before != nil {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, *before)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list purchases: %w", queryErr)
	}
	defer rows.Close()

	records := make([]PurchaseRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanPurchase(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var (
		rec              PurchaseRecord
		typ              string
		jpyStr           string
		cryptoStr        string
		priceStr         string
		executedPriceStr *string
		executedTime     *time.Time
	)

	if err := row.Scan(
		&rec.ID,
		&rec.Symbol,
		&typ,
		&rec.CreatedAt,
		&jpyStr,
		&cryptoStr,
		&priceStr,
		&executedPriceStr,
		&executedTime,
	); err != nil {
		return PurchaseRecord{}, err
	}

	rec.Type = PurchaseType(typ)

	var convErr error
	rec.JPYAmount, convErr = decimal.NewFromString(jpyStr)
	if convErr != nil {
		return PurchaseRecord{}, fmt.Errorf("parse jpy amount: %w", convErr)
	}
	rec.CryptoAmount, convErr = decimal.NewFromString(cryptoStr)
	if convErr != nil {
		return PurchaseRecord{}, fmt.Errorf("parse crypto amount: %w", convErr)
	}
	rec.QuotedPrice, convErr = decimal.NewFromString(priceStr)
	if convErr != nil {
		return PurchaseRecord{}, fmt.Errorf("parse quoted price: %w", convErr)
	}
	if executedPriceStr != nil {
		executed, err := decimal.NewFromString(*executedPriceStr)
		if err != nil {
			return PurchaseRecord{}, fmt.Errorf("parse executed price: %w", err)
		}
		rec.ExecutedPrice = &executed
	}
	rec.ExecutedTime = executedTime

	return rec, nil
}

func reverseDaily(prices []DailyPrice) {
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
}

func reverseTicks(ticks []ShortTermPrice) {
	for i, j := 0, len(ticks)-1; i < j; i, j = i+1, j-1 {
		ticks[i], ticks[j] = ticks[j], ticks[i]
	}
}
