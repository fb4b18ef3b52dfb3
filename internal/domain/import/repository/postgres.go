// Package repository persists finalized import batches.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/pkg/money"
)

// ErrBatchNotFound is returned for an unknown batch ID.
var ErrBatchNotFound = errors.New("import batch not found")

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BatchInfo summarizes a stored batch.
type BatchInfo struct {
	ID           uuid.UUID `json:"id"`
	RowCount     int       `json:"row_count"`
	CurrencyCode string       `json:"currency_code"`
	Net          *money.Money `json:"net"` // excludes ignored rows
	CreatedAt    time.Time    `json:"created_at"`
}

var transactionColumns = []string{
	"id", "batch_id", "booked_on", "description", "merchant",
	"amount_minor", "currency_code", "category", "ignored", "source",
}

// TransactionRepository stores transactions in Postgres with amounts in
// minor units of a single currency.
type TransactionRepository struct {
	db       DB
	currency string
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db DB, currency string) *TransactionRepository {
	return &TransactionRepository{db: db, currency: currency}
}

// SaveTransactions writes the batch header and every transaction in one
// database transaction. Any failure rolls the whole batch back; an amount
// below the currency's minor unit refuses the batch before anything is sent.
func (r *TransactionRepository) SaveTransactions(ctx context.Context, batchID uuid.UUID, txs []transaction.Transaction) error {
	amounts, net, err := minorAmounts(txs, r.currency)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO import_batches (id, row_count, currency_code, net_minor)
		VALUES ($1, $2, $3, $4)`,
		batchID, len(txs), r.currency, net.Amount(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	rows := make([][]any, len(txs))
	for i, t := range txs {
		rows[i] = []any{
			t.ID, batchID, t.Date, t.Description, t.Merchant,
			amounts[i], r.currency,
			t.Category, t.Ignored, string(t.Source),
		}
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy transactions: %w", err)
	}
	if int(copied) != len(txs) {
		return fmt.Errorf("copied %d of %d transactions", copied, len(txs))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// GetBatch returns the header of a stored batch.
func (r *TransactionRepository) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchInfo, error) {
	var (
		b   BatchInfo
		net int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, row_count, currency_code, net_minor, created_at
		FROM import_batches
		WHERE id = $1`, batchID,
	).Scan(&b.ID, &b.RowCount, &b.CurrencyCode, &net, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	b.Net = money.New(net, b.CurrencyCode)
	return &b, nil
}

// ListTransactions returns the transactions of a batch by date.
func (r *TransactionRepository) ListTransactions(ctx context.Context, batchID uuid.UUID) ([]transaction.Transaction, error) {
	query := `
		SELECT id, booked_on, description, merchant, amount_minor, currency_code, category, ignored, source
		FROM transactions
		WHERE batch_id = $1
		ORDER BY booked_on, id`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []transaction.Transaction
	for rows.Next() {
		var (
			t        transaction.Transaction
			minor    int64
			currency string
			source   string
		)
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.Merchant, &minor, &currency, &t.Category, &t.Ignored, &source); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Amount = money.New(minor, currency).ToDecimal()
		t.Source = transaction.Source(source)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
