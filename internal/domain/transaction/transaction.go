// Package transaction defines the normalized transaction record shared by the
// import pipeline, persistence and the HTTP surface.
package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyDescription = errors.New("description is required")
	ErrZeroAmount       = errors.New("amount must not be zero")
	ErrInvalidDate      = errors.New("date is required")
)

// Source records how a transaction entered the system.
type Source string

const (
	SourceImport Source = "import"
	SourceManual Source = "manual"
)

// Transaction is a single movement of money. Positive amounts are inflows,
// negative amounts outflows.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Date        time.Time       `json:"date"` // midnight UTC
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"` // empty when uncategorized
	Ignored     bool            `json:"ignored"`
	Source      Source          `json:"source"`
}

// NewManual validates a user-entered transaction.
func NewManual(date time.Time, description string, amount decimal.Decimal, category string) (*Transaction, error) {
	tx := &Transaction{
		ID:          uuid.New(),
		Date:        truncateDay(date),
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Category:    strings.TrimSpace(category),
		Source:      SourceManual,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Validate checks the invariants every stored transaction holds.
func (t *Transaction) Validate() error {
	switch {
	case t.Date.IsZero():
		return ErrInvalidDate
	case strings.TrimSpace(t.Description) == "":
		return ErrEmptyDescription
	case t.Amount.IsZero():
		return ErrZeroAmount
	}
	return nil
}

// IsIncome reports whether the transaction is an inflow.
func (t *Transaction) IsIncome() bool { return t.Amount.IsPositive() }

// Patch is a field-level update; nil fields are left unchanged.
type Patch struct {
	Date        *time.Time       `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Ignored     *bool            `json:"ignored,omitempty"`
}

// Apply returns a copy of t with the patch applied, or an error if the result
// would be invalid. t itself is never modified.
func (t Transaction) Apply(p Patch) (Transaction, error) {
	if p.Date != nil {
		t.Date = truncateDay(*p.Date)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Ignored != nil {
		t.Ignored = *p.Ignored
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
