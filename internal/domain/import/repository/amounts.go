package repository

import (
	"errors"
	"fmt"

	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/pkg/money"
)

// ErrBelowMinorUnit is returned when a non-zero amount rounds to zero minor
// units of the store currency, e.g. 0.004 EUR.
var ErrBelowMinorUnit = errors.New("amount is smaller than the currency's minor unit")

// minorAmounts converts every amount to minor units and sums the net of the
// rows that are not ignored. It refuses the whole batch when any amount
// would be stored as zero.
func minorAmounts(txs []transaction.Transaction, currency string) ([]int64, *money.Money, error) {
	amounts := make([]int64, len(txs))
	net := money.Zero(currency)

	for i, t := range txs {
		m := money.NewFromDecimal(t.Amount, currency)
		if m.IsZero() {
			return nil, nil, fmt.Errorf("%w: %s %s on %q", ErrBelowMinorUnit, t.Amount, m.Currency(), t.Description)
		}
		amounts[i] = m.Amount()
		if t.Ignored {
			continue
		}
		sum, err := net.Add(m)
		if err != nil {
			return nil, nil, err
		}
		net = sum
	}
	return amounts, net, nil
}
