package transaction

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary aggregates a set of transactions. Ignored transactions are counted
// but excluded from every total.
type Summary struct {
	Count      int                        `json:"count"`
	Ignored    int                        `json:"ignored"`
	Income     decimal.Decimal            `json:"income"`
	Expenses   decimal.Decimal            `json:"expenses"` // negative or zero
	Net        decimal.Decimal            `json:"net"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// Summarize totals txs.
func Summarize(txs []Transaction) Summary {
	s := Summary{ByCategory: make(map[string]decimal.Decimal)}
	for _, tx := range txs {
		s.Count++
		if tx.Ignored {
			s.Ignored++
			continue
		}
		if tx.Amount.IsPositive() {
			s.Income = s.Income.Add(tx.Amount)
		} else {
			s.Expenses = s.Expenses.Add(tx.Amount)
		}
		s.ByCategory[tx.Category] = s.ByCategory[tx.Category].Add(tx.Amount)
	}
	s.Net = s.Income.Add(s.Expenses)
	return s
}

// Categories returns the category keys of the summary in name order; the
// uncategorized bucket is "".
func (s Summary) Categories() []string {
	keys := make([]string, 0, len(s.ByCategory))
	for k := range s.ByCategory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
