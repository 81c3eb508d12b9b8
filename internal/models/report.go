package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodTotals are the running totals for one reporting bucket.
type PeriodTotals struct {
	ShortTermGain decimal.Decimal `json:"short_term_gain"`
	LongTermGain  decimal.Decimal `json:"long_term_gain"`
	ExemptGain    decimal.Decimal `json:"exempt_gain"`
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	DisposalCount int             `json:"disposal_count"`
	IncomeCount   int             `json:"income_count"`
	ExpenseCount  int             `json:"expense_count"`
}

// TotalGain is the sum of the taxable buckets.
func (t PeriodTotals) TotalGain() decimal.Decimal {
	return t.ShortTermGain.Add(t.LongTermGain)
}

// PeriodRow is one bucket in a snapshot, keyed "2006-01" for months and
// "2006" for years.
type PeriodRow struct {
	Key    string       `json:"key"`
	Totals PeriodTotals `json:"totals"`
}

// IncomeEvent is a classified income or expense amount feeding the
// aggregator alongside disposals.
type IncomeEvent struct {
	TransactionID string          `json:"transaction_id"`
	Account       string          `json:"account"`
	Date          time.Time       `json:"date"`
	// Amount is positive for income, and for expenses the positive
	// magnitude that offsets income.
	Amount  decimal.Decimal `json:"amount"`
	Expense bool            `json:"expense"`
}

// Snapshot is the read-only aggregator output handed to report renderers.
// Rows are sorted by key so identical inputs produce identical snapshots.
type Snapshot struct {
	Months  []PeriodRow  `json:"months"`
	Years   []PeriodRow  `json:"years"`
	AllTime PeriodTotals `json:"all_time"`
}

// RunResult is everything a single engine pass produces.
type RunResult struct {
	Snapshot    *Snapshot         `json:"snapshot"`
	Disposals   []*DisposalEvent  `json:"disposals"`
	Transfers   []*TransferPair   `json:"transfers"`
	Incomes     []*IncomeEvent    `json:"incomes"`
	Inventories map[string][]*Lot `json:"inventories"`
}
