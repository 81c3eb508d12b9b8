package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is one acquisition of the asset still (partially) unsold. A lot is
// owned by exactly one account ledger; it is created by a buy or an
// income-classified deposit and removed from the queue only when
// RemainingAmount reaches zero.
type Lot struct {
	ID         string    `json:"id"`
	Account    string    `json:"account"`
	AcquiredAt time.Time `json:"acquired_at"`
	// OriginalAmount is fixed at creation; RemainingAmount only shrinks.
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	// UnitCostBasis is fiat per unit at acquisition, fees included.
	UnitCostBasis decimal.Decimal `json:"unit_cost_basis"`
	// SourceTxID links back to the acquiring transaction.
	SourceTxID string `json:"source_tx_id,omitempty"`
}

// RemainingBasis is the fiat cost basis still held by the lot.
func (l *Lot) RemainingBasis() decimal.Decimal {
	return l.UnitCostBasis.Mul(l.RemainingAmount)
}

// Consume reduces the lot by amount and returns the basis consumed.
// Callers never take more than RemainingAmount.
func (l *Lot) Consume(amount decimal.Decimal) decimal.Decimal {
	l.RemainingAmount = l.RemainingAmount.Sub(amount)
	return l.UnitCostBasis.Mul(amount)
}

// Exhausted reports whether the lot has been fully consumed.
func (l *Lot) Exhausted() bool {
	return !l.RemainingAmount.IsPositive()
}
