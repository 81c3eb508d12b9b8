package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Term is the holding-period classification of a matched lot.
type Term string

const (
	TermShort Term = "short"
	TermLong  Term = "long"
)

// MatchedLot records one lot's contribution to a disposal.
type MatchedLot struct {
	LotID          string          `json:"lot_id"`
	AcquiredAt     time.Time       `json:"acquired_at"`
	AmountConsumed decimal.Decimal `json:"amount_consumed"`
	BasisConsumed  decimal.Decimal `json:"basis_consumed"`
	// ProceedsPortion is the disposal's proceeds allocated to this lot
	// pro rata by amount.
	ProceedsPortion decimal.Decimal `json:"proceeds_portion"`
	Term            Term            `json:"term"`
}

// DisposalEvent is the outcome of matching a sell (or a withdrawal
// classified as a sale or gift) against the account's lot inventory.
// Invariants: the matched amounts sum to DisposedAmount, and
// Gain = Proceeds - sum of basis consumed.
type DisposalEvent struct {
	TransactionID  string          `json:"transaction_id"`
	Account        string          `json:"account"`
	DisposedAt     time.Time       `json:"disposed_at"`
	DisposedAmount decimal.Decimal `json:"disposed_amount"`
	// Proceeds is net of disposal fees.
	Proceeds    decimal.Decimal `json:"proceeds"`
	MatchedLots []MatchedLot    `json:"matched_lots"`
	Basis       decimal.Decimal `json:"basis"`
	Gain        decimal.Decimal `json:"gain"`
	// Exempt marks long-term gift disposals, reported in their own
	// bucket rather than as taxable long-term gains.
	Exempt bool `json:"exempt"`
}

// TransferPair links a withdrawal in one account to the deposit of the
// same asset in another account owned by the same user. Once paired,
// neither leg is independently classified.
type TransferPair struct {
	WithdrawalID string          `json:"withdrawal_id"`
	DepositID    string          `json:"deposit_id"`
	FromAccount  string          `json:"from_account"`
	ToAccount    string          `json:"to_account"`
	Amount       decimal.Decimal `json:"amount"`
	// FeeAmount is the quantity lost in transit: the withdrawal plus
	// its asset-denominated fee, minus what arrived. It is burned from
	// the moved lots.
	FeeAmount decimal.Decimal `json:"fee_amount"`
	// MatchedBy records how the pair was found: "amount" or "txid".
	MatchedBy string `json:"matched_by"`
}
