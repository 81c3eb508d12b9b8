package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/vhqtran/coingains/internal/errors"
)

// TransactionKind is the raw movement type as reported by the source,
// before any classification.
type TransactionKind string

const (
	KindBuy        TransactionKind = "buy"
	KindSell       TransactionKind = "sell"
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
)

// TransactionRecord is one normalized ledger event produced by an
// importer. It is immutable once ingested; all derived state
// (classification, matched lots) is keyed by ID and tracked elsewhere.
type TransactionRecord struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      TransactionKind `json:"kind"`

	// AssetAmount is signed: positive increases holdings, negative
	// decreases them.
	AssetAmount decimal.Decimal `json:"asset_amount"`

	// FiatAmount is the value in the reporting currency at transaction
	// time, when the source knows it. Nil for unpriced deposits and
	// withdrawals pending classification.
	FiatAmount *decimal.Decimal `json:"fiat_amount,omitempty"`

	FeeAsset decimal.Decimal `json:"fee_asset"`
	FeeFiat  decimal.Decimal `json:"fee_fiat"`

	// CounterpartyHint is an optional address or account string that
	// helps transfer matching.
	CounterpartyHint string `json:"counterparty_hint,omitempty"`

	// TxHash is the on-chain transaction id when the source exposes one.
	TxHash string `json:"tx_hash,omitempty"`

	SourceFile string `json:"source_file,omitempty"`

	// ImportIndex is the record's position in its source file. It is the
	// stable tiebreak for equal timestamps so re-runs consume lots
	// identically.
	ImportIndex int `json:"import_index"`
}

// Validate rejects malformed records at ingestion.
func (r *TransactionRecord) Validate() error {
	if r.ID == "" {
		return &apperrors.ErrValidation{Field: "id", Message: "is required"}
	}
	if r.Account == "" {
		return &apperrors.ErrValidation{Field: "account", Message: "is required"}
	}
	if r.Timestamp.IsZero() {
		return &apperrors.ErrValidation{Field: "timestamp", Message: "is required"}
	}
	switch r.Kind {
	case KindBuy, KindSell, KindDeposit, KindWithdrawal:
	default:
		return &apperrors.ErrValidation{Field: "kind", Message: fmt.Sprintf("unknown kind %q", r.Kind)}
	}
	if r.AssetAmount.IsZero() {
		return &apperrors.ErrValidation{Field: "asset_amount", Message: "must be non-zero"}
	}
	switch r.Kind {
	case KindBuy, KindDeposit:
		if r.AssetAmount.IsNegative() {
			return &apperrors.ErrValidation{Field: "asset_amount", Message: "must be positive for " + string(r.Kind)}
		}
	case KindSell, KindWithdrawal:
		if r.AssetAmount.IsPositive() {
			return &apperrors.ErrValidation{Field: "asset_amount", Message: "must be negative for " + string(r.Kind)}
		}
	}
	if r.FiatAmount != nil && r.FiatAmount.IsNegative() {
		return &apperrors.ErrValidation{Field: "fiat_amount", Message: "must be non-negative"}
	}
	if r.FeeAsset.IsNegative() || r.FeeFiat.IsNegative() {
		return &apperrors.ErrValidation{Field: "fee", Message: "must be non-negative"}
	}
	return nil
}

// Fingerprint identifies the transaction across runs for the decision
// cache: same account, day, amount and kind map to the same cached
// classification even when source files are re-exported with new IDs.
func (r *TransactionRecord) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		r.Account,
		r.Timestamp.UTC().Format("2006-01-02"),
		r.AssetAmount.String(),
		r.Kind)
}

// NetAssetAmount is the unsigned asset quantity net of the
// asset-denominated fee, the figure transfer matching compares on both
// legs.
func (r *TransactionRecord) NetAssetAmount() decimal.Decimal {
	return r.AssetAmount.Abs().Sub(r.FeeAsset)
}
