package models

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/vhqtran/coingains/internal/errors"
)

// Outcome is a recognized classification for an external movement.
type Outcome string

const (
	// Deposit outcomes.
	OutcomeIncome       Outcome = "income"
	OutcomeGiftReceived Outcome = "gift_received"
	OutcomeBuy          Outcome = "buy"
	// Withdrawal outcomes.
	OutcomeSale      Outcome = "sale"
	OutcomeExpense   Outcome = "expense"
	OutcomeGiftGiven Outcome = "gift_given"
	// Either direction.
	OutcomeNonTaxable Outcome = "non_taxable"
)

// DepositOutcomes and WithdrawalOutcomes are the choices the resolver
// offers, in presentation order.
var (
	DepositOutcomes    = []Outcome{OutcomeIncome, OutcomeBuy, OutcomeGiftReceived, OutcomeNonTaxable}
	WithdrawalOutcomes = []Outcome{OutcomeSale, OutcomeExpense, OutcomeGiftGiven, OutcomeNonTaxable}
)

// ValidFor reports whether the outcome applies to the given kind.
func (o Outcome) ValidFor(kind TransactionKind) bool {
	var allowed []Outcome
	switch kind {
	case KindDeposit:
		allowed = DepositOutcomes
	case KindWithdrawal:
		allowed = WithdrawalOutcomes
	default:
		return false
	}
	for _, a := range allowed {
		if a == o {
			return true
		}
	}
	return false
}

// ClassificationDecision is a cached resolver answer keyed by transaction
// fingerprint. It is durable across runs and never silently overwritten;
// deleting the row is the only way to force re-classification.
type ClassificationDecision struct {
	Fingerprint string          `json:"fingerprint" gorm:"primaryKey;column:fingerprint;type:varchar(255)"`
	Outcome     Outcome         `json:"outcome" gorm:"column:outcome;type:varchar(30);not null"`
	FiatAmount  decimal.Decimal `json:"fiat_amount" gorm:"column:fiat_amount;type:decimal(30,18);not null"`
	// BasisDate overrides the acquisition date for deposits classified
	// as buys of coins purchased outside the tracked accounts.
	BasisDate *time.Time `json:"basis_date,omitempty" gorm:"column:basis_date"`
	Note      string     `json:"note,omitempty" gorm:"column:note;type:text"`
	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for the ClassificationDecision model.
func (ClassificationDecision) TableName() string {
	return "classification_decisions"
}

// Validate checks the decision before it is persisted.
func (d *ClassificationDecision) Validate() error {
	if d.Fingerprint == "" {
		return &apperrors.ErrValidation{Field: "fingerprint", Message: "is required"}
	}
	if d.Outcome == "" {
		return &apperrors.ErrValidation{Field: "outcome", Message: "is required"}
	}
	if d.FiatAmount.IsNegative() {
		return &apperrors.ErrValidation{Field: "fiat_amount", Message: "must be non-negative"}
	}
	return nil
}
