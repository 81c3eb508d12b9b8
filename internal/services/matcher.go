package services

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/vhqtran/coingains/internal/errors"
	"github.com/vhqtran/coingains/internal/models"
)

// LotMatcher pairs disposals with acquisition lots under the configured
// selection policy and computes basis, proceeds and gain. It is the only
// component that mutates lot inventories.
type LotMatcher struct {
	policy        Policy
	longTermYears int
	logger        *zap.Logger
}

// NewLotMatcher creates a matcher. longTermYears is the holding-period
// threshold: a lot held exactly that many calendar years is still short
// term, one day beyond is long term.
func NewLotMatcher(policy Policy, longTermYears int, logger *zap.Logger) *LotMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LotMatcher{policy: policy, longTermYears: longTermYears, logger: logger}
}

// IsLongTerm applies calendar arithmetic rather than a fixed day count,
// so leap years behave the way the holding-period rules expect.
func (m *LotMatcher) IsLongTerm(acquired, disposed time.Time) bool {
	return acquired.AddDate(m.longTermYears, 0, 0).Before(disposed)
}

// Dispose consumes amount from the ledger's inventory in policy order
// and returns the resulting event. proceeds must already be net of
// disposal fees. specific supplies the explicit lot ordering for the
// specific-identification policy and is ignored otherwise.
func (m *LotMatcher) Dispose(ledger *AccountLedger, tx *models.TransactionRecord, amount, proceeds decimal.Decimal, at time.Time, specific []string) (*models.DisposalEvent, error) {
	available := ledger.TotalRemaining()
	if amount.GreaterThan(available) {
		return nil, &apperrors.ErrInsufficientLots{
			TransactionID: tx.ID,
			Account:       ledger.Account(),
			Requested:     amount,
			Available:     available,
		}
	}

	event := &models.DisposalEvent{
		TransactionID:  tx.ID,
		Account:        ledger.Account(),
		DisposedAt:     at,
		DisposedAmount: amount,
		Proceeds:       proceeds,
	}

	remaining := amount
	for _, lot := range selectionOrder(ledger.Lots(), m.policy, specific) {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.RemainingAmount, remaining)
		basis := lot.Consume(take)
		term := models.TermShort
		if m.IsLongTerm(lot.AcquiredAt, at) {
			term = models.TermLong
		}
		event.MatchedLots = append(event.MatchedLots, models.MatchedLot{
			LotID:          lot.ID,
			AcquiredAt:     lot.AcquiredAt,
			AmountConsumed: take,
			BasisConsumed:  basis,
			// Proceeds are allocated to lots pro rata by amount.
			ProceedsPortion: proceeds.Mul(take).Div(amount),
			Term:            term,
		})
		event.Basis = event.Basis.Add(basis)
		remaining = remaining.Sub(take)
	}
	ledger.compact()

	event.Gain = event.Proceeds.Sub(event.Basis)
	m.logger.Debug("disposed lots",
		zap.String("account", event.Account),
		zap.String("tx", tx.ID),
		zap.String("amount", amount.String()),
		zap.String("proceeds", proceeds.String()),
		zap.String("gain", event.Gain.String()),
		zap.Int("lots", len(event.MatchedLots)))
	return event, nil
}

// ConsumeQuiet burns amount from the inventory without producing a
// disposal event. Used for expense and non-taxable withdrawals, whose
// coins leave the tracked accounts without a gain computation.
func (m *LotMatcher) ConsumeQuiet(ledger *AccountLedger, tx *models.TransactionRecord, amount decimal.Decimal, specific []string) error {
	available := ledger.TotalRemaining()
	if amount.GreaterThan(available) {
		return &apperrors.ErrInsufficientLots{
			TransactionID: tx.ID,
			Account:       ledger.Account(),
			Requested:     amount,
			Available:     available,
		}
	}
	remaining := amount
	for _, lot := range selectionOrder(ledger.Lots(), m.policy, specific) {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.RemainingAmount, remaining)
		lot.Consume(take)
		remaining = remaining.Sub(take)
	}
	ledger.compact()
	return nil
}

// Transfer moves the paired quantity from one account's inventory to the
// other, preserving each lot's acquisition date and unit cost basis. The
// network fee quantity is burned from the first lots consumed, exactly
// as it left the chain.
func (m *LotMatcher) Transfer(from, to *AccountLedger, pair *models.TransferPair, tx *models.TransactionRecord) error {
	total := pair.Amount.Add(pair.FeeAmount)
	available := from.TotalRemaining()
	if total.GreaterThan(available) {
		return &apperrors.ErrInsufficientLots{
			TransactionID: pair.WithdrawalID,
			Account:       from.Account(),
			Requested:     total,
			Available:     available,
		}
	}

	remaining := total
	feeToBurn := pair.FeeAmount
	for _, lot := range selectionOrder(from.Lots(), m.policy, nil) {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.RemainingAmount, remaining)
		lot.Consume(take)
		remaining = remaining.Sub(take)

		burned := decimal.Min(take, feeToBurn)
		feeToBurn = feeToBurn.Sub(burned)
		moved := take.Sub(burned)
		if moved.IsPositive() {
			to.AddLot(&models.Lot{
				AcquiredAt:      lot.AcquiredAt,
				RemainingAmount: moved,
				OriginalAmount:  moved,
				UnitCostBasis:   lot.UnitCostBasis,
				SourceTxID:      pair.WithdrawalID,
			})
		}
	}
	from.compact()

	m.logger.Debug("transferred lots",
		zap.String("from", from.Account()),
		zap.String("to", to.Account()),
		zap.String("amount", pair.Amount.String()),
		zap.String("fee", pair.FeeAmount.String()),
		zap.String("tx", tx.ID))
	return nil
}
