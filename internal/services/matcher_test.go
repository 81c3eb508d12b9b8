package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vhqtran/coingains/internal/errors"
	"github.com/vhqtran/coingains/internal/models"
)

func seededLedger(t *testing.T, account string) *AccountLedger {
	t.Helper()
	ledger := NewAccountLedger(account)
	ledger.AddLot(&models.Lot{ID: "l1", AcquiredAt: day(1), RemainingAmount: dec("1"), UnitCostBasis: dec("100")})
	ledger.AddLot(&models.Lot{ID: "l2", AcquiredAt: day(2), RemainingAmount: dec("2"), UnitCostBasis: dec("200")})
	ledger.AddLot(&models.Lot{ID: "l3", AcquiredAt: day(3), RemainingAmount: dec("3"), UnitCostBasis: dec("300")})
	return ledger
}

func TestDisposeFIFOConsumesOldestFirst(t *testing.T) {
	ledger := seededLedger(t, "coinbase")
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	tx := rec("sell-1", "coinbase", day(10), models.KindSell, "-2.5")
	ev, err := matcher.Dispose(ledger, tx, dec("2.5"), dec("1000"), day(10), nil)
	require.NoError(t, err)

	require.Len(t, ev.MatchedLots, 2)
	assert.Equal(t, "l1", ev.MatchedLots[0].LotID)
	assert.True(t, ev.MatchedLots[0].AmountConsumed.Equal(dec("1")))
	assert.Equal(t, "l2", ev.MatchedLots[1].LotID)
	assert.True(t, ev.MatchedLots[1].AmountConsumed.Equal(dec("1.5")))

	// basis = 1*100 + 1.5*200
	assert.True(t, ev.Basis.Equal(dec("400")))
	assert.True(t, ev.Gain.Equal(dec("600")))

	lots := ledger.Lots()
	require.Len(t, lots, 2)
	assert.Equal(t, "l2", lots[0].ID)
	assert.True(t, lots[0].RemainingAmount.Equal(dec("0.5")))
	assert.True(t, ledger.TotalRemaining().Equal(dec("3.5")))
}

func TestDisposeLowestCostConsumesCheapestFirst(t *testing.T) {
	ledger := NewAccountLedger("coinbase")
	ledger.AddLot(&models.Lot{ID: "mid", AcquiredAt: day(1), RemainingAmount: dec("1"), UnitCostBasis: dec("100")})
	ledger.AddLot(&models.Lot{ID: "cheap", AcquiredAt: day(2), RemainingAmount: dec("2"), UnitCostBasis: dec("50")})
	ledger.AddLot(&models.Lot{ID: "dear", AcquiredAt: day(3), RemainingAmount: dec("1"), UnitCostBasis: dec("200")})
	matcher := NewLotMatcher(PolicyLowestCost, 1, nil)

	tx := rec("sell-1", "coinbase", day(10), models.KindSell, "-3")
	ev, err := matcher.Dispose(ledger, tx, dec("3"), dec("600"), day(10), nil)
	require.NoError(t, err)

	require.Len(t, ev.MatchedLots, 2)
	assert.Equal(t, "cheap", ev.MatchedLots[0].LotID)
	assert.True(t, ev.MatchedLots[0].AmountConsumed.Equal(dec("2")))
	assert.Equal(t, "mid", ev.MatchedLots[1].LotID)
	assert.True(t, ev.MatchedLots[1].AmountConsumed.Equal(dec("1")))

	// basis = 2*50 + 1*100
	assert.True(t, ev.Basis.Equal(dec("200")))
	assert.True(t, ev.Gain.Equal(dec("400")))

	lots := ledger.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, "dear", lots[0].ID)
}

func TestDisposeAllocatesProceedsProRata(t *testing.T) {
	ledger := seededLedger(t, "coinbase")
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	tx := rec("sell-1", "coinbase", day(10), models.KindSell, "-2")
	ev, err := matcher.Dispose(ledger, tx, dec("2"), dec("900"), day(10), nil)
	require.NoError(t, err)

	total := decimal.Zero
	for _, ml := range ev.MatchedLots {
		total = total.Add(ml.ProceedsPortion)
	}
	assert.True(t, total.Equal(ev.Proceeds))
	assert.True(t, ev.MatchedLots[0].ProceedsPortion.Equal(dec("450")))
}

func TestDisposeInsufficientLots(t *testing.T) {
	ledger := seededLedger(t, "coinbase")
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	tx := rec("sell-1", "coinbase", day(10), models.KindSell, "-100")
	_, err := matcher.Dispose(ledger, tx, dec("100"), dec("1"), day(10), nil)
	require.Error(t, err)

	var insufficient *apperrors.ErrInsufficientLots
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "sell-1", insufficient.TransactionID)
	assert.True(t, insufficient.Available.Equal(dec("6")))
	// A failed disposal must not consume anything.
	assert.True(t, ledger.TotalRemaining().Equal(dec("6")))
}

func TestIsLongTermBoundary(t *testing.T) {
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)
	acquired := time.Date(2022, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		disposed time.Time
		want     bool
	}{
		{time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), false},
		// Exactly one calendar year: still short term.
		{time.Date(2023, 1, 15, 10, 0, 0, 0, time.UTC), false},
		// One day past the anniversary: long term.
		{time.Date(2023, 1, 16, 10, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matcher.IsLongTerm(acquired, tt.disposed), "disposed %s", tt.disposed)
	}
}

func TestDisposeSplitsTermsPerLot(t *testing.T) {
	ledger := NewAccountLedger("coinbase")
	old := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2022, 12, 20, 0, 0, 0, 0, time.UTC)
	ledger.AddLot(&models.Lot{ID: "old", AcquiredAt: old, RemainingAmount: dec("1"), UnitCostBasis: dec("100")})
	ledger.AddLot(&models.Lot{ID: "recent", AcquiredAt: recent, RemainingAmount: dec("1"), UnitCostBasis: dec("100")})
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	tx := rec("sell-1", "coinbase", day(10), models.KindSell, "-2")
	ev, err := matcher.Dispose(ledger, tx, dec("2"), dec("400"), day(10), nil)
	require.NoError(t, err)

	require.Len(t, ev.MatchedLots, 2)
	assert.Equal(t, models.TermLong, ev.MatchedLots[0].Term)
	assert.Equal(t, models.TermShort, ev.MatchedLots[1].Term)
}

func TestConsumeQuietBurnsWithoutEvent(t *testing.T) {
	ledger := seededLedger(t, "coinbase")
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	tx := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1.5")
	require.NoError(t, matcher.ConsumeQuiet(ledger, tx, dec("1.5"), nil))
	assert.True(t, ledger.TotalRemaining().Equal(dec("4.5")))

	err := matcher.ConsumeQuiet(ledger, tx, dec("100"), nil)
	var insufficient *apperrors.ErrInsufficientLots
	require.ErrorAs(t, err, &insufficient)
}

func TestTransferPreservesBasisAndBurnsFee(t *testing.T) {
	from := NewAccountLedger("coinbase")
	from.AddLot(&models.Lot{ID: "l1", AcquiredAt: day(1), RemainingAmount: dec("1"), UnitCostBasis: dec("100")})
	from.AddLot(&models.Lot{ID: "l2", AcquiredAt: day(2), RemainingAmount: dec("2"), UnitCostBasis: dec("200")})
	to := NewAccountLedger("ledger-wallet")
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	pair := &models.TransferPair{
		WithdrawalID: "w-1",
		DepositID:    "d-1",
		FromAccount:  "coinbase",
		ToAccount:    "ledger-wallet",
		Amount:       dec("1.999"),
		FeeAmount:    dec("0.001"),
	}
	tx := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-2")
	require.NoError(t, matcher.Transfer(from, to, pair, tx))

	assert.True(t, from.TotalRemaining().Equal(dec("1")))
	assert.True(t, to.TotalRemaining().Equal(dec("1.999")))

	moved := to.Lots()
	require.Len(t, moved, 2)
	// Fee came out of the first lot consumed; acquisition dates and unit
	// basis survive the move.
	assert.True(t, moved[0].AcquiredAt.Equal(day(1)))
	assert.True(t, moved[0].RemainingAmount.Equal(dec("0.999")))
	assert.True(t, moved[0].UnitCostBasis.Equal(dec("100")))
	assert.True(t, moved[1].AcquiredAt.Equal(day(2)))
	assert.True(t, moved[1].RemainingAmount.Equal(dec("1")))
	assert.True(t, moved[1].UnitCostBasis.Equal(dec("200")))
}

func TestTransferInsufficientLots(t *testing.T) {
	from := NewAccountLedger("coinbase")
	from.AddLot(&models.Lot{AcquiredAt: day(1), RemainingAmount: dec("1"), UnitCostBasis: dec("100")})
	to := NewAccountLedger("kraken")
	matcher := NewLotMatcher(PolicyFIFO, 1, nil)

	pair := &models.TransferPair{WithdrawalID: "w-1", Amount: dec("5"), FeeAmount: dec("0.01")}
	tx := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-5.01")
	err := matcher.Transfer(from, to, pair, tx)

	var insufficient *apperrors.ErrInsufficientLots
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, from.TotalRemaining().Equal(dec("1")))
	assert.Empty(t, to.Lots())
}
