package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhqtran/coingains/internal/models"
)

func newDetector() *TransferDetector {
	return NewTransferDetector(72*time.Hour, dec("0.005"), nil)
}

func TestDetectPairsWithdrawalWithLaterDeposit(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	d := rec("d-1", "ledger-wallet", day(11), models.KindDeposit, "0.999")

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, d})
	require.Empty(t, ambiguous)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, "w-1", p.WithdrawalID)
	assert.Equal(t, "d-1", p.DepositID)
	assert.Equal(t, "coinbase", p.FromAccount)
	assert.Equal(t, "ledger-wallet", p.ToAccount)
	assert.True(t, p.Amount.Equal(dec("0.999")))
	assert.True(t, p.FeeAmount.Equal(dec("0.001")))
	assert.Equal(t, "amount", p.MatchedBy)
}

func TestDetectPairFeeIncludesExplicitAssetFee(t *testing.T) {
	// Exchange withdrawals report the fee on top of the amount, the way
	// the Kraken and bitcoind importers emit it. The pair fee must carry
	// that fee so the source account burns the full abs+fee quantity.
	w := rec("w-1", "kraken", day(10), models.KindWithdrawal, "-1")
	w.FeeAsset = dec("0.001")
	d := rec("d-1", "ledger-wallet", day(11), models.KindDeposit, "1")

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, d})
	require.Empty(t, ambiguous)
	require.Len(t, pairs, 1)
	assert.True(t, pairs[0].Amount.Equal(dec("1")))
	assert.True(t, pairs[0].FeeAmount.Equal(dec("0.001")))

	// A short deposit adds the on-chain loss to the explicit fee.
	w2 := rec("w-2", "kraken", day(10), models.KindWithdrawal, "-1")
	w2.FeeAsset = dec("0.001")
	d2 := rec("d-2", "ledger-wallet", day(11), models.KindDeposit, "0.999")

	pairs, _ = newDetector().Detect([]*models.TransactionRecord{w2, d2})
	require.Len(t, pairs, 1)
	assert.True(t, pairs[0].FeeAmount.Equal(dec("0.002")))
}

func TestDetectRejectsDepositOutsideWindow(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	d := rec("d-1", "kraken", day(14), models.KindDeposit, "1")

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, d})
	assert.Empty(t, pairs)
	assert.Empty(t, ambiguous)
}

func TestDetectRejectsDepositBeforeWithdrawal(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	d := rec("d-1", "kraken", day(9), models.KindDeposit, "1")

	pairs, _ := newDetector().Detect([]*models.TransactionRecord{w, d})
	assert.Empty(t, pairs)
}

func TestDetectRejectsSameAccountAndBeyondTolerance(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	same := rec("d-1", "coinbase", day(10), models.KindDeposit, "1")
	far := rec("d-2", "kraken", day(10), models.KindDeposit, "0.9")

	pairs, _ := newDetector().Detect([]*models.TransactionRecord{w, same, far})
	assert.Empty(t, pairs)
}

func TestDetectEachLegPairsAtMostOnce(t *testing.T) {
	w1 := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	w2 := rec("w-2", "coinbase", day(10), models.KindWithdrawal, "-1")
	w2.ImportIndex = 1
	d := rec("d-1", "kraken", day(11), models.KindDeposit, "1")

	pairs, _ := newDetector().Detect([]*models.TransactionRecord{w1, w2, d})
	require.Len(t, pairs, 1)
	assert.Equal(t, "w-1", pairs[0].WithdrawalID, "earlier withdrawal claims the deposit")
}

func TestDetectPrefersEarliestDeposit(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	late := rec("d-late", "kraken", day(12), models.KindDeposit, "1")
	early := rec("d-early", "ledger-wallet", day(11), models.KindDeposit, "1")

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, late, early})
	require.Empty(t, ambiguous)
	require.Len(t, pairs, 1)
	assert.Equal(t, "d-early", pairs[0].DepositID)
}

func TestDetectBreaksTimestampTieWithHint(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	plain := rec("d-1", "kraken", day(11), models.KindDeposit, "1")
	hinted := rec("d-2", "ledger-wallet", day(11), models.KindDeposit, "1")
	hinted.CounterpartyHint = "from coinbase hot wallet"

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, plain, hinted})
	require.Empty(t, ambiguous)
	require.Len(t, pairs, 1)
	assert.Equal(t, "d-2", pairs[0].DepositID)
}

func TestDetectDefersExactTieAsAmbiguous(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	d1 := rec("d-1", "kraken", day(11), models.KindDeposit, "1")
	d2 := rec("d-2", "ledger-wallet", day(11), models.KindDeposit, "1")

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, d1, d2})
	assert.Empty(t, pairs, "an exact tie is never guessed")
	require.Len(t, ambiguous, 1)
	assert.Equal(t, "w-1", ambiguous[0].WithdrawalID)
	assert.ElementsMatch(t, []string{"d-1", "d-2"}, ambiguous[0].CandidateIDs)
}

func TestDetectMatchesByTxHash(t *testing.T) {
	// Amount difference beyond tolerance, but the same on-chain txid on
	// both legs; the difference is the network fee.
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	w.TxHash = "abc123"
	d := rec("d-1", "ledger-wallet", day(11), models.KindDeposit, "0.98")
	d.TxHash = "abc123"

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w, d})
	require.Empty(t, ambiguous)
	require.Len(t, pairs, 1)
	assert.Equal(t, "txid", pairs[0].MatchedBy)
	assert.True(t, pairs[0].Amount.Equal(dec("0.98")))
	assert.True(t, pairs[0].FeeAmount.Equal(dec("0.02")))
}

func TestDetectPairsSplitSendsSharingOneTxHash(t *testing.T) {
	// A single on-chain send can fan out to several outputs, so multiple
	// withdrawals and deposits legitimately share one txid. Each leg must
	// still pair with the deposit that remains eligible for it.
	w1 := rec("w-1", "alpha", day(10), models.KindWithdrawal, "-1")
	w1.TxHash = "fan42"
	w2 := rec("w-2", "bravo", day(10), models.KindWithdrawal, "-1")
	w2.TxHash = "fan42"
	w2.ImportIndex = 1
	d1 := rec("d-1", "alpha", day(11), models.KindDeposit, "0.9")
	d1.TxHash = "fan42"
	d2 := rec("d-2", "charlie", day(12), models.KindDeposit, "0.9")
	d2.TxHash = "fan42"

	pairs, ambiguous := newDetector().Detect([]*models.TransactionRecord{w1, w2, d1, d2})
	require.Empty(t, ambiguous)
	require.Len(t, pairs, 2)
	assert.Equal(t, "d-2", pairs[0].DepositID, "w-1 cannot receive into its own account")
	assert.Equal(t, "d-1", pairs[1].DepositID)
}

func TestDetectIsDeterministicAcrossInputOrder(t *testing.T) {
	w := rec("w-1", "coinbase", day(10), models.KindWithdrawal, "-1")
	d1 := rec("d-1", "kraken", day(11), models.KindDeposit, "1")
	d2 := rec("d-2", "ledger-wallet", day(12), models.KindDeposit, "1")

	a, _ := newDetector().Detect([]*models.TransactionRecord{w, d1, d2})
	b, _ := newDetector().Detect([]*models.TransactionRecord{d2, w, d1})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].DepositID, b[0].DepositID)
}
