package services

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/vhqtran/coingains/internal/errors"
	"github.com/vhqtran/coingains/internal/models"
)

// TransferDetector pairs withdrawals with the deposits that represent
// the same coins arriving in another of the user's accounts. A record
// participates in at most one pair; legs are consumed from the pool as
// soon as a pair forms.
type TransferDetector struct {
	window    time.Duration
	tolerance decimal.Decimal
	logger    *zap.Logger
}

// NewTransferDetector creates a detector. tolerance is the relative
// amount difference allowed between the fee-adjusted withdrawal and the
// deposit (e.g. 0.005 for 0.5%).
func NewTransferDetector(window time.Duration, tolerance decimal.Decimal, logger *zap.Logger) *TransferDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferDetector{window: window, tolerance: tolerance, logger: logger}
}

// Detect scans the merged record set and returns the transfer pairs plus
// the withdrawals whose match was ambiguous. Ambiguous withdrawals are
// NOT paired; they fall through to classification along with their
// candidate deposit ids.
func (d *TransferDetector) Detect(records []*models.TransactionRecord) ([]*models.TransferPair, []*apperrors.ErrAmbiguousTransfer) {
	var withdrawals []*models.TransactionRecord
	var deposits []*models.TransactionRecord
	for _, rec := range records {
		switch rec.Kind {
		case models.KindWithdrawal:
			withdrawals = append(withdrawals, rec)
		case models.KindDeposit:
			deposits = append(deposits, rec)
		}
	}
	sortRecords(withdrawals)
	sortRecords(deposits)

	var pairs []*models.TransferPair
	var ambiguous []*apperrors.ErrAmbiguousTransfer
	paired := make(map[string]bool)

	// Pass 1: amount matching within the window.
	for _, w := range withdrawals {
		candidates := d.amountCandidates(w, deposits, paired)
		if len(candidates) == 0 {
			continue
		}
		best := d.pickCandidate(w, candidates)
		if best == nil {
			ids := make([]string, len(candidates))
			for i, c := range candidates {
				ids[i] = c.ID
			}
			ambiguous = append(ambiguous, &apperrors.ErrAmbiguousTransfer{WithdrawalID: w.ID, CandidateIDs: ids})
			d.logger.Warn("ambiguous transfer match deferred to classification",
				zap.String("withdrawal", w.ID), zap.Strings("candidates", ids))
			continue
		}
		pairs = append(pairs, d.makePair(w, best, "amount"))
		paired[w.ID] = true
		paired[best.ID] = true
	}

	// Pass 2: on-chain txid matching for what amount matching missed.
	// The quantity difference between the legs is the network fee.
	byHash := make(map[string][]*models.TransactionRecord)
	for _, dep := range deposits {
		if dep.TxHash != "" && !paired[dep.ID] {
			byHash[dep.TxHash] = append(byHash[dep.TxHash], dep)
		}
	}
	for _, w := range withdrawals {
		if paired[w.ID] || w.TxHash == "" {
			continue
		}
		matches := byHash[w.TxHash]
		live := make([]*models.TransactionRecord, 0, len(matches))
		for _, dep := range matches {
			if !paired[dep.ID] && dep.Account != w.Account && !dep.Timestamp.Before(w.Timestamp) {
				live = append(live, dep)
			}
		}
		if len(live) == 1 {
			pairs = append(pairs, d.makePair(w, live[0], "txid"))
			paired[w.ID] = true
			paired[live[0].ID] = true
		} else if len(live) > 1 {
			ids := make([]string, len(live))
			for i, c := range live {
				ids[i] = c.ID
			}
			ambiguous = append(ambiguous, &apperrors.ErrAmbiguousTransfer{WithdrawalID: w.ID, CandidateIDs: ids})
		}
	}

	for _, p := range pairs {
		d.logger.Info("detected transfer",
			zap.String("from", p.FromAccount),
			zap.String("to", p.ToAccount),
			zap.String("amount", p.Amount.String()),
			zap.String("matched_by", p.MatchedBy))
	}
	return pairs, ambiguous
}

// amountCandidates returns unconsumed deposits in other accounts whose
// net amount matches the withdrawal within tolerance, arriving at or
// after the withdrawal and inside the window.
func (d *TransferDetector) amountCandidates(w *models.TransactionRecord, deposits []*models.TransactionRecord, paired map[string]bool) []*models.TransactionRecord {
	want := w.NetAssetAmount()
	if !want.IsPositive() {
		return nil
	}
	limit := want.Mul(d.tolerance)
	var out []*models.TransactionRecord
	for _, dep := range deposits {
		if paired[dep.ID] || dep.Account == w.Account {
			continue
		}
		if dep.Timestamp.Before(w.Timestamp) {
			continue
		}
		if dep.Timestamp.Sub(w.Timestamp) > d.window {
			continue
		}
		if dep.AssetAmount.Sub(want).Abs().GreaterThan(limit) {
			continue
		}
		out = append(out, dep)
	}
	return out
}

// pickCandidate prefers the earliest qualifying deposit; equal
// timestamps are broken by a counterparty hint referencing the
// withdrawing account. An exact tie is returned as nil to defer the
// decision instead of guessing.
func (d *TransferDetector) pickCandidate(w *models.TransactionRecord, candidates []*models.TransactionRecord) *models.TransactionRecord {
	if len(candidates) == 1 {
		return candidates[0]
	}
	earliest := candidates[0].Timestamp
	var tied []*models.TransactionRecord
	for _, c := range candidates {
		if c.Timestamp.Before(earliest) {
			earliest = c.Timestamp
		}
	}
	for _, c := range candidates {
		if c.Timestamp.Equal(earliest) {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}
	var hinted []*models.TransactionRecord
	for _, c := range tied {
		if hintReferences(c, w) {
			hinted = append(hinted, c)
		}
	}
	if len(hinted) == 1 {
		return hinted[0]
	}
	return nil
}

// makePair builds the pair. The fee is the total quantity lost in
// transit: the withdrawal's reported amount plus its explicit network
// fee (charged on top, as importers emit it), minus what arrived.
func (d *TransferDetector) makePair(w, dep *models.TransactionRecord, matchedBy string) *models.TransferPair {
	fee := w.AssetAmount.Abs().Add(w.FeeAsset).Sub(dep.AssetAmount)
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	return &models.TransferPair{
		WithdrawalID: w.ID,
		DepositID:    dep.ID,
		FromAccount:  w.Account,
		ToAccount:    dep.Account,
		Amount:       dep.AssetAmount,
		FeeAmount:    fee,
		MatchedBy:    matchedBy,
	}
}

// hintReferences reports whether either leg's counterparty hint names
// the other leg's account.
func hintReferences(dep, w *models.TransactionRecord) bool {
	depHint := strings.ToLower(dep.CounterpartyHint)
	wHint := strings.ToLower(w.CounterpartyHint)
	return (depHint != "" && strings.Contains(depHint, strings.ToLower(w.Account))) ||
		(wHint != "" && strings.Contains(wHint, strings.ToLower(dep.Account)))
}

// sortRecords orders records deterministically: timestamp, then import
// order, then id.
func sortRecords(records []*models.TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.ImportIndex != b.ImportIndex {
			return a.ImportIndex < b.ImportIndex
		}
		return a.ID < b.ID
	})
}
