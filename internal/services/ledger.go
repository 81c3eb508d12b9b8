package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// AccountLedger holds one account's ordered transaction history and its
// live lot inventory. Lots live in an append-only arena kept sorted by
// acquisition time; partial disposals shrink a lot in place rather than
// splitting nodes, so lot identity is stable for the whole run.
type AccountLedger struct {
	account string
	records []*models.TransactionRecord
	lots    []*models.Lot
	lotSeq  int
}

// NewAccountLedger creates an empty ledger for account.
func NewAccountLedger(account string) *AccountLedger {
	return &AccountLedger{account: account}
}

// Account returns the owning account id.
func (l *AccountLedger) Account() string {
	return l.account
}

// Ingest validates and appends records, then re-sorts the history by
// timestamp with the original import order as the stable tiebreak.
// Any invalid record rejects the whole batch: the pipeline must not run
// on partially-invalid per-account data.
func (l *AccountLedger) Ingest(records []*models.TransactionRecord) error {
	var errs []error
	for _, rec := range records {
		if rec.Account != l.account {
			errs = append(errs, fmt.Errorf("record %s belongs to account %q, not %q", rec.ID, rec.Account, l.account))
			continue
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", rec.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("rejected %d record(s) for account %q: %w", len(errs), l.account, errors.Join(errs...))
	}

	l.records = append(l.records, records...)
	sort.SliceStable(l.records, func(i, j int) bool {
		a, b := l.records[i], l.records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ImportIndex < b.ImportIndex
	})
	return nil
}

// Records returns the ordered transaction history.
func (l *AccountLedger) Records() []*models.TransactionRecord {
	return l.records
}

// AddLot creates a new lot and inserts it into the inventory, keeping
// the arena sorted oldest acquisition first.
func (l *AccountLedger) AddLot(lot *models.Lot) *models.Lot {
	l.lotSeq++
	if lot.ID == "" {
		lot.ID = fmt.Sprintf("%s#%d", l.account, l.lotSeq)
	}
	lot.Account = l.account
	if lot.OriginalAmount.IsZero() {
		lot.OriginalAmount = lot.RemainingAmount
	}
	l.lots = append(l.lots, lot)
	sort.SliceStable(l.lots, func(i, j int) bool {
		return l.lots[i].AcquiredAt.Before(l.lots[j].AcquiredAt)
	})
	return lot
}

// Lots returns the live (non-exhausted) inventory, oldest first.
func (l *AccountLedger) Lots() []*models.Lot {
	live := make([]*models.Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		if !lot.Exhausted() {
			live = append(live, lot)
		}
	}
	return live
}

// TotalRemaining is the asset quantity currently held by the account.
func (l *AccountLedger) TotalRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		if !lot.Exhausted() {
			total = total.Add(lot.RemainingAmount)
		}
	}
	return total
}

// compact drops exhausted lots from the arena.
func (l *AccountLedger) compact() {
	kept := l.lots[:0]
	for _, lot := range l.lots {
		if !lot.Exhausted() {
			kept = append(kept, lot)
		}
	}
	l.lots = kept
}
