package services

import (
	"sort"
	"time"

	"github.com/vhqtran/coingains/internal/models"
)

// GainsAggregator rolls disposal and income events into calendar-month,
// calendar-year and all-time buckets. It performs no I/O; Snapshot
// exposes a deterministic read-only view for renderers.
type GainsAggregator struct {
	months  map[string]*models.PeriodTotals
	years   map[string]*models.PeriodTotals
	allTime models.PeriodTotals
}

// NewGainsAggregator creates an empty aggregator.
func NewGainsAggregator() *GainsAggregator {
	return &GainsAggregator{
		months: make(map[string]*models.PeriodTotals),
		years:  make(map[string]*models.PeriodTotals),
	}
}

func (a *GainsAggregator) buckets(at time.Time) []*models.PeriodTotals {
	month := at.UTC().Format("2006-01")
	year := at.UTC().Format("2006")
	if a.months[month] == nil {
		a.months[month] = &models.PeriodTotals{}
	}
	if a.years[year] == nil {
		a.years[year] = &models.PeriodTotals{}
	}
	return []*models.PeriodTotals{a.months[month], a.years[year], &a.allTime}
}

// AddDisposal buckets each matched lot by its own holding-period term.
// Long-term lots of a gift disposal land in the exempt bucket instead of
// taxable long-term gains.
func (a *GainsAggregator) AddDisposal(ev *models.DisposalEvent) {
	for _, b := range a.buckets(ev.DisposedAt) {
		b.DisposalCount++
		b.Proceeds = b.Proceeds.Add(ev.Proceeds)
		b.CostBasis = b.CostBasis.Add(ev.Basis)
		for _, ml := range ev.MatchedLots {
			gain := ml.ProceedsPortion.Sub(ml.BasisConsumed)
			switch {
			case ev.Exempt && ml.Term == models.TermLong:
				b.ExemptGain = b.ExemptGain.Add(gain)
			case ml.Term == models.TermLong:
				b.LongTermGain = b.LongTermGain.Add(gain)
			default:
				b.ShortTermGain = b.ShortTermGain.Add(gain)
			}
		}
	}
}

// AddIncome records a classified income or expense amount.
func (a *GainsAggregator) AddIncome(ev *models.IncomeEvent) {
	for _, b := range a.buckets(ev.Date) {
		if ev.Expense {
			b.Expense = b.Expense.Add(ev.Amount)
			b.ExpenseCount++
		} else {
			b.Income = b.Income.Add(ev.Amount)
			b.IncomeCount++
		}
	}
}

// Snapshot returns the bucketed totals with rows sorted by key, so two
// runs over identical inputs serialize identically.
func (a *GainsAggregator) Snapshot() *models.Snapshot {
	return &models.Snapshot{
		Months:  sortedRows(a.months),
		Years:   sortedRows(a.years),
		AllTime: a.allTime,
	}
}

func sortedRows(buckets map[string]*models.PeriodTotals) []models.PeriodRow {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]models.PeriodRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, models.PeriodRow{Key: k, Totals: *buckets[k]})
	}
	return rows
}
