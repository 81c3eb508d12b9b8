package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// Renderer writes an engine run as plain-text tables. With detail set it
// also lists every disposal with its matched lots and every detected
// transfer.
type Renderer struct {
	w      io.Writer
	detail bool
}

// NewRenderer creates a renderer targeting w.
func NewRenderer(w io.Writer, detail bool) *Renderer {
	return &Renderer{w: w, detail: detail}
}

// Render writes the full report: monthly and annual gain tables, the
// all-time summary, remaining inventories, and optionally the per-event
// detail.
func (r *Renderer) Render(result *models.RunResult) error {
	if err := r.periodTable("Monthly", result.Snapshot.Months); err != nil {
		return err
	}
	if err := r.periodTable("Annual", result.Snapshot.Years); err != nil {
		return err
	}
	r.allTime(result.Snapshot.AllTime)

	if r.detail {
		r.disposals(result.Disposals)
		r.transfers(result.Transfers)
	}
	return r.inventories(result.Inventories)
}

func (r *Renderer) periodTable(title string, rows []models.PeriodRow) error {
	if len(rows) == 0 {
		return nil
	}
	fmt.Fprintf(r.w, "\n%s\n", title)
	tw := tabwriter.NewWriter(r.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "period\tshort term\tlong term\texempt\tincome\texpense\tproceeds\tbasis\t")
	for _, row := range rows {
		t := row.Totals
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Key,
			money(t.ShortTermGain), money(t.LongTermGain), money(t.ExemptGain),
			money(t.Income), money(t.Expense),
			money(t.Proceeds), money(t.CostBasis))
	}
	return tw.Flush()
}

func (r *Renderer) allTime(t models.PeriodTotals) {
	fmt.Fprintf(r.w, "\nAll time: total gain %s (short %s, long %s, exempt %s), income %s, expense %s over %d disposal(s)\n",
		money(t.TotalGain()), money(t.ShortTermGain), money(t.LongTermGain), money(t.ExemptGain),
		money(t.Income), money(t.Expense), t.DisposalCount)
}

func (r *Renderer) disposals(events []*models.DisposalEvent) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(r.w, "\nDisposals\n")
	for _, ev := range events {
		flag := ""
		if ev.Exempt {
			flag = " (gift)"
		}
		fmt.Fprintf(r.w, "%s %s disposed %s for %s, basis %s, gain %s%s\n",
			ev.DisposedAt.Format("2006-01-02"), ev.Account,
			ev.DisposedAmount.String(), money(ev.Proceeds), money(ev.Basis), money(ev.Gain), flag)
		for _, ml := range ev.MatchedLots {
			fmt.Fprintf(r.w, "    lot %s acquired %s: %s consumed, basis %s, %s term\n",
				ml.LotID, ml.AcquiredAt.Format("2006-01-02"),
				ml.AmountConsumed.String(), money(ml.BasisConsumed), ml.Term)
		}
	}
}

func (r *Renderer) transfers(pairs []*models.TransferPair) {
	if len(pairs) == 0 {
		return
	}
	fmt.Fprintf(r.w, "\nTransfers\n")
	for _, p := range pairs {
		fmt.Fprintf(r.w, "%s -> %s: %s (fee %s, matched by %s)\n",
			p.FromAccount, p.ToAccount, p.Amount.String(), p.FeeAmount.String(), p.MatchedBy)
	}
}

// inventories lists every account's remaining lots with a quantity and
// basis subtotal per account.
func (r *Renderer) inventories(inventories map[string][]*models.Lot) error {
	accounts := make([]string, 0, len(inventories))
	for account := range inventories {
		if len(inventories[account]) > 0 {
			accounts = append(accounts, account)
		}
	}
	sort.Strings(accounts)
	if len(accounts) == 0 {
		return nil
	}

	fmt.Fprintf(r.w, "\nRemaining lots\n")
	tw := tabwriter.NewWriter(r.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, account := range accounts {
		quantity := decimal.Zero
		basis := decimal.Zero
		for _, lot := range inventories[account] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t@ %s\t= %s\t\n",
				account, lot.AcquiredAt.Format("2006-01-02"),
				lot.RemainingAmount.String(), money(lot.UnitCostBasis), money(lot.RemainingBasis()))
			quantity = quantity.Add(lot.RemainingAmount)
			basis = basis.Add(lot.RemainingBasis())
		}
		fmt.Fprintf(tw, "%s subtotal\t\t%s\t\t= %s\t\n", account, quantity.String(), money(basis))
	}
	return tw.Flush()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
