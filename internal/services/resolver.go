package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// DefaultOutcome is what a movement becomes when every prompt is
// answered with its default: deposits are income, withdrawals are sales
// at fair market value.
func DefaultOutcome(kind models.TransactionKind) models.Outcome {
	if kind == models.KindDeposit {
		return models.OutcomeIncome
	}
	return models.OutcomeSale
}

// DefaultsResolver accepts the default outcome and suggested value for
// every transaction. It backs the -y flag; answers are cached like
// interactive ones, so later interactive runs do not re-ask.
type DefaultsResolver struct{}

func (DefaultsResolver) Resolve(_ context.Context, rec *models.TransactionRecord, suggested decimal.Decimal) (*models.ClassificationDecision, error) {
	return &models.ClassificationDecision{
		Outcome:    DefaultOutcome(rec.Kind),
		FiatAmount: suggested,
		Note:       "accepted defaults",
	}, nil
}

// TerminalResolver prompts on the configured reader/writer, normally
// stdin/stdout. Entering "q" aborts the run; decisions already cached
// survive the abort.
type TerminalResolver struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

func (r *TerminalResolver) Resolve(_ context.Context, rec *models.TransactionRecord, suggested decimal.Decimal) (*models.ClassificationDecision, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.In)
	}

	verb := "sent"
	outcomes := models.WithdrawalOutcomes
	if rec.Kind == models.KindDeposit {
		verb = "received"
		outcomes = models.DepositOutcomes
	}
	fmt.Fprintf(r.Out, "\nOn %s account %q %s %s (~%s).\n",
		rec.Timestamp.Format("2006-01-02"), rec.Account, verb,
		rec.AssetAmount.Abs().String(), suggested.StringFixed(2))
	if rec.CounterpartyHint != "" {
		fmt.Fprintf(r.Out, "counterparty: %s\n", rec.CounterpartyHint)
	}

	outcome, err := r.askOutcome(outcomes, DefaultOutcome(rec.Kind))
	if err != nil {
		return nil, err
	}

	fiat := suggested
	if outcome != models.OutcomeNonTaxable {
		fiat, err = r.askValue(suggested)
		if err != nil {
			return nil, err
		}
	}

	var basisDate *time.Time
	if outcome == models.OutcomeBuy {
		basisDate, err = r.askBasisDate()
		if err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(r.Out, "Note (optional): ")
	note, err := r.readLine()
	if err != nil {
		return nil, err
	}

	return &models.ClassificationDecision{
		Outcome:    outcome,
		FiatAmount: fiat,
		BasisDate:  basisDate,
		Note:       note,
	}, nil
}

func (r *TerminalResolver) askOutcome(outcomes []models.Outcome, def models.Outcome) (models.Outcome, error) {
	labels := make([]string, len(outcomes))
	for i, o := range outcomes {
		labels[i] = string(o)
	}
	for {
		fmt.Fprintf(r.Out, "Classify as %s [%s] (q to quit): ", strings.Join(labels, ", "), def)
		line, err := r.readLine()
		if err != nil {
			return "", err
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			return def, nil
		}
		for _, o := range outcomes {
			if strings.HasPrefix(string(o), line) {
				return o, nil
			}
		}
		fmt.Fprintf(r.Out, "unrecognized answer %q\n", line)
	}
}

// askValue accepts either a plain fiat amount or "=<suggested>" via an
// empty answer.
func (r *TerminalResolver) askValue(suggested decimal.Decimal) (decimal.Decimal, error) {
	for {
		fmt.Fprintf(r.Out, "Fiat value [%s]: ", suggested.StringFixed(2))
		line, err := r.readLine()
		if err != nil {
			return decimal.Zero, err
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "$"))
		if line == "" {
			return suggested, nil
		}
		value, perr := decimal.NewFromString(line)
		if perr != nil || value.IsNegative() {
			fmt.Fprintf(r.Out, "enter a non-negative amount\n")
			continue
		}
		return value, nil
	}
}

// askBasisDate reads the original purchase date for a relocated buy.
// An empty answer keeps the deposit's own date.
func (r *TerminalResolver) askBasisDate() (*time.Time, error) {
	for {
		fmt.Fprintf(r.Out, "Original purchase date [YYYY-MM-DD, empty = deposit date]: ")
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return nil, nil
		}
		day, perr := time.Parse("2006-01-02", line)
		if perr != nil {
			fmt.Fprintf(r.Out, "enter a date as YYYY-MM-DD\n")
			continue
		}
		return &day, nil
	}
}

func (r *TerminalResolver) readLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrResolverAborted
	}
	line := strings.TrimSpace(r.scanner.Text())
	if strings.EqualFold(line, "q") || strings.EqualFold(line, "quit") {
		return "", ErrResolverAborted
	}
	return line, nil
}
