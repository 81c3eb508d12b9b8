package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vhqtran/coingains/internal/config"
	"github.com/vhqtran/coingains/internal/models"
	"github.com/vhqtran/coingains/internal/repositories"
)

// Engine is the reconciliation pipeline: merged records in, aggregator
// snapshot and remaining inventories out. It is single-threaded and
// deterministic; the only blocking point is the resolver, and cached
// decisions make re-runs restart-idempotent.
type Engine struct {
	cfg        *config.Config
	policy     Policy
	matcher    *LotMatcher
	detector   *TransferDetector
	classifier *Classifier
	logger     *zap.Logger
}

// NewEngine wires the pipeline from configuration. resolver may be nil
// when cfg.NonInteractive is set without accept-defaults.
func NewEngine(cfg *config.Config, store repositories.DecisionRepository, resolver Resolver, prices PriceProvider, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if cfg.NonInteractive {
		if cfg.AcceptDefaults {
			resolver = DefaultsResolver{}
		} else {
			resolver = nil
		}
	}
	return &Engine{
		cfg:        cfg,
		policy:     policy,
		matcher:    NewLotMatcher(policy, cfg.LongTermYears, logger),
		detector:   NewTransferDetector(cfg.TransferWindow(), cfg.Tolerance(), logger),
		classifier: NewClassifier(store, resolver, prices, cfg.Asset, logger),
		logger:     logger,
	}, nil
}

// Run executes one full pass: ingest per account, detect transfers
// across accounts, classify what remains, then match lots per account in
// merged timeline order. Transfer pairing completes before any lot is
// consumed, because an unpaired withdrawal's classification decides
// whether it becomes a disposal at all.
func (e *Engine) Run(ctx context.Context, records []*models.TransactionRecord) (*models.RunResult, error) {
	ledgers, err := e.ingest(records)
	if err != nil {
		return nil, err
	}

	merged := make([]*models.TransactionRecord, len(records))
	copy(merged, records)
	sortRecords(merged)

	pairs, ambiguous := e.detector.Detect(merged)
	for _, amb := range ambiguous {
		e.logger.Warn("transfer left unpaired", zap.String("reason", amb.Error()))
	}
	pairByWithdrawal := make(map[string]*models.TransferPair, len(pairs))
	pairedDeposit := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		pairByWithdrawal[p.WithdrawalID] = p
		pairedDeposit[p.DepositID] = true
	}

	// Classification pre-pass: resolve every external movement before
	// touching inventories, so a mid-run abort never leaves lots half
	// consumed.
	decisions := make(map[string]*models.ClassificationDecision)
	for _, rec := range merged {
		if rec.Kind != models.KindDeposit && rec.Kind != models.KindWithdrawal {
			continue
		}
		if pairByWithdrawal[rec.ID] != nil || pairedDeposit[rec.ID] {
			continue
		}
		decision, err := e.classifier.Classify(ctx, rec)
		if err != nil {
			return nil, err
		}
		decisions[rec.ID] = decision
	}

	result := &models.RunResult{}
	aggregator := NewGainsAggregator()
	result.Transfers = pairs

	for _, rec := range merged {
		ledger := ledgers[rec.Account]
		switch rec.Kind {
		case models.KindBuy:
			e.acquire(ledger, rec)

		case models.KindSell:
			proceeds := decimal.Zero
			if rec.FiatAmount != nil {
				proceeds = *rec.FiatAmount
			}
			proceeds = proceeds.Sub(rec.FeeFiat)
			amount := rec.AssetAmount.Abs().Add(rec.FeeAsset)
			ev, err := e.matcher.Dispose(ledger, rec, amount, proceeds, rec.Timestamp, nil)
			if err != nil {
				return nil, err
			}
			aggregator.AddDisposal(ev)
			result.Disposals = append(result.Disposals, ev)

		case models.KindDeposit:
			if pairedDeposit[rec.ID] {
				continue // handled with the withdrawal leg
			}
			if err := e.applyDepositDecision(ledger, rec, decisions[rec.ID], aggregator, result); err != nil {
				return nil, err
			}

		case models.KindWithdrawal:
			if pair := pairByWithdrawal[rec.ID]; pair != nil {
				if err := e.matcher.Transfer(ledger, ledgers[pair.ToAccount], pair, rec); err != nil {
					return nil, err
				}
				continue
			}
			if err := e.applyWithdrawalDecision(ledger, rec, decisions[rec.ID], aggregator, result); err != nil {
				return nil, err
			}
		}
	}

	result.Snapshot = aggregator.Snapshot()
	result.Inventories = make(map[string][]*models.Lot, len(ledgers))
	for account, ledger := range ledgers {
		result.Inventories[account] = ledger.Lots()
	}
	e.logger.Info("run complete",
		zap.Int("records", len(merged)),
		zap.Int("transfers", len(pairs)),
		zap.Int("disposals", len(result.Disposals)))
	return result, nil
}

// ingest groups records into per-account ledgers, rejecting any account
// whose batch contains malformed records.
func (e *Engine) ingest(records []*models.TransactionRecord) (map[string]*AccountLedger, error) {
	byAccount := make(map[string][]*models.TransactionRecord)
	for _, rec := range records {
		byAccount[rec.Account] = append(byAccount[rec.Account], rec)
	}
	accounts := make([]string, 0, len(byAccount))
	for account := range byAccount {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	ledgers := make(map[string]*AccountLedger, len(accounts))
	for _, account := range accounts {
		ledger := NewAccountLedger(account)
		if err := ledger.Ingest(byAccount[account]); err != nil {
			return nil, err
		}
		ledgers[account] = ledger
	}
	return ledgers, nil
}

// acquire creates a lot from a buy. Fiat fees fold into the basis.
func (e *Engine) acquire(ledger *AccountLedger, rec *models.TransactionRecord) {
	amount := rec.AssetAmount
	cost := decimal.Zero
	if rec.FiatAmount != nil {
		cost = rec.FiatAmount.Add(rec.FeeFiat)
	}
	unitCost := decimal.Zero
	if amount.IsPositive() {
		unitCost = cost.Div(amount)
	}
	ledger.AddLot(&models.Lot{
		AcquiredAt:      rec.Timestamp,
		RemainingAmount: amount,
		UnitCostBasis:   unitCost,
		SourceTxID:      rec.ID,
	})
}

func (e *Engine) applyDepositDecision(ledger *AccountLedger, rec *models.TransactionRecord, decision *models.ClassificationDecision, aggregator *GainsAggregator, result *models.RunResult) error {
	if decision == nil {
		return fmt.Errorf("deposit %s reached matching without a classification", rec.ID)
	}
	switch decision.Outcome {
	case models.OutcomeIncome, models.OutcomeGiftReceived, models.OutcomeBuy:
		acquiredAt := rec.Timestamp
		if decision.Outcome == models.OutcomeBuy && decision.BasisDate != nil {
			// Coins bought outside the tracked accounts keep their real
			// purchase date for holding-period purposes.
			acquiredAt = *decision.BasisDate
		}
		amount := rec.AssetAmount
		unitCost := decimal.Zero
		if amount.IsPositive() && decision.FiatAmount.IsPositive() {
			unitCost = decision.FiatAmount.Div(amount)
		}
		ledger.AddLot(&models.Lot{
			AcquiredAt:      acquiredAt,
			RemainingAmount: amount,
			UnitCostBasis:   unitCost,
			SourceTxID:      rec.ID,
		})
		if decision.Outcome == models.OutcomeIncome {
			ev := &models.IncomeEvent{
				TransactionID: rec.ID,
				Account:       rec.Account,
				Date:          rec.Timestamp,
				Amount:        decision.FiatAmount,
			}
			aggregator.AddIncome(ev)
			result.Incomes = append(result.Incomes, ev)
		}
	case models.OutcomeNonTaxable:
		// Deliberately ignored; no lot, no income.
	default:
		return fmt.Errorf("deposit %s has unsupported outcome %q", rec.ID, decision.Outcome)
	}
	return nil
}

func (e *Engine) applyWithdrawalDecision(ledger *AccountLedger, rec *models.TransactionRecord, decision *models.ClassificationDecision, aggregator *GainsAggregator, result *models.RunResult) error {
	if decision == nil {
		return fmt.Errorf("withdrawal %s reached matching without a classification", rec.ID)
	}
	amount := rec.AssetAmount.Abs().Add(rec.FeeAsset)
	switch decision.Outcome {
	case models.OutcomeSale, models.OutcomeGiftGiven:
		proceeds := decision.FiatAmount.Sub(rec.FeeFiat)
		ev, err := e.matcher.Dispose(ledger, rec, amount, proceeds, rec.Timestamp, nil)
		if err != nil {
			return err
		}
		ev.Exempt = decision.Outcome == models.OutcomeGiftGiven
		aggregator.AddDisposal(ev)
		result.Disposals = append(result.Disposals, ev)
	case models.OutcomeExpense:
		// An expense offsets income instead of producing a disposal;
		// the coins still leave the inventory.
		if err := e.matcher.ConsumeQuiet(ledger, rec, amount, nil); err != nil {
			return err
		}
		ev := &models.IncomeEvent{
			TransactionID: rec.ID,
			Account:       rec.Account,
			Date:          rec.Timestamp,
			Amount:        decision.FiatAmount,
			Expense:       true,
		}
		aggregator.AddIncome(ev)
		result.Incomes = append(result.Incomes, ev)
	case models.OutcomeNonTaxable:
		if err := e.matcher.ConsumeQuiet(ledger, rec, amount, nil); err != nil {
			return err
		}
	default:
		return fmt.Errorf("withdrawal %s has unsupported outcome %q", rec.ID, decision.Outcome)
	}
	return nil
}
