package importers

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// GenericCSVImporter handles exchange exports with self-describing
// headers. It sniffs column names case-insensitively and tolerates the
// common aliases ("qty" for amount, "date" for time) rather than
// pinning one exchange's exact header.
type GenericCSVImporter struct {
	asset string
}

// NewGenericCSVImporter creates an importer tracking asset.
func NewGenericCSVImporter(asset string) *GenericCSVImporter {
	return &GenericCSVImporter{asset: strings.ToUpper(asset)}
}

func (i *GenericCSVImporter) Name() string { return "generic-csv" }

// CanParse accepts any CSV whose header names a time column and an
// amount column. More specific importers run first, so this is the
// fallback of last resort.
func (i *GenericCSVImporter) CanParse(path string) bool {
	idx := headerIndex(firstLine(path))
	_, hasTime := pickColumn(idx, "time", "date", "datetime", "timestamp")
	_, hasAmount := pickColumn(idx, "amount", "qty", "vol", "quantity")
	return hasTime && hasAmount
}

func (i *GenericCSVImporter) Parse(path string) ([]*models.TransactionRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	account := accountFromFilename(path)

	var records []*models.TransactionRecord
	for n, row := range rows {
		if len(row) == 0 || strings.HasPrefix(strings.TrimSpace(row[0]), "#") {
			continue
		}
		fields := rowMap(header, row)
		if asset := strings.ToUpper(field(fields, "asset", "symbol", "commodity", "currency")); asset != "" && asset != i.asset {
			continue
		}

		ts, err := parseTimeGuess(field(fields, "time", "date", "datetime", "timestamp"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		amount, err := decimal.NewFromString(cleanNumber(field(fields, "amount", "qty", "vol", "quantity")))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad amount: %w", path, n+2, err)
		}
		kind, err := mapKind(field(fields, "type", "tx_type", "category", "kind"), amount)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		amount = signFor(kind, amount)

		rec := &models.TransactionRecord{
			ID:               field(fields, "id", "txid", "refid", "orderno"),
			Account:          firstOf(field(fields, "wallet", "account"), account),
			Timestamp:        ts,
			Kind:             kind,
			AssetAmount:      amount,
			CounterpartyHint: field(fields, "address", "counterparty", "to", "notes", "info"),
			TxHash:           field(fields, "tx_hash", "txhash", "hash"),
			SourceFile:       filepath.Base(path),
			ImportIndex:      n,
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if v := cleanNumber(field(fields, "total", "cost", "value", "proceeds", "fiat")); v != "" {
			fiat, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad fiat value: %w", path, n+2, err)
			}
			fiat = fiat.Abs()
			rec.FiatAmount = &fiat
		} else if v := cleanNumber(field(fields, "price")); v != "" {
			price, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad price: %w", path, n+2, err)
			}
			fiat := price.Mul(amount.Abs())
			rec.FiatAmount = &fiat
		}
		if v := cleanNumber(field(fields, "fee")); v != "" {
			fee, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad fee: %w", path, n+2, err)
			}
			fee = fee.Abs()
			// Fees on buys and sells are fiat-denominated; on deposits
			// and withdrawals they are asset-denominated.
			if kind == models.KindBuy || kind == models.KindSell {
				rec.FeeFiat = fee
			} else {
				rec.FeeAsset = fee
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// mapKind normalizes the reported movement type. An empty type falls
// back to the amount's sign: inflows are deposits, outflows withdrawals.
func mapKind(raw string, amount decimal.Decimal) (models.TransactionKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "trade buy", "market buy":
		return models.KindBuy, nil
	case "sell", "trade sell", "market sell":
		return models.KindSell, nil
	case "deposit", "receive", "received", "transfer in", "generate":
		return models.KindDeposit, nil
	case "withdrawal", "withdraw", "send", "sent", "transfer out":
		return models.KindWithdrawal, nil
	case "":
		if amount.IsNegative() {
			return models.KindWithdrawal, nil
		}
		return models.KindDeposit, nil
	default:
		return "", fmt.Errorf("unrecognized transaction type %q", raw)
	}
}

// signFor enforces the canonical amount sign per kind, since exports
// disagree on whether sells and withdrawals are reported negative.
func signFor(kind models.TransactionKind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case models.KindSell, models.KindWithdrawal:
		return amount.Abs().Neg()
	default:
		return amount.Abs()
	}
}

func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	idx := make(map[string]int, len(all[0]))
	for i, h := range all[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return all[1:], idx, nil
}

func headerIndex(line string) map[string]int {
	idx := make(map[string]int)
	for i, h := range strings.Split(line, ",") {
		h = strings.Trim(strings.TrimSpace(h), `"`)
		idx[strings.ToLower(h)] = i
	}
	return idx
}

func pickColumn(idx map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := idx[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func rowMap(header map[string]int, row []string) map[string]string {
	fields := make(map[string]string, len(header))
	for name, i := range header {
		if i < len(row) {
			fields[name] = strings.TrimSpace(row[i])
		}
	}
	return fields
}

func field(fields map[string]string, names ...string) string {
	for _, name := range names {
		if v := fields[name]; v != "" {
			return v
		}
	}
	return ""
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cleanNumber strips thousands separators and currency symbols from
// exchange-formatted numbers.
func cleanNumber(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return strings.TrimPrefix(s, "$")
}

// accountFromFilename derives the default account from the file name, so
// coinbase.csv becomes account "coinbase" without any configuration.
func accountFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
}

func parseTimeGuess(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q", s)
}
