package importers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// krakenHeader is the ledger export header. Trade exports are rejected
// at sniff time: only the ledger carries deposits and withdrawals.
const krakenHeader = `"txid","refid","time","type","subtype","aclass","asset","amount","fee","balance"`

// KrakenImporter reads Kraken ledger exports. A trade appears as two
// ledger rows sharing a refid (crypto leg and fiat leg, plus an optional
// KFEE leg); the importer joins them into one buy or sell.
type KrakenImporter struct {
	asset string
}

// NewKrakenImporter creates an importer tracking asset.
func NewKrakenImporter(asset string) *KrakenImporter {
	return &KrakenImporter{asset: strings.ToUpper(asset)}
}

func (i *KrakenImporter) Name() string { return "kraken-ledger" }

func (i *KrakenImporter) CanParse(path string) bool {
	line := strings.TrimSpace(firstLine(path))
	return line == krakenHeader || strings.ReplaceAll(line, `"`, "") == strings.ReplaceAll(krakenHeader, `"`, "")
}

func (i *KrakenImporter) Parse(path string) ([]*models.TransactionRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	type leg struct {
		fields map[string]string
		index  int
	}
	trades := make(map[string][]leg)

	var records []*models.TransactionRecord
	for n, row := range rows {
		if len(row) == 0 {
			continue
		}
		fields := rowMap(header, row)
		ktype := strings.ToLower(fields["type"])
		asset := krakenAsset(fields["asset"])

		switch ktype {
		case "trade":
			refid := fields["refid"]
			trades[refid] = append(trades[refid], leg{fields: fields, index: n})

		case "deposit", "withdrawal":
			if asset != i.asset {
				continue
			}
			ts, err := parseTimeGuess(fields["time"])
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
			}
			amount, err := decimal.NewFromString(cleanNumber(fields["amount"]))
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad amount: %w", path, n+2, err)
			}
			fee, err := krakenFee(fields["fee"])
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
			}
			kind := models.KindDeposit
			if ktype == "withdrawal" {
				kind = models.KindWithdrawal
			}
			records = append(records, &models.TransactionRecord{
				ID:          firstOf(fields["txid"], fields["refid"]),
				Account:     "kraken",
				Timestamp:   ts,
				Kind:        kind,
				AssetAmount: signFor(kind, amount),
				FeeAsset:    fee,
				SourceFile:  filepath.Base(path),
				ImportIndex: n,
			})

		case "transfer", "margin", "rollover", "staking":
			// Out of scope for a single-asset capital gains run.
			continue

		default:
			return nil, fmt.Errorf("%s row %d: unrecognized ledger type %q", path, n+2, ktype)
		}
	}

	// Join trade legs. Both legs are required; a lone leg means a
	// truncated export.
	refids := make([]string, 0, len(trades))
	for refid := range trades {
		refids = append(refids, refid)
	}
	sort.Strings(refids)
	for _, refid := range refids {
		legs := trades[refid]
		var cryptoLeg, fiatLeg *leg
		for k := range legs {
			switch krakenAsset(legs[k].fields["asset"]) {
			case i.asset:
				cryptoLeg = &legs[k]
			case "USD", "EUR", "GBP":
				fiatLeg = &legs[k]
			}
		}
		if cryptoLeg == nil {
			continue // trade in some other asset
		}
		if fiatLeg == nil {
			return nil, fmt.Errorf("%s: trade %s has no fiat leg", path, refid)
		}

		ts, err := parseTimeGuess(cryptoLeg.fields["time"])
		if err != nil {
			return nil, fmt.Errorf("%s trade %s: %w", path, refid, err)
		}
		amount, err := decimal.NewFromString(cleanNumber(cryptoLeg.fields["amount"]))
		if err != nil {
			return nil, fmt.Errorf("%s trade %s: bad amount: %w", path, refid, err)
		}
		fiat, err := decimal.NewFromString(cleanNumber(fiatLeg.fields["amount"]))
		if err != nil {
			return nil, fmt.Errorf("%s trade %s: bad fiat amount: %w", path, refid, err)
		}
		fiatFee, err := krakenFee(fiatLeg.fields["fee"])
		if err != nil {
			return nil, fmt.Errorf("%s trade %s: %w", path, refid, err)
		}

		kind := models.KindBuy
		if amount.IsNegative() {
			kind = models.KindSell
		}
		fiatAbs := fiat.Abs()
		records = append(records, &models.TransactionRecord{
			ID:          refid,
			Account:     "kraken",
			Timestamp:   ts,
			Kind:        kind,
			AssetAmount: signFor(kind, amount),
			FiatAmount:  &fiatAbs,
			FeeFiat:     fiatFee,
			SourceFile:  filepath.Base(path),
			ImportIndex: cryptoLeg.index,
		})
	}

	sort.SliceStable(records, func(a, b int) bool {
		if !records[a].Timestamp.Equal(records[b].Timestamp) {
			return records[a].Timestamp.Before(records[b].Timestamp)
		}
		return records[a].ImportIndex < records[b].ImportIndex
	})
	return records, nil
}

// krakenAsset strips Kraken's X/Z asset prefixes: XXBT -> BTC (XBT is
// Kraken's BTC ticker), ZUSD -> USD.
func krakenAsset(raw string) string {
	asset := strings.ToUpper(strings.TrimSpace(raw))
	if len(asset) == 4 && (asset[0] == 'X' || asset[0] == 'Z') {
		asset = asset[1:]
	}
	if asset == "XBT" {
		asset = "BTC"
	}
	return asset
}

func krakenFee(raw string) (decimal.Decimal, error) {
	raw = cleanNumber(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad fee: %w", err)
	}
	return fee.Abs(), nil
}
