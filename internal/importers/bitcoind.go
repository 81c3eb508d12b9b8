package importers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// bitcoindStart matches the opening of a `listtransactions` dump. Old
// node versions put "account" first, newer ones "address".
var bitcoindStart = regexp.MustCompile(`^\[\{"(account|address)":`)

// BitcoindImporter reads Bitcoin Core `listtransactions` JSON exports.
type BitcoindImporter struct{}

// NewBitcoindImporter creates the importer.
func NewBitcoindImporter() *BitcoindImporter {
	return &BitcoindImporter{}
}

func (i *BitcoindImporter) Name() string { return "bitcoind-json" }

func (i *BitcoindImporter) CanParse(path string) bool {
	head := strings.Join(strings.Fields(readHead(path, 200)), "")
	return bitcoindStart.MatchString(head)
}

type bitcoindEntry struct {
	Account       string          `json:"account"`
	Address       string          `json:"address"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Confirmations int             `json:"confirmations"`
	TxID          string          `json:"txid"`
	Vout          int             `json:"vout"`
	Time          int64           `json:"time"`
	Comment       string          `json:"comment"`
}

func (i *BitcoindImporter) Parse(path string) ([]*models.TransactionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []bitcoindEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var records []*models.TransactionRecord
	for n, e := range entries {
		// Negative confirmations mark a conflicted transaction.
		if e.Confirmations < 0 {
			continue
		}
		account := "bitcoind"
		if e.Account != "" {
			account = "bitcoind-" + e.Account
		}
		rec := &models.TransactionRecord{
			// The vout disambiguates atomic payments sharing a txid.
			ID:               fmt.Sprintf("%s:%d", e.TxID, e.Vout),
			Account:          account,
			Timestamp:        timeFromUnix(e.Time),
			AssetAmount:      e.Amount,
			CounterpartyHint: strings.TrimSpace(e.Comment + " " + e.Address),
			TxHash:           e.TxID,
			SourceFile:       filepath.Base(path),
			ImportIndex:      n,
		}
		switch e.Category {
		case "receive", "generate", "immature":
			if e.Category == "immature" {
				continue
			}
			rec.Kind = models.KindDeposit
			rec.AssetAmount = e.Amount.Abs()
		case "send":
			rec.Kind = models.KindWithdrawal
			rec.AssetAmount = e.Amount.Abs().Neg()
			rec.FeeAsset = e.Fee.Abs()
		default:
			return nil, fmt.Errorf("%s entry %d: unrecognized category %q", path, n, e.Category)
		}
		records = append(records, rec)
	}
	return records, nil
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
