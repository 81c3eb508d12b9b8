package importers

import (
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/vhqtran/coingains/internal/models"
)

// Importer turns one source file into normalized transaction records.
// CanParse sniffs the file (header line or leading bytes) without
// committing to a full parse.
type Importer interface {
	Name() string
	CanParse(path string) bool
	Parse(path string) ([]*models.TransactionRecord, error)
}

// Registry holds the known importers and routes each file to the first
// one that recognizes it. Order matters: specific formats are tried
// before the generic CSV fallback.
type Registry struct {
	importers []Importer
	logger    *zap.Logger
}

// NewRegistry creates a registry with the built-in importers for asset
// (the tracked symbol; rows for other assets are skipped).
func NewRegistry(asset string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		importers: []Importer{
			NewKrakenImporter(asset),
			NewBitcoindImporter(),
			NewGenericCSVImporter(asset),
		},
		logger: logger,
	}
}

// Register appends a custom importer, tried after the built-ins.
func (r *Registry) Register(imp Importer) {
	r.importers = append(r.importers, imp)
}

// ParseFile routes path to the first importer that recognizes it. Any
// malformed row rejects the whole file.
func (r *Registry) ParseFile(path string) ([]*models.TransactionRecord, error) {
	for _, imp := range r.importers {
		if !imp.CanParse(path) {
			continue
		}
		records, err := imp.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", imp.Name(), err)
		}
		r.logger.Info("parsed source file",
			zap.String("file", path),
			zap.String("importer", imp.Name()),
			zap.Int("records", len(records)))
		return records, nil
	}
	return nil, fmt.Errorf("no importer recognizes %s", path)
}

// ParseAll parses every path and merges the results into one record set
// ordered by timestamp, with per-file import order as the tiebreak.
func (r *Registry) ParseAll(paths []string) ([]*models.TransactionRecord, error) {
	var all []*models.TransactionRecord
	for _, path := range paths {
		records, err := r.ParseFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ImportIndex < b.ImportIndex
	})
	return all, nil
}

// firstLine reads the first line of path for header sniffing. A read
// failure returns the empty string, which no importer matches.
func firstLine(path string) string {
	head := readHead(path, 4096)
	for i, c := range head {
		if c == '\n' || c == '\r' {
			return head[:i]
		}
	}
	return head
}

func readHead(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, n)
	read, _ := io.ReadFull(f, buf)
	return string(buf[:read])
}
