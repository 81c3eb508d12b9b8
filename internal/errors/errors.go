package errors

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrValidation reports a malformed field on an imported record.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// ErrInsufficientLots is returned when a disposal asks for more of the
// asset than the account's lot inventory holds. It indicates missing or
// misordered source data and is fatal for the disposal.
type ErrInsufficientLots struct {
	TransactionID string
	Account       string
	Requested     decimal.Decimal
	Available     decimal.Decimal
}

func (e *ErrInsufficientLots) Error() string {
	return fmt.Sprintf("insufficient lots in account %q for transaction %s: requested %s, available %s",
		e.Account, e.TransactionID, e.Requested.String(), e.Available.String())
}

// ErrAmbiguousTransfer is recorded when more than one deposit equally
// qualifies as the incoming leg of a withdrawal. The withdrawal is routed
// to classification instead of being paired heuristically.
type ErrAmbiguousTransfer struct {
	WithdrawalID string
	CandidateIDs []string
}

func (e *ErrAmbiguousTransfer) Error() string {
	return fmt.Sprintf("ambiguous transfer match for withdrawal %s: candidates [%s]",
		e.WithdrawalID, strings.Join(e.CandidateIDs, ", "))
}

// ErrUnresolved is returned in non-interactive mode when a transaction
// needs classification, no cached decision exists, and defaults are not
// being accepted.
type ErrUnresolved struct {
	TransactionID string
	Fingerprint   string
}

func (e *ErrUnresolved) Error() string {
	return fmt.Sprintf("no cached classification for transaction %s (fingerprint %s); re-run interactively or seed the decision cache",
		e.TransactionID, e.Fingerprint)
}
