package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Table is the RowStore table holding the append-only ledger.
const Table = "transactions"

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TypeIn represents an inbound movement.
	TypeIn TransactionType = "IN"
	// TypeOut represents an outbound movement.
	TypeOut TransactionType = "OUT"
)

// Valid reports whether t is a postable movement type.
func (t TransactionType) Valid() bool {
	return t == TypeIn || t == TypeOut
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Type         TransactionType `json:"type"`
	ProductCode  string          `json:"productCode"`
	Quantity     int             `json:"quantity"`
	Actor        string          `json:"actor"`
	DepartmentID string          `json:"departmentId,omitempty"`
	// Seq is the row position in the ledger table; it orders entries that
	// share a timestamp.
	Seq int `json:"-"`
}

// PostInput describes a single movement request. Actor must come from the
// authenticated principal.
type PostInput struct {
	ProductCode    string
	Type           TransactionType
	Quantity       int
	DepartmentID   string
	Actor          string
	IdempotencyKey string
}

// PostResult is returned after both writes succeed.
type PostResult struct {
	Transaction Transaction `json:"transaction"`
	NewBalance  int         `json:"newBalance"`
}

// ListFilter narrows ledger listings.
type ListFilter struct {
	ProductCode string
	Limit       int
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", shared.ErrValidation)
	// ErrInvalidType indicates a movement type other than IN or OUT.
	ErrInvalidType = fmt.Errorf("%w: type must be IN or OUT", shared.ErrValidation)
	// ErrActorRequired indicates a post without an authenticated actor.
	ErrActorRequired = fmt.Errorf("%w: authenticated actor required", shared.ErrUnauthorized)
	// ErrInsufficientStock refuses an OUT larger than the current balance.
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", shared.ErrBusinessRule)
	// ErrWrongDepartment refuses an IN to a department that does not own the product.
	ErrWrongDepartment = fmt.Errorf("%w: wrong department", shared.ErrBusinessRule)
	// ErrLedgerAppend marks a post whose balance write landed but whose ledger
	// row did not.
	ErrLedgerAppend = errors.New("ledger append failed after balance write")
	// ErrAppendUnconfirmed marks an ErrLedgerAppend whose balance write was
	// kept because the ledger row may have landed. The request must not be
	// repeated.
	ErrAppendUnconfirmed = fmt.Errorf("%w: balance written, ledger append unconfirmed; do not retry", shared.ErrPartialWrite)
)
