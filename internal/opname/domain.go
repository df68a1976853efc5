package opname

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Table is the RowStore table holding opname line items.
const Table = "opname"

// DateLayout is the calendar date format of an opname session.
const DateLayout = "2006-01-02"

// Status is the approval state of one opname line.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	// StatusRejected is never persisted; rejected lines are deleted.
	StatusRejected Status = "REJECTED"
)

// CanTransitionTo reports whether the workflow allows moving from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusPending && (target == StatusApproved || target == StatusRejected)
}

// Label summarises a variance for humans.
type Label string

const (
	LabelMatch Label = "MATCH"
	LabelShort Label = "SHORT"
	LabelOver  Label = "OVER"
)

// LabelFor derives the label from a variance.
func LabelFor(variance int) Label {
	switch {
	case variance < 0:
		return LabelShort
	case variance > 0:
		return LabelOver
	default:
		return LabelMatch
	}
}

// Record is one line of an opname batch.
type Record struct {
	OpnameID      string    `json:"opnameId"`
	Timestamp     time.Time `json:"timestamp"`
	Date          string    `json:"date"`
	ProductCode   string    `json:"productCode"`
	ProductName   string    `json:"productName,omitempty"`
	SystemStock   int       `json:"systemStock"`
	PhysicalStock int       `json:"physicalStock"`
	Variance      int       `json:"variance"`
	Label         Label     `json:"label"`
	Status        Status    `json:"status"`
	Actor         string    `json:"actor"`
	DecidedBy     string    `json:"decidedBy,omitempty"`
	DecidedAt     time.Time `json:"decidedAt,omitzero"`
}

// Item is one counted product in a submission.
type Item struct {
	ProductCode   string
	ProductName   string
	SystemStock   int
	PhysicalStock int
}

// SubmitInput describes a batch submission. Date defaults to today.
type SubmitInput struct {
	Date  string
	Actor string
	Items []Item
}

// SubmitSingleInput describes a field officer counting one product.
type SubmitSingleInput struct {
	ProductCode   string
	PhysicalStock int
	Actor         string
}

// SubmitResult identifies the created batch.
type SubmitResult struct {
	OpnameID string   `json:"opnameId"`
	Records  []Record `json:"records"`
}

// ApproveInput confirms one line of a batch.
type ApproveInput struct {
	OpnameID    string
	ProductCode string
	NewStock    int
	Actor       string
}

// RejectInput discards a batch, or one line of it when ProductCode is set.
type RejectInput struct {
	OpnameID    string
	ProductCode string
	Actor       string
}

// ListFilter narrows listings by calendar date (inclusive) and product.
type ListFilter struct {
	From        string
	To          string
	ProductCode string
	Status      Status
}

// MergedRow is the read-only report view of all lines sharing a date and product.
type MergedRow struct {
	Date          string   `json:"date"`
	ProductCode   string   `json:"productCode"`
	ProductName   string   `json:"productName,omitempty"`
	SystemStock   int      `json:"systemStock"`
	PhysicalStock int      `json:"physicalStock"`
	Variance      int      `json:"variance"`
	Label         Label    `json:"label"`
	Status        Status   `json:"status"`
	Lines         int      `json:"lines"`
	OpnameIDs     []string `json:"opnameIds"`
}

var (
	// ErrRecordNotFound indicates an unknown opname id or line.
	ErrRecordNotFound = fmt.Errorf("%w: opname record not found", shared.ErrNotFound)
	// ErrAlreadyApproved refuses a second approval of the same line.
	ErrAlreadyApproved = fmt.Errorf("%w: opname already approved", shared.ErrBusinessRule)
	// ErrCannotRejectApproved refuses discarding a line whose stock change already happened.
	ErrCannotRejectApproved = fmt.Errorf("%w: cannot reject an approved opname", shared.ErrBusinessRule)
	// ErrNoItems indicates an empty submission.
	ErrNoItems = fmt.Errorf("%w: opname requires at least one item", shared.ErrValidation)
)
