package products

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Table is the RowStore table holding products.
const Table = "products"

// Product is a stock keeping unit with its authoritative balance.
type Product struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	DepartmentID string    `json:"departmentId"`
	Unit         string    `json:"unit"`
	Stock        int       `json:"stock"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DetailsInput carries the descriptive fields an edit may change. Stock and
// code are deliberately absent.
type DetailsInput struct {
	Name         string
	DepartmentID string
	Unit         string
}

var (
	// ErrProductNotFound indicates an unknown product code or id.
	ErrProductNotFound = fmt.Errorf("%w: product not found", shared.ErrNotFound)
	// ErrHasHistory refuses deleting a product referenced by the ledger.
	ErrHasHistory = fmt.Errorf("%w: product has ledger history", shared.ErrBusinessRule)
	// ErrCodeRequired indicates a blank product code.
	ErrCodeRequired = fmt.Errorf("%w: product code required", shared.ErrValidation)
)

var upper = cases.Upper(language.Und)

// NormalizeCode canonicalises a typed or scanned product code.
func NormalizeCode(code string) string {
	return upper.String(strings.TrimSpace(code))
}

func (in DetailsInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: product name required", shared.ErrValidation)
	}
	if strings.TrimSpace(in.DepartmentID) == "" {
		return fmt.Errorf("%w: department required", shared.ErrValidation)
	}
	return nil
}
