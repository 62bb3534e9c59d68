package pharmacy

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

// FilterMedicines applies search, then category, then a stable sort. items
// is not modified. An empty or unknown sort key keeps the input order, and an
// empty category means all categories.
func FilterMedicines(items []model.Medicine, q model.InventoryQuery) []model.Medicine {
	out := make([]model.Medicine, 0, len(items))
	search := strings.ToLower(q.Search)

	for _, m := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.GenericName), search) {
			continue
		}
		if q.Category != "" && q.Category != model.CategoryAll && m.Category != q.Category {
			continue
		}
		out = append(out, m)
	}

	switch q.SortBy {
	case model.SortByName:
		c := collate.New(language.English)
		slices.SortStableFunc(out, func(a, b model.Medicine) int {
			return c.CompareString(a.Name, b.Name)
		})
	case model.SortByCategory:
		c := collate.New(language.English)
		slices.SortStableFunc(out, func(a, b model.Medicine) int {
			return c.CompareString(a.Category, b.Category)
		})
	case model.SortByStock:
		slices.SortStableFunc(out, func(a, b model.Medicine) int {
			return cmp.Compare(a.StockQuantity, b.StockQuantity)
		})
	case model.SortByPrice:
		slices.SortStableFunc(out, func(a, b model.Medicine) int {
			return cmp.Compare(a.Price, b.Price)
		})
	}
	return out
}

// IsLowStock reports whether m is at or below its reorder level.
func IsLowStock(m model.Medicine) bool {
	return m.StockQuantity <= m.ReorderLevel
}

// LowStock returns the low-stock items in input order.
func LowStock(items []model.Medicine) []model.Medicine {
	out := []model.Medicine{}
	for _, m := range items {
		if IsLowStock(m) {
			out = append(out, m)
		}
	}
	return out
}

// PreviewStock is the stock level after applying quantity with op. It is
// not floored at zero; the backend decides whether to accept it.
func PreviewStock(current, quantity int, op model.StockOperation) (int, error) {
	switch op {
	case model.StockAdd:
		return current + quantity, nil
	case model.StockSubtract:
		return current - quantity, nil
	default:
		return 0, apperrors.Validation("operation must be add or subtract")
	}
}
