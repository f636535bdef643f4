package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/transfer/internal/transfer"
)

// Placeholder renders the n-th (1-based) bind parameter for a dialect.
type Placeholder func(n int) string

// Dollar renders PostgreSQL placeholders: $1, $2, ...
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question renders SQLite placeholders.
func Question(int) string { return "?" }

// WhereBuilder accumulates AND-ed conditions and their bind arguments.
type WhereBuilder struct {
	placeholder Placeholder
	conditions  []string
	args        []any
	argIndex    int
}

// NewWhereBuilder returns an empty builder for the given placeholder style.
func NewWhereBuilder(p Placeholder) *WhereBuilder {
	return &WhereBuilder{placeholder: p, argIndex: 1}
}

func (wb *WhereBuilder) next(arg any) string {
	ph := wb.placeholder(wb.argIndex)
	wb.args = append(wb.args, arg)
	wb.argIndex++
	return ph
}

// Add appends "column = value". Empty values are skipped.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, column+" = "+wb.next(value))
}

// AddCompare appends "column op value" for an arbitrary argument.
func (wb *WhereBuilder) AddCompare(column, op string, value any) {
	wb.conditions = append(wb.conditions, column+" "+op+" "+wb.next(value))
}

// AddAny appends "column = ANY($n)" with values bound as a single array.
// PostgreSQL only.
func (wb *WhereBuilder) AddAny(column string, values []string) {
	if len(values) == 0 {
		return
	}
	wb.conditions = append(wb.conditions, column+" = ANY("+wb.next(values)+")")
}

// AddIn appends "column IN (?, ?, ...)" with one argument per value.
func (wb *WhereBuilder) AddIn(column string, values []string) {
	if len(values) == 0 {
		return
	}
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = wb.next(v)
	}
	wb.conditions = append(wb.conditions, column+" IN ("+strings.Join(phs, ", ")+")")
}

// Build returns " WHERE ..." (or "" without conditions) and the arguments.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the index the next bind parameter would get.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// timeArg converts a filter bound into the value a dialect compares against.
type timeArg func(time.Time) any

// assetWhere builds the WHERE clause for an export query. appID is always
// applied; the other filters only when set. After is inclusive and Before
// exclusive, matching transfer.Filters.Match.
func assetWhere(wb *WhereBuilder, appID string, f transfer.Filters, ids func(*WhereBuilder, []string), ts timeArg) (string, []any) {
	wb.AddCompare("app_id", "=", appID)
	wb.Add("asset_type", f.AssetType)
	if f.After != nil {
		wb.AddCompare("created_at", ">=", ts(*f.After))
	}
	if f.Before != nil {
		wb.AddCompare("created_at", "<", ts(*f.Before))
	}
	ids(wb, f.IDs)
	return wb.Build()
}
