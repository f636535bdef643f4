package transfer

import (
	"iter"
	"slices"
	"time"
)

// Filters narrows an export. Every field is optional; the zero value matches
// everything.
type Filters struct {
	AssetType string     // exact match
	After     *time.Time // CreatedAt >= After
	Before    *time.Time // CreatedAt < Before
	IDs       []string   // allow-list
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.AssetType == "" && f.After == nil && f.Before == nil && len(f.IDs) == 0
}

// Match reports whether a passes every set filter.
func (f Filters) Match(a Asset) bool {
	if f.AssetType != "" && a.AssetType != f.AssetType {
		return false
	}
	if f.After != nil && a.CreatedAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && !a.CreatedAt.Before(*f.Before) {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, a.ID) {
		return false
	}
	return true
}

// Apply drops assets that do not match. Errors pass through.
func (f Filters) Apply(assets iter.Seq2[Asset, error]) iter.Seq2[Asset, error] {
	if f.IsZero() {
		return assets
	}
	return func(yield func(Asset, error) bool) {
		for a, err := range assets {
			if err == nil && !f.Match(a) {
				continue
			}
			if !yield(a, err) {
				return
			}
		}
	}
}
