// Package pagination reconciles the server-reported pagination descriptor
// with the zero-based table view derived from it.
//
// The server descriptor is the single source of truth: the table state is
// always recomputed from it one-way and never mutated independently, so the
// view can never point at a page the current data does not support, even
// while a fetch is in flight.
package pagination

import "math"

type (
	// PageInfo is the pagination descriptor returned by the transactions
	// endpoint, stored verbatim. CurrentPage is 1-based.
	PageInfo struct {
		CurrentPage int  `json:"page"`
		Limit       int  `json:"limit"`
		TotalCount  int  `json:"total_count"`
		TotalPages  int  `json:"total_pages"`
		HasNext     bool `json:"has_next"`
		HasPrev     bool `json:"has_prev"`
	}

	// TableState is what the table widget renders: a zero-based page index
	// clamped to the data actually available, plus the sticky rows-per-page
	// choice.
	TableState struct {
		Page        int `json:"page"`
		RowsPerPage int `json:"rows_per_page"`
	}
)

// DefaultLimit is the rows-per-page used before the user picks one.
const DefaultLimit = 10

// New returns a descriptor for an empty, unloaded wallet view.
func New(limit int) PageInfo {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return PageInfo{CurrentPage: 1, Limit: limit}
}

// SafePage converts the 1-based server page to a zero-based index clamped to
// [0, ceil(totalCount/limit)-1]. A server page beyond the available data
// clamps down to the last real page, never up.
func (p PageInfo) SafePage() int {
	zeroBased := p.CurrentPage - 1
	if zeroBased < 0 {
		zeroBased = 0
	}
	maxPage := p.MaxPage()
	if zeroBased > maxPage {
		return maxPage
	}
	return zeroBased
}

// MaxPage returns the largest valid zero-based page index for the descriptor.
func (p PageInfo) MaxPage() int {
	if p.Limit <= 0 || p.TotalCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(p.TotalCount)/float64(p.Limit))) - 1
}

// Reconcile derives the table state from the descriptor. RowsPerPage follows
// the descriptor's limit when the server reports one, otherwise it keeps the
// previous choice.
func Reconcile(info PageInfo, prev TableState) TableState {
	rows := prev.RowsPerPage
	if info.Limit > 0 {
		rows = info.Limit
	}
	if rows <= 0 {
		rows = DefaultLimit
	}
	return TableState{
		Page:        info.SafePage(),
		RowsPerPage: rows,
	}
}

// Consistent reports whether the descriptor satisfies its intended
// invariants: currentPage within [1, totalPages], hasNext/hasPrev coherent
// with the page position. The backend is trusted either way; this exists for
// logging when it misbehaves.
func (p PageInfo) Consistent() bool {
	if p.TotalPages > 0 && (p.CurrentPage < 1 || p.CurrentPage > p.TotalPages) {
		return false
	}
	if p.HasNext != (p.CurrentPage < p.TotalPages) {
		return false
	}
	if p.HasPrev != (p.CurrentPage > 1) {
		return false
	}
	return true
}
