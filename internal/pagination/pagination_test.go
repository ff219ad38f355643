package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafePage_ClampsDown(t *testing.T) {
	// A stale server page beyond the available data resolves to the last
	// real page, not the raw conversion.
	info := PageInfo{CurrentPage: 5, Limit: 10, TotalCount: 8, TotalPages: 1}
	assert.Equal(t, 0, info.SafePage())
}

func TestSafePage(t *testing.T) {
	cases := []struct {
		name string
		info PageInfo
		want int
	}{
		{"first page", PageInfo{CurrentPage: 1, Limit: 10, TotalCount: 25}, 0},
		{"middle page", PageInfo{CurrentPage: 2, Limit: 10, TotalCount: 25}, 1},
		{"last page", PageInfo{CurrentPage: 3, Limit: 10, TotalCount: 25}, 2},
		{"beyond last", PageInfo{CurrentPage: 9, Limit: 10, TotalCount: 25}, 2},
		{"zero page", PageInfo{CurrentPage: 0, Limit: 10, TotalCount: 25}, 0},
		{"no data", PageInfo{CurrentPage: 1, Limit: 10, TotalCount: 0}, 0},
		{"no limit", PageInfo{CurrentPage: 4, Limit: 0, TotalCount: 100}, 0},
		{"exact boundary", PageInfo{CurrentPage: 2, Limit: 10, TotalCount: 20}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.info.SafePage())
		})
	}
}

func TestReconcile(t *testing.T) {
	prev := TableState{Page: 4, RowsPerPage: 25}

	got := Reconcile(PageInfo{CurrentPage: 2, Limit: 10, TotalCount: 95}, prev)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, 10, got.RowsPerPage, "descriptor limit wins")

	got = Reconcile(PageInfo{CurrentPage: 3, TotalCount: 95}, prev)
	assert.Equal(t, 25, got.RowsPerPage, "missing limit keeps previous choice")

	got = Reconcile(PageInfo{}, TableState{})
	assert.Equal(t, 0, got.Page)
	assert.Equal(t, DefaultLimit, got.RowsPerPage)
}

func TestNew(t *testing.T) {
	assert.Equal(t, PageInfo{CurrentPage: 1, Limit: 50}, New(50))
	assert.Equal(t, PageInfo{CurrentPage: 1, Limit: DefaultLimit}, New(0))
}

func TestConsistent(t *testing.T) {
	ok := PageInfo{CurrentPage: 2, Limit: 10, TotalCount: 30, TotalPages: 3, HasNext: true, HasPrev: true}
	assert.True(t, ok.Consistent())

	bad := ok
	bad.HasNext = false
	assert.False(t, bad.Consistent())

	stale := PageInfo{CurrentPage: 5, TotalPages: 1, HasPrev: true}
	assert.False(t, stale.Consistent())
}
