package core

import (
	"math"
	"sort"
)

// GrowthPoint is one calendar-month bucket of the balance-growth series.
// Balance is the running total at the end of the month, not the month's net
// cash flow: it grows by the absolute amount on BUY and by the signed amount
// on SELL, mirroring the deposits/income convention, so the chart shows the
// growth trajectory of money put to work.
type GrowthPoint struct {
	Month    string  `json:"date"`
	Balance  float64 `json:"balance"`
	Deposits float64 `json:"deposits"`
	Income   float64 `json:"income"`
}

// CalculateBalanceGrowth flattens all wallets' transactions, sorts them
// ascending by date, and buckets them into YYYY-MM keys with a running
// balance. The result has exactly one point per distinct month present in the
// input, ascending by month key; it is never nil, so it serializes as a JSON
// array even when empty.
func CalculateBalanceGrowth(wallets []Wallet) []GrowthPoint {
	var all []Transaction
	for _, w := range wallets {
		all = append(all, w.Transactions...)
	}
	if len(all) == 0 {
		return []GrowthPoint{}
	}

	// Stable sort keeps within-month input order, which only matters for
	// intermediate running values, never for the monthly summaries.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date.Before(all[j].Date.Time)
	})

	var (
		points  []GrowthPoint
		current *GrowthPoint
		balance float64
	)
	for _, t := range all {
		key := t.Date.MonthKey()
		if current == nil || current.Month != key {
			points = append(points, GrowthPoint{Month: key})
			current = &points[len(points)-1]
		}

		switch {
		case t.Type.IsBuy():
			balance += math.Abs(t.Amount)
			current.Deposits += math.Abs(t.Amount)
		case t.Type.IsSell():
			balance += t.Amount
			current.Income += t.Amount
		}
		current.Balance = balance
	}
	return points
}
