package core

import "math"

type (
	// Stats is the amount-sign view of a transaction list: everything the
	// backend marked positive is income, everything negative is expense.
	Stats struct {
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
	}

	// DepositsAndIncome is the transaction-type view: BUY rows count as
	// deposits (absolute value), SELL rows as income (signed value). The two
	// views are intentionally independent and may diverge for malformed data.
	DepositsAndIncome struct {
		Deposits float64 `json:"deposits"`
		Income   float64 `json:"income"`
	}

	// AllWalletsStats aggregates across every wallet. TotalBalance sums the
	// server-supplied balance fields rather than recomputing from the loaded
	// transaction pages.
	AllWalletsStats struct {
		TotalBalance      float64 `json:"total_balance"`
		TotalTransactions int     `json:"total_transactions"`
		TotalDeposits     float64 `json:"total_deposits"`
		TotalIncome       float64 `json:"total_income"`
	}
)

// CalculateStats splits a transaction list by amount sign.
func CalculateStats(txs []Transaction) Stats {
	var s Stats
	for _, t := range txs {
		switch {
		case t.Amount > 0:
			s.Income += t.Amount
		case t.Amount < 0:
			s.Expenses += math.Abs(t.Amount)
		}
	}
	return s
}

// CalculateDepositsAndIncome splits a transaction list by transaction type.
// Types other than BUY and SELL (compared case-insensitively) contribute to
// neither total.
func CalculateDepositsAndIncome(txs []Transaction) DepositsAndIncome {
	var d DepositsAndIncome
	for _, t := range txs {
		switch {
		case t.Type.IsBuy():
			d.Deposits += math.Abs(t.Amount)
		case t.Type.IsSell():
			d.Income += t.Amount
		}
	}
	return d
}

// CalculateAllWalletsStats flattens all wallets into one aggregate view.
func CalculateAllWalletsStats(wallets []Wallet) AllWalletsStats {
	var out AllWalletsStats
	var all []Transaction
	for _, w := range wallets {
		out.TotalBalance += w.Balance
		out.TotalTransactions += w.TransactionCount()
		all = append(all, w.Transactions...)
	}
	di := CalculateDepositsAndIncome(all)
	out.TotalDeposits = di.Deposits
	out.TotalIncome = di.Income
	return out
}
