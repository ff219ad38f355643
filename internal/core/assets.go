package core

import (
	"math"
	"sort"
)

// AssetRollup is the aggregated view of all transactions sharing an asset
// name, across wallets. Grouping is by name only: two rows with the same name
// but different asset types merge into one entry, and the type recorded is the
// first one seen.
type AssetRollup struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	TotalDeposits      float64  `json:"total_deposits"`
	TotalIncome        float64  `json:"total_income"`
	TotalVolume        float64  `json:"total_volume"`
	TransactionCount   int      `json:"transaction_count"`
	Wallets            []string `json:"wallets"`
	Currencies         []string `json:"currencies"`
	HasMixedCurrencies bool     `json:"has_mixed_currencies"`
}

type assetAccumulator struct {
	rollup     AssetRollup
	wallets    map[string]struct{}
	currencies map[string]struct{}
}

// AllAssets groups every transaction across all wallets by asset name. The
// owning wallet is taken from the wallet being iterated, so a transaction is
// attributed without any membership lookup. Output is sorted by asset name;
// wallet and currency sets come out sorted as well.
func AllAssets(wallets []Wallet) []AssetRollup {
	byName := make(map[string]*assetAccumulator)
	order := make([]string, 0)

	for _, w := range wallets {
		for _, t := range w.Transactions {
			acc, ok := byName[t.AssetName]
			if !ok {
				acc = &assetAccumulator{
					rollup:     AssetRollup{Name: t.AssetName, Type: t.AssetType},
					wallets:    make(map[string]struct{}),
					currencies: make(map[string]struct{}),
				}
				byName[t.AssetName] = acc
				order = append(order, t.AssetName)
			}

			acc.rollup.TransactionCount++
			acc.wallets[w.Name] = struct{}{}
			acc.currencies[t.CurrencyOrDefault()] = struct{}{}

			switch {
			case t.Type.IsBuy():
				acc.rollup.TotalDeposits += math.Abs(t.Amount)
				acc.rollup.TotalVolume += t.Volume
			case t.Type.IsSell():
				acc.rollup.TotalIncome += t.Amount
				acc.rollup.TotalVolume -= t.Volume
			}
		}
	}

	sort.Strings(order)
	out := make([]AssetRollup, 0, len(order))
	for _, name := range order {
		acc := byName[name]
		acc.rollup.Wallets = sortedKeys(acc.wallets)
		acc.rollup.Currencies = sortedKeys(acc.currencies)
		acc.rollup.HasMixedCurrencies = len(acc.rollup.Currencies) > 1
		out = append(out, acc.rollup)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
