package core

import (
	"reflect"
	"testing"
)

func TestAllAssets_GroupsByNameAcrossWallets(t *testing.T) {
	wallets := []Wallet{
		{
			Name: "Broker",
			Transactions: []Transaction{
				{AssetName: "AAPL", AssetType: "stock", Type: Buy, Amount: -100, Volume: 2, Currency: "USD"},
				{AssetName: "AAPL", AssetType: "stock", Type: Sell, Amount: 60, Volume: 1, Currency: "USD"},
			},
		},
		{
			Name: "Pension",
			Transactions: []Transaction{
				{AssetName: "AAPL", AssetType: "equity", Type: Buy, Amount: -50, Volume: 1, Currency: "EUR"},
			},
		},
	}

	assets := AllAssets(wallets)
	if len(assets) != 1 {
		t.Fatalf("expected one rollup, got %d", len(assets))
	}

	a := assets[0]
	if a.Name != "AAPL" {
		t.Errorf("name = %q, want AAPL", a.Name)
	}
	// Grouping is by name only; the recorded type is the first seen.
	if a.Type != "stock" {
		t.Errorf("type = %q, want stock (first seen)", a.Type)
	}
	if a.TransactionCount != 3 {
		t.Errorf("transaction count = %d, want 3", a.TransactionCount)
	}
	if a.TotalDeposits != 150 {
		t.Errorf("deposits = %v, want 150", a.TotalDeposits)
	}
	if a.TotalIncome != 60 {
		t.Errorf("income = %v, want 60", a.TotalIncome)
	}
	if a.TotalVolume != 2 { // 2+1 bought, 1 sold
		t.Errorf("volume = %v, want 2", a.TotalVolume)
	}
	if !reflect.DeepEqual(a.Wallets, []string{"Broker", "Pension"}) {
		t.Errorf("wallets = %v", a.Wallets)
	}
	if !reflect.DeepEqual(a.Currencies, []string{"EUR", "USD"}) {
		t.Errorf("currencies = %v", a.Currencies)
	}
	if !a.HasMixedCurrencies {
		t.Error("expected mixed currencies")
	}
}

func TestAllAssets_DefaultCurrencyAndSorting(t *testing.T) {
	wallets := []Wallet{
		{
			Name: "Broker",
			Transactions: []Transaction{
				{AssetName: "ZZZ", Type: Buy, Amount: -1},
				{AssetName: "AAA", Type: Buy, Amount: -1},
			},
		},
	}

	assets := AllAssets(wallets)
	if len(assets) != 2 {
		t.Fatalf("expected two rollups, got %d", len(assets))
	}
	if assets[0].Name != "AAA" || assets[1].Name != "ZZZ" {
		t.Errorf("rollups not sorted by name: %s, %s", assets[0].Name, assets[1].Name)
	}
	if !reflect.DeepEqual(assets[0].Currencies, []string{"USD"}) {
		t.Errorf("missing currency should default to USD, got %v", assets[0].Currencies)
	}
	if assets[0].HasMixedCurrencies {
		t.Error("single currency must not report as mixed")
	}
}

func TestAllAssets_OtherTypesCountButDoNotMove(t *testing.T) {
	wallets := []Wallet{
		{
			Name: "Broker",
			Transactions: []Transaction{
				{AssetName: "BTC", Type: "TRANSFER", Amount: 500, Volume: 3},
			},
		},
	}

	a := AllAssets(wallets)[0]
	if a.TransactionCount != 1 {
		t.Errorf("transaction count = %d, want 1", a.TransactionCount)
	}
	if a.TotalDeposits != 0 || a.TotalIncome != 0 || a.TotalVolume != 0 {
		t.Errorf("non BUY/SELL must not move totals: %+v", a)
	}
}

func TestAllAssets_Empty(t *testing.T) {
	if got := AllAssets(nil); len(got) != 0 {
		t.Errorf("expected no rollups, got %v", got)
	}
}
