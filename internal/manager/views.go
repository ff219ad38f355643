package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// Derived read models. Each call recomputes from the loaded wallet data;
// the aggregations are pure and cheap at dashboard scale.

// Summary is the cross-wallet aggregate view.
type Summary struct {
	Totals core.AllWalletsStats `json:"totals"`
	// FormattedBalance renders the total in the display currency of the
	// first wallet, defaulting to USD.
	FormattedBalance string `json:"formatted_balance"`
}

// Summary aggregates across every loaded wallet.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	wallets := cloneWallets(m.wallets)
	m.mu.Unlock()

	totals := core.CalculateAllWalletsStats(wallets)

	currency := "USD"
	for _, w := range wallets {
		for _, tx := range w.Transactions {
			currency = tx.CurrencyOrDefault()
			break
		}
		if len(w.Transactions) > 0 {
			break
		}
	}

	return Summary{
		Totals:           totals,
		FormattedBalance: core.FormatCurrency(totals.TotalBalance, currency),
	}
}

// SelectedWalletStats returns both financial views over the selected
// wallet's loaded page: the amount-sign split and the type-based split.
// They are independent derivations and may diverge for malformed data.
type SelectedWalletStats struct {
	Stats             core.Stats             `json:"stats"`
	DepositsAndIncome core.DepositsAndIncome `json:"deposits_and_income"`
}

// SelectedStats computes both views for the selected wallet. The second
// return is false when no wallet is selected.
func (m *Manager) SelectedStats() (SelectedWalletStats, bool) {
	m.mu.Lock()
	selected := m.selectedID
	transactions := append([]core.Transaction(nil), m.transactions...)
	m.mu.Unlock()

	if selected == "" {
		return SelectedWalletStats{}, false
	}
	return SelectedWalletStats{
		Stats:             core.CalculateStats(transactions),
		DepositsAndIncome: core.CalculateDepositsAndIncome(transactions),
	}, true
}

// Assets rolls up every loaded transaction by asset name across wallets.
func (m *Manager) Assets() []core.AssetRollup {
	m.mu.Lock()
	wallets := cloneWallets(m.wallets)
	m.mu.Unlock()

	return core.AllAssets(wallets)
}

// Growth buckets the loaded transactions into the monthly running-balance
// series.
func (m *Manager) Growth() []core.GrowthPoint {
	m.mu.Lock()
	wallets := cloneWallets(m.wallets)
	m.mu.Unlock()

	return core.CalculateBalanceGrowth(wallets)
}

// ErrNoStore is returned by asset-value operations when the manager runs
// without local persistence.
var ErrNoStore = errors.New("no local store configured")

// SetAssetValue persists a manual valuation for an asset.
func (m *Manager) SetAssetValue(ctx context.Context, assetName string, value float64) error {
	if m.store == nil {
		return ErrNoStore
	}
	if assetName == "" {
		return errors.New("asset name required")
	}
	if err := m.store.SetAssetValue(ctx, assetName, value); err != nil {
		m.setError(ctx, fmt.Errorf("save asset value: %w", err))
		return err
	}
	m.logger.DebugContext(ctx, "Asset value saved", log.FieldAssetName, assetName)
	return nil
}

// DeleteAssetValue removes a stored valuation. Deleting an unknown asset is
// not an error.
func (m *Manager) DeleteAssetValue(ctx context.Context, assetName string) error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := m.store.DeleteAssetValue(ctx, assetName); err != nil {
		m.setError(ctx, fmt.Errorf("delete asset value: %w", err))
		return err
	}
	return nil
}

// AssetValues returns every stored valuation.
func (m *Manager) AssetValues(ctx context.Context) (map[string]float64, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	values, err := m.store.AssetValues(ctx)
	if err != nil {
		m.setError(ctx, fmt.Errorf("load asset values: %w", err))
		return nil, err
	}
	return values, nil
}

// RestoreSelection restores the remembered rows-per-page and re-selects the
// wallet from the previous run, if it still exists.
func (m *Manager) RestoreSelection(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	if raw, ok, err := m.store.Setting(ctx, store.SettingRowsPerPage); err == nil && ok {
		if rows, err := strconv.Atoi(raw); err == nil {
			m.SetInitialRows(rows)
		}
	}

	walletID, ok, err := m.store.Setting(ctx, store.SettingSelectedWallet)
	if err != nil || !ok {
		return err
	}

	m.mu.Lock()
	known := m.walletByID(walletID) != nil
	m.mu.Unlock()
	if !known {
		return nil
	}
	return m.SelectWallet(ctx, walletID)
}

// RememberSelection persists the current selection and rows-per-page for
// the next run.
func (m *Manager) RememberSelection(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	selected := m.selectedID
	rows := m.table.RowsPerPage
	m.mu.Unlock()

	if rows > 0 {
		if err := m.store.SetSetting(ctx, store.SettingRowsPerPage, strconv.Itoa(rows)); err != nil {
			return err
		}
	}
	if selected == "" {
		return nil
	}
	return m.store.SetSetting(ctx, store.SettingSelectedWallet, selected)
}
