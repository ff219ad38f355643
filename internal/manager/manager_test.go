package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/pagination"
)

func pageInfo(page, limit, total, totalPages int) pagination.PageInfo {
	return pagination.PageInfo{
		CurrentPage: page,
		Limit:       limit,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

type fakeBackend struct {
	mu         sync.Mutex
	wallets    []core.Wallet
	totalCount int
	txErr      error
	txCalls    int
	statsCalls int
	uploadRes  api.UploadResult

	// gate, when set, is called inside Transactions before it returns and
	// may block to control response ordering.
	gate func(ctx context.Context, walletID string, page int) error
}

func (f *fakeBackend) Wallets(ctx context.Context) ([]core.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Wallet, len(f.wallets))
	copy(out, f.wallets)
	return out, nil
}

func (f *fakeBackend) CreateWallet(ctx context.Context, name string) (core.Wallet, error) {
	return core.Wallet{ID: "new", Name: name}, nil
}

func (f *fakeBackend) DeleteWallet(ctx context.Context, walletID string) error { return nil }

func (f *fakeBackend) Transactions(ctx context.Context, walletID string, page, limit int) (api.TransactionPage, error) {
	f.mu.Lock()
	f.txCalls++
	gate := f.gate
	txErr := f.txErr
	total := f.totalCount
	f.mu.Unlock()

	if gate != nil {
		if err := gate(ctx, walletID, page); err != nil {
			return api.TransactionPage{}, err
		}
	}
	if txErr != nil {
		return api.TransactionPage{}, txErr
	}

	totalPages := (total + limit - 1) / limit
	return api.TransactionPage{
		Transactions: []core.Transaction{
			{ID: fmt.Sprintf("%s-p%d", walletID, page), WalletID: walletID, Type: core.Buy, Amount: -10},
		},
		PageInfo: pageInfo(page, limit, total, totalPages),
	}, nil
}

func (f *fakeBackend) TransactionErrors(ctx context.Context, walletID string) ([]api.FailedTransaction, error) {
	return []api.FailedTransaction{{RowNumber: 1, Reason: "bad row"}}, nil
}

func (f *fakeBackend) DetectCurrency(ctx context.Context, fileName string, file io.Reader) (string, error) {
	return "EUR", nil
}

func (f *fakeBackend) Upload(ctx context.Context, req api.UploadRequest) (api.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadRes, nil
}

func (f *fakeBackend) Stats(ctx context.Context, walletID string) (api.WalletStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return api.WalletStats{Balance: 500, TransactionCount: 3}, nil
}

func (f *fakeBackend) MutualFunds(ctx context.Context) ([]api.MutualFund, error) {
	return []api.MutualFund{{ID: "f1", Name: "Global Index"}}, nil
}

func (f *fakeBackend) FundValues(ctx context.Context, fundID string) ([]api.FundValue, error) {
	return []api.FundValue{{Value: 101.5}}, nil
}

func (f *fakeBackend) AddFundValue(ctx context.Context, fundID string, value api.FundValue) error {
	return nil
}

func (f *fakeBackend) Health(ctx context.Context) error { return nil }

func newTestManager(backend *fakeBackend) *Manager {
	return New(backend, nil, nil)
}

func TestLoadWallets_HydratesFirstPages(t *testing.T) {
	backend := &fakeBackend{
		wallets: []core.Wallet{
			{ID: "w1", Name: "Main", Balance: 100},
			{ID: "w2", Name: "Savings", Balance: 200},
		},
		totalCount: 25,
	}
	m := newTestManager(backend)

	require.NoError(t, m.LoadWallets(context.Background()))

	view := m.Snapshot()
	require.Len(t, view.Wallets, 2)
	for _, w := range view.Wallets {
		assert.Len(t, w.Transactions, 1, "wallet %s should have its first page", w.ID)
		assert.Equal(t, 25, w.TotalTransactionCount)
	}
	assert.Empty(t, view.Err)
}

func TestSelectWallet_FetchesAndReconciles(t *testing.T) {
	backend := &fakeBackend{totalCount: 42}
	m := newTestManager(backend)

	require.NoError(t, m.SelectWallet(context.Background(), "w1"))

	view := m.Snapshot()
	assert.Equal(t, "w1", view.SelectedID)
	assert.Equal(t, 1, view.PageInfo.CurrentPage)
	assert.Equal(t, 0, view.Table.Page)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "w1-p1", view.Transactions[0].ID)
}

func TestChangePage_FailureKeepsPriorData(t *testing.T) {
	backend := &fakeBackend{totalCount: 42}
	m := newTestManager(backend)
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))

	backend.mu.Lock()
	backend.txErr = errors.New("backend down")
	backend.mu.Unlock()

	err := m.ChangePage(context.Background(), 2)
	require.Error(t, err)

	view := m.Snapshot()
	assert.Equal(t, "backend down", view.Err)
	// Prior page is still displayed; no rollback, no retry.
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "w1-p1", view.Transactions[0].ID)
	assert.Equal(t, 1, view.PageInfo.CurrentPage)
}

func TestChangeRowsPerPage_ResetsToFirstPage(t *testing.T) {
	backend := &fakeBackend{totalCount: 100}
	m := newTestManager(backend)
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))
	require.NoError(t, m.ChangePage(context.Background(), 3))

	require.NoError(t, m.ChangeRowsPerPage(context.Background(), 25))

	view := m.Snapshot()
	assert.Equal(t, 1, view.PageInfo.CurrentPage)
	assert.Equal(t, 25, view.PageInfo.Limit)
	assert.Equal(t, 25, view.Table.RowsPerPage)
	assert.Equal(t, 0, view.Table.Page)
}

func TestRefresh_KeepsSelectionAndPage(t *testing.T) {
	backend := &fakeBackend{
		wallets:    []core.Wallet{{ID: "w1", Name: "Main"}},
		totalCount: 100,
	}
	m := newTestManager(backend)
	require.NoError(t, m.LoadWallets(context.Background()))
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))
	require.NoError(t, m.ChangePage(context.Background(), 3))

	require.NoError(t, m.Refresh(context.Background()))

	view := m.Snapshot()
	assert.Equal(t, "w1", view.SelectedID)
	assert.Equal(t, 3, view.PageInfo.CurrentPage)
	require.NotEmpty(t, view.Transactions)
	assert.Equal(t, "w1-p3", view.Transactions[0].ID)
}

func TestFetchPage_StaleResponseDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var sawCancel bool
	var once sync.Once

	backend := &fakeBackend{totalCount: 100}
	backend.gate = func(ctx context.Context, walletID string, page int) error {
		if page != 2 {
			return nil
		}
		once.Do(func() { close(entered) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			sawCancel = true
			return ctx.Err()
		}
	}

	m := newTestManager(backend)
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))

	done := make(chan error, 1)
	go func() { done <- m.ChangePage(context.Background(), 2) }()
	<-entered

	// A newer request lands while page 2 is still in flight.
	require.NoError(t, m.ChangePage(context.Background(), 3))
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err, "stale fetch must not surface an error")
	case <-time.After(2 * time.Second):
		t.Fatal("stale fetch did not return")
	}

	view := m.Snapshot()
	assert.Equal(t, 3, view.PageInfo.CurrentPage, "newer page must win")
	assert.Equal(t, "w1-p3", view.Transactions[0].ID)
	assert.Empty(t, view.Err)
	assert.True(t, sawCancel, "older in-flight fetch should have been canceled")
}

func TestDeleteWallet_DiscardsInFlightFetch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	backend := &fakeBackend{
		wallets:    []core.Wallet{{ID: "w1", Name: "Main"}},
		totalCount: 30,
	}
	backend.gate = func(ctx context.Context, walletID string, page int) error {
		if page != 2 {
			return nil
		}
		once.Do(func() { close(entered) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m := newTestManager(backend)
	require.NoError(t, m.LoadWallets(context.Background()))
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))

	done := make(chan error, 1)
	go func() { done <- m.ChangePage(context.Background(), 2) }()
	<-entered

	// The wallet disappears while its page 2 is still in flight.
	require.NoError(t, m.DeleteWallet(context.Background(), "w1"))
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err, "discarded fetch must not surface an error")
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch did not return")
	}

	view := m.Snapshot()
	assert.Empty(t, view.SelectedID)
	assert.Empty(t, view.Transactions, "deleted wallet's page must not reappear")
	assert.Zero(t, view.PageInfo.TotalCount)
}

func TestUpload_PartialFailurePopulatesErrorTable(t *testing.T) {
	backend := &fakeBackend{
		totalCount: 10,
		uploadRes: api.UploadResult{
			Imported:           8,
			FailedTransactions: []api.FailedTransaction{{RowNumber: 4, Reason: "bad amount"}},
		},
	}
	m := newTestManager(backend)
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))

	result, err := m.Upload(context.Background(), api.UploadRequest{WalletID: "w1", FileName: "tx.csv"})
	require.NoError(t, err)
	assert.Equal(t, 8, result.Imported)

	view := m.Snapshot()
	require.Len(t, view.FailedRows, 1)
	assert.Equal(t, 4, view.FailedRows[0].RowNumber)

	// A clean upload clears the table.
	backend.mu.Lock()
	backend.uploadRes = api.UploadResult{Imported: 3}
	backend.mu.Unlock()
	_, err = m.Upload(context.Background(), api.UploadRequest{WalletID: "w1", FileName: "tx.csv"})
	require.NoError(t, err)
	assert.Empty(t, m.Snapshot().FailedRows)
}

func TestDeleteWallet_ClearsSelection(t *testing.T) {
	backend := &fakeBackend{
		wallets:    []core.Wallet{{ID: "w1", Name: "Main"}},
		totalCount: 5,
	}
	m := newTestManager(backend)
	require.NoError(t, m.LoadWallets(context.Background()))
	require.NoError(t, m.SelectWallet(context.Background(), "w1"))

	require.NoError(t, m.DeleteWallet(context.Background(), "w1"))

	view := m.Snapshot()
	assert.Empty(t, view.Wallets)
	assert.Empty(t, view.SelectedID)
	assert.Empty(t, view.Transactions)
}

func TestWalletStats_Cached(t *testing.T) {
	backend := &fakeBackend{totalCount: 5}
	m := newTestManager(backend)

	for i := 0; i < 3; i++ {
		stats, err := m.WalletStats(context.Background(), "w1")
		require.NoError(t, err)
		assert.Equal(t, 500.0, stats.Balance)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.statsCalls)
}

func TestSelectedStats_RequiresSelection(t *testing.T) {
	m := newTestManager(&fakeBackend{totalCount: 5})

	_, ok := m.SelectedStats()
	assert.False(t, ok)

	require.NoError(t, m.SelectWallet(context.Background(), "w1"))
	stats, ok := m.SelectedStats()
	require.True(t, ok)
	assert.Equal(t, 10.0, stats.DepositsAndIncome.Deposits)
}

func TestDismissError(t *testing.T) {
	backend := &fakeBackend{txErr: errors.New("boom")}
	m := newTestManager(backend)

	_ = m.SelectWallet(context.Background(), "w1")
	require.NotEmpty(t, m.LastError())

	m.DismissError()
	assert.Empty(t, m.LastError())
}
