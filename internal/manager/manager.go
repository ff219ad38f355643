package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

// Backend is the slice of the API client the manager depends on.
type Backend interface {
	Wallets(ctx context.Context) ([]core.Wallet, error)
	CreateWallet(ctx context.Context, name string) (core.Wallet, error)
	DeleteWallet(ctx context.Context, walletID string) error
	Transactions(ctx context.Context, walletID string, page, limit int) (api.TransactionPage, error)
	TransactionErrors(ctx context.Context, walletID string) ([]api.FailedTransaction, error)
	DetectCurrency(ctx context.Context, fileName string, file io.Reader) (string, error)
	Upload(ctx context.Context, req api.UploadRequest) (api.UploadResult, error)
	Stats(ctx context.Context, walletID string) (api.WalletStats, error)
	MutualFunds(ctx context.Context) ([]api.MutualFund, error)
	FundValues(ctx context.Context, fundID string) ([]api.FundValue, error)
	AddFundValue(ctx context.Context, fundID string, value api.FundValue) error
	Health(ctx context.Context) error
}

// walletFetchLimit caps how many wallets are hydrated concurrently when the
// wallet list loads.
const walletFetchLimit = 4

// Manager owns the wallet list, the selected wallet's transaction page and
// the pagination state, and hands out immutable snapshots to readers.
//
// Page and selection changes carry a generation token: each new fetch
// cancels the previous in-flight one, and a response is applied only when
// its token still matches the latest request. A slow response for an older
// page can never overwrite the state of a newer one.
type Manager struct {
	backend Backend
	store   *store.Store
	logger  *log.Logger
	stats   *cache.LRU[api.WalletStats]

	mu           sync.Mutex
	wallets      []core.Wallet
	selectedID   string
	transactions []core.Transaction
	pageInfo     pagination.PageInfo
	table        pagination.TableState
	failedRows   []api.FailedTransaction
	lastErr      string

	generation uint64
	cancel     context.CancelFunc
}

// New builds a manager. The store may be nil when no local persistence is
// configured; asset-value operations then fail explicitly.
func New(backend Backend, st *store.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		backend: backend,
		store:   st,
		logger:  logger.WithComponent(log.ComponentManager),
		stats:   cache.NewLRU[api.WalletStats](64, 5*time.Minute),
		table:   pagination.TableState{RowsPerPage: pagination.DefaultLimit},
	}
}

// SetInitialRows sets the rows-per-page used before the user picks one.
func (m *Manager) SetInitialRows(rows int) {
	if rows < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.RowsPerPage = rows
}

// View is an immutable snapshot of the manager's state.
type View struct {
	Wallets      []core.Wallet           `json:"wallets"`
	SelectedID   string                  `json:"selected_wallet_id"`
	Transactions []core.Transaction      `json:"transactions"`
	PageInfo     pagination.PageInfo     `json:"page_info"`
	Table        pagination.TableState   `json:"table"`
	FailedRows   []api.FailedTransaction `json:"failed_transactions"`
	Err          string                  `json:"error,omitempty"`
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	return View{
		Wallets:      cloneWallets(m.wallets),
		SelectedID:   m.selectedID,
		Transactions: append([]core.Transaction(nil), m.transactions...),
		PageInfo:     m.pageInfo,
		Table:        m.table,
		FailedRows:   append([]api.FailedTransaction(nil), m.failedRows...),
		Err:          m.lastErr,
	}
}

// LastError returns the current error banner, empty when none.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// DismissError clears the error banner.
func (m *Manager) DismissError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = ""
}

// LoadWallets fetches the wallet list and hydrates each wallet's first
// transaction page concurrently, so the cross-wallet aggregations have data
// to work on. A failure leaves the previous list in place and sets the
// error banner.
func (m *Manager) LoadWallets(ctx context.Context) error {
	wallets, err := m.backend.Wallets(ctx)
	if err != nil {
		m.setError(ctx, fmt.Errorf("load wallets: %w", err))
		return err
	}

	limit := m.currentLimit()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walletFetchLimit)
	for i := range wallets {
		g.Go(func() error {
			page, err := m.backend.Transactions(gctx, wallets[i].ID, 1, limit)
			if err != nil {
				return fmt.Errorf("hydrate wallet %s: %w", wallets[i].ID, err)
			}
			wallets[i].Transactions = page.Transactions
			wallets[i].TotalTransactionCount = page.PageInfo.TotalCount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.setError(ctx, err)
		return err
	}

	m.mu.Lock()
	m.wallets = wallets
	m.lastErr = ""
	m.mu.Unlock()

	m.stats.Clear()

	m.logger.InfoContext(ctx, "Wallets loaded", "count", len(wallets))
	return nil
}

// SelectWallet makes a wallet current and fetches its first page at the
// current row count.
func (m *Manager) SelectWallet(ctx context.Context, walletID string) error {
	m.mu.Lock()
	m.selectedID = walletID
	m.failedRows = nil
	limit := m.table.RowsPerPage
	m.mu.Unlock()

	return m.fetchPage(ctx, walletID, 1, limit)
}

// ChangePage fetches the requested 1-based page for the selected wallet.
func (m *Manager) ChangePage(ctx context.Context, page int) error {
	m.mu.Lock()
	walletID := m.selectedID
	limit := m.table.RowsPerPage
	m.mu.Unlock()

	if walletID == "" {
		return errors.New("no wallet selected")
	}
	if page < 1 {
		page = 1
	}
	return m.fetchPage(ctx, walletID, page, limit)
}

// ChangeRowsPerPage resets to page 1 at the new row count.
func (m *Manager) ChangeRowsPerPage(ctx context.Context, rowsPerPage int) error {
	m.mu.Lock()
	walletID := m.selectedID
	if rowsPerPage < 1 {
		rowsPerPage = pagination.DefaultLimit
	}
	m.table.RowsPerPage = rowsPerPage
	m.mu.Unlock()

	if walletID == "" {
		return errors.New("no wallet selected")
	}
	return m.fetchPage(ctx, walletID, 1, rowsPerPage)
}

// Refresh reloads the wallet list and, when a wallet is selected, refetches
// its current page.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.LoadWallets(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	walletID := m.selectedID
	page := m.pageInfo.CurrentPage
	limit := m.table.RowsPerPage
	m.mu.Unlock()

	if walletID == "" {
		return nil
	}
	if page < 1 {
		page = 1
	}
	return m.fetchPage(ctx, walletID, page, limit)
}

// fetchPage runs one guarded transaction fetch. It claims the next
// generation token, cancels the previous in-flight fetch, and applies the
// response only when its token is still the latest.
func (m *Manager) fetchPage(ctx context.Context, walletID string, page, limit int) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	if m.cancel != nil {
		m.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	defer cancel()

	result, err := m.backend.Transactions(fetchCtx, walletID, page, limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		// A newer request owns the state now; this response is stale
		// regardless of whether it succeeded.
		m.logger.Debug("Discarding stale page response",
			log.FieldWalletID, walletID, log.FieldPage, page)
		return nil
	}

	if err != nil {
		m.lastErr = err.Error()
		m.logger.WarnContext(ctx, "Page fetch failed",
			log.FieldWalletID, walletID,
			log.FieldPage, page,
			log.FieldLimit, limit,
			log.FieldError, err.Error())
		return err
	}

	m.transactions = result.Transactions
	m.pageInfo = result.PageInfo
	m.table = pagination.Reconcile(result.PageInfo, m.table)
	m.lastErr = ""

	if wallet := m.walletByID(walletID); wallet != nil {
		wallet.Transactions = result.Transactions
		wallet.TotalTransactionCount = result.PageInfo.TotalCount
	}

	if !m.pageInfo.Consistent() {
		m.logger.Warn("Backend pagination descriptor inconsistent",
			log.FieldWalletID, walletID,
			log.FieldPage, m.pageInfo.CurrentPage,
			"total_pages", m.pageInfo.TotalPages)
	}
	return nil
}

// CreateWallet adds a wallet and appends it to the local list.
func (m *Manager) CreateWallet(ctx context.Context, name string) (core.Wallet, error) {
	wallet, err := m.backend.CreateWallet(ctx, name)
	if err != nil {
		m.setError(ctx, fmt.Errorf("create wallet: %w", err))
		return core.Wallet{}, err
	}

	m.mu.Lock()
	m.wallets = append(m.wallets, wallet)
	m.lastErr = ""
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Wallet created",
		log.FieldWalletID, wallet.ID, log.FieldWalletName, wallet.Name)
	return wallet, nil
}

// DeleteWallet removes a wallet remotely and locally. Deleting the selected
// wallet clears the selection and the loaded page.
func (m *Manager) DeleteWallet(ctx context.Context, walletID string) error {
	if err := m.backend.DeleteWallet(ctx, walletID); err != nil {
		m.setError(ctx, fmt.Errorf("delete wallet: %w", err))
		return err
	}

	m.mu.Lock()
	for i := range m.wallets {
		if m.wallets[i].ID == walletID {
			m.wallets = append(m.wallets[:i], m.wallets[i+1:]...)
			break
		}
	}
	if m.selectedID == walletID {
		m.selectedID = ""
		m.transactions = nil
		m.pageInfo = pagination.New(m.table.RowsPerPage)
		m.table = pagination.TableState{RowsPerPage: m.table.RowsPerPage}
		// A page fetch still in flight for this wallet must not be applied.
		m.generation++
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
	}
	m.lastErr = ""
	m.mu.Unlock()

	m.stats.Delete(walletID)

	m.logger.InfoContext(ctx, "Wallet deleted", log.FieldWalletID, walletID)
	return nil
}

// Upload pushes a transaction file into a wallet. On success the failed-row
// table is replaced with the backend's verdict (empty on a clean import)
// and the selected wallet's page is refreshed.
func (m *Manager) Upload(ctx context.Context, req api.UploadRequest) (api.UploadResult, error) {
	result, err := m.backend.Upload(ctx, req)
	if err != nil {
		m.setError(ctx, fmt.Errorf("upload: %w", err))
		return api.UploadResult{}, err
	}

	m.mu.Lock()
	m.failedRows = result.FailedTransactions
	m.lastErr = ""
	selected := m.selectedID
	limit := m.table.RowsPerPage
	m.mu.Unlock()

	m.stats.Delete(req.WalletID)

	if selected == req.WalletID {
		// Refresh the visible page; a failure here surfaces as a banner but
		// does not undo the upload result.
		_ = m.fetchPage(ctx, selected, 1, limit)
	}
	return result, nil
}

// DetectCurrency proxies the backend's currency detection.
func (m *Manager) DetectCurrency(ctx context.Context, fileName string, file io.Reader) (string, error) {
	code, err := m.backend.DetectCurrency(ctx, fileName, file)
	if err != nil {
		m.setError(ctx, fmt.Errorf("detect currency: %w", err))
		return "", err
	}
	return code, nil
}

// RefreshTransactionErrors re-pulls the failed-row table for a wallet.
func (m *Manager) RefreshTransactionErrors(ctx context.Context, walletID string) ([]api.FailedTransaction, error) {
	failed, err := m.backend.TransactionErrors(ctx, walletID)
	if err != nil {
		m.setError(ctx, fmt.Errorf("transaction errors: %w", err))
		return nil, err
	}

	m.mu.Lock()
	m.failedRows = failed
	m.lastErr = ""
	m.mu.Unlock()
	return failed, nil
}

// WalletStats returns the backend aggregate for a wallet, cached briefly to
// spare the backend on dashboard polls.
func (m *Manager) WalletStats(ctx context.Context, walletID string) (api.WalletStats, error) {
	if cached, ok := m.stats.Get(walletID); ok {
		return cached, nil
	}

	stats, err := m.backend.Stats(ctx, walletID)
	if err != nil {
		m.setError(ctx, fmt.Errorf("wallet stats: %w", err))
		return api.WalletStats{}, err
	}
	m.stats.Set(walletID, stats)
	return stats, nil
}

// MutualFunds lists the user's tracked funds.
func (m *Manager) MutualFunds(ctx context.Context) ([]api.MutualFund, error) {
	funds, err := m.backend.MutualFunds(ctx)
	if err != nil {
		m.setError(ctx, fmt.Errorf("mutual funds: %w", err))
		return nil, err
	}
	return funds, nil
}

// FundValues lists the valuation history of a fund.
func (m *Manager) FundValues(ctx context.Context, fundID string) ([]api.FundValue, error) {
	values, err := m.backend.FundValues(ctx, fundID)
	if err != nil {
		m.setError(ctx, fmt.Errorf("fund values: %w", err))
		return nil, err
	}
	return values, nil
}

// Ping probes the remote backend. It does not touch local state or the
// error banner; readiness checks call it on their own schedule.
func (m *Manager) Ping(ctx context.Context) error {
	return m.backend.Health(ctx)
}

// AddFundValue records a valuation point for a fund.
func (m *Manager) AddFundValue(ctx context.Context, fundID string, value api.FundValue) error {
	if err := m.backend.AddFundValue(ctx, fundID, value); err != nil {
		m.setError(ctx, fmt.Errorf("add fund value: %w", err))
		return err
	}
	m.logger.InfoContext(ctx, "Fund value recorded", log.FieldFundID, fundID)
	return nil
}

// setError records the banner text. Prior data stays in place; there are no
// retries, the next user action is the retry.
func (m *Manager) setError(ctx context.Context, err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()

	m.logger.ErrorContext(ctx, "Operation failed", log.FieldError, err.Error())
}

func (m *Manager) currentLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table.RowsPerPage > 0 {
		return m.table.RowsPerPage
	}
	return pagination.DefaultLimit
}

// walletByID returns a pointer into m.wallets; callers must hold m.mu.
func (m *Manager) walletByID(walletID string) *core.Wallet {
	for i := range m.wallets {
		if m.wallets[i].ID == walletID {
			return &m.wallets[i]
		}
	}
	return nil
}

func cloneWallets(wallets []core.Wallet) []core.Wallet {
	out := make([]core.Wallet, len(wallets))
	copy(out, wallets)
	for i := range out {
		out[i].Transactions = append([]core.Transaction(nil), out[i].Transactions...)
	}
	return out
}
