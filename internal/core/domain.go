package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	// Buy and Sell drive the deposit/income convention: BUY is money
	// entering an asset (counted as deposit, absolute value), SELL is money
	// leaving an asset (counted as income, signed value). Any other
	// transaction type passes through uninterpreted.
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

type (
	TransactionType string

	// Date wraps time.Time to accept both RFC3339 timestamps and plain
	// YYYY-MM-DD strings, which is what the transactions endpoint returns
	// depending on the source file the row was imported from.
	Date struct {
		time.Time
	}

	// Transaction is a single backend-sourced transaction row. This layer
	// never mutates transactions; the Amount sign convention is produced by
	// the backend and only trusted, never re-derived.
	Transaction struct {
		ID        string          `json:"id"`
		WalletID  string          `json:"wallet_id"`
		Date      Date            `json:"date"`
		AssetName string          `json:"asset_name"`
		AssetType string          `json:"asset_type"`
		Type      TransactionType `json:"transaction_type"`
		Volume    float64         `json:"volume"`
		ItemPrice float64         `json:"item_price"`
		Amount    float64         `json:"transaction_amount"`
		Fee       float64         `json:"fee"`
		Currency  string          `json:"currency"`
	}

	// Wallet is a named container of transactions. Balance is the
	// server-supplied figure from the summary fetch; with only one page of
	// transactions loaded locally it is not guaranteed to equal the sum of
	// the loaded page.
	Wallet struct {
		ID                    string        `json:"id"`
		Name                  string        `json:"name"`
		Balance               float64       `json:"balance"`
		Transactions          []Transaction `json:"transactions"`
		TotalTransactionCount int           `json:"total_transaction_count"`
	}
)

var (
	ErrEmptyWalletName   = errors.New("empty wallet name")
	ErrWalletNameTooLong = errors.New("wallet name too long (max 100 characters)")
)

// Normalized upper-cases the transaction type for the case-insensitive
// BUY/SELL comparisons used by every aggregation.
func (t TransactionType) Normalized() TransactionType {
	return TransactionType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// IsBuy reports whether the type means BUY, ignoring case.
func (t TransactionType) IsBuy() bool { return t.Normalized() == Buy }

// IsSell reports whether the type means SELL, ignoring case.
func (t TransactionType) IsSell() bool { return t.Normalized() == Sell }

// CurrencyOrDefault returns the transaction currency, defaulting to USD when
// the backend left it blank.
func (t Transaction) CurrencyOrDefault() string {
	if strings.TrimSpace(t.Currency) == "" {
		return "USD"
	}
	return t.Currency
}

// TransactionCount returns the server-reported total when present, falling
// back to the number of locally loaded transactions.
func (w Wallet) TransactionCount() int {
	if w.TotalTransactionCount > 0 {
		return w.TotalTransactionCount
	}
	return len(w.Transactions)
}

// ValidateWalletName checks a user-entered wallet name before it is sent to
// the backend.
func ValidateWalletName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyWalletName
	}
	if len(name) > 100 {
		return ErrWalletNameTooLong
	}
	return nil
}

const dateOnly = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(dateOnly))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MonthKey returns the zero-padded YYYY-MM bucket key for the date. Keys
// sort lexically in calendar order.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// NewDate builds a Date at midnight UTC, mainly for tests.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}
