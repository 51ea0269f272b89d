package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account statuses. Debits require an unrestricted account; credits are
// refused only when the account is frozen.
const (
	AccountStatusUnrestricted = "unrestricted"
	AccountStatusRestricted   = "restricted"
	AccountStatusFrozen       = "frozen"
)

// Account types supported at creation time.
var AllowedAccountTypes = []string{"savings", "current"}

type Account struct {
	ID              uuid.UUID        `json:"account_id"`
	UserID          uuid.UUID        `json:"user_id"`
	AccountNumber   string           `json:"account_number"`
	Type            string           `json:"type"`
	Currency        string           `json:"currency"`
	Balance         decimal.Decimal  `json:"balance"`
	Status          string           `json:"status"`
	StatusReason    string           `json:"status_reason,omitempty"`
	BalanceLimit    *decimal.Decimal `json:"balance_limit,omitempty"`
	DailyDebitLimit *decimal.Decimal `json:"daily_debit_limit,omitempty"`
	DailyDebitTotal decimal.Decimal  `json:"daily_debit_total"`
	LastDebitDate   *time.Time       `json:"last_debit_date,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// OwnedBy reports whether the requester owns this account.
func (a *Account) OwnedBy(userID uuid.UUID) bool {
	return a.UserID == userID
}

// DebitUsageToday returns the cumulative debit volume for the current UTC day.
// The stored total only counts if the last debit happened today.
func (a *Account) DebitUsageToday(now time.Time) decimal.Decimal {
	if a.LastDebitDate == nil {
		return decimal.Zero
	}
	y1, m1, d1 := a.LastDebitDate.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		return decimal.Zero
	}
	return a.DailyDebitTotal
}

// AccountRef names an account either by a reference that is already resolved
// or by an identifier that still needs a lookup (account ID or number).
type AccountRef struct {
	resolved   *Account
	identifier string
}

func RefByIdentifier(identifier string) AccountRef {
	return AccountRef{identifier: identifier}
}

func RefResolved(account *Account) AccountRef {
	return AccountRef{resolved: account}
}

// Resolved returns the pre-resolved account, or nil when a lookup is needed.
func (r AccountRef) Resolved() *Account { return r.resolved }

// Identifier returns the raw identifier for the lookup variant.
func (r AccountRef) Identifier() string { return r.identifier }

func (r AccountRef) IsZero() bool { return r.resolved == nil && r.identifier == "" }

type AccountRepository interface {
	CreateAccount(account *Account) error
	GetAccountByID(id uuid.UUID) (*Account, error)
	GetAccountByNumber(number string) (*Account, error)
	// GetAccountForUpdate reads the row with a FOR UPDATE lock. Only
	// meaningful inside a unit of work; the lock is held until commit.
	GetAccountForUpdate(id uuid.UUID) (*Account, error)
	ListAccountsByUser(userID uuid.UUID) ([]*Account, error)
	UpdateAccount(account *Account) error
	DeleteAccount(id uuid.UUID) error
}
