package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeTransfer   TransactionType = "transfer"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypePayment    TransactionType = "payment"
	TypeFee        TransactionType = "fee"
	TypeManual     TransactionType = "manual"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeTransfer, TypeDeposit, TypeWithdrawal, TypePayment, TypeFee, TypeManual:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending         TransactionStatus = "pending"
	StatusCompleted       TransactionStatus = "completed"
	StatusPendingExternal TransactionStatus = "pending_external"
	StatusFailed          TransactionStatus = "failed"
	StatusReversed        TransactionStatus = "reversed"
	StatusCancelled       TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusPendingExternal, StatusFailed, StatusReversed, StatusCancelled:
		return true
	}
	return false
}

// IsFinal reports whether no further transition is allowed from this status.
func (s TransactionStatus) IsFinal() bool {
	return s == StatusReversed || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo encodes the status state machine. A pending transaction
// settles to completed or pending_external; a pending_external one is settled
// administratively; completed may only be reversed; reversed, failed and
// cancelled are terminal. Cancellation is allowed only before settlement.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusPendingExternal ||
			next == StatusCancelled
	case StatusPendingExternal:
		return next == StatusCompleted || next == StatusFailed ||
			next == StatusReversed || next == StatusCancelled
	case StatusCompleted:
		return next == StatusReversed
	default:
		return false
	}
}

// ExternalDetails describes a counterparty outside the system. BankName and
// AccountNumber are mandatory for an external transfer.
type ExternalDetails struct {
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

func (d *ExternalDetails) Validate() bool {
	return d != nil &&
		strings.TrimSpace(d.BankName) != "" &&
		strings.TrimSpace(d.AccountNumber) != ""
}

type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	Type                 TransactionType   `json:"type"`
	Status               TransactionStatus `json:"status"`
	Description          string            `json:"description,omitempty"`
	SourceAccountID      *uuid.UUID        `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID        `json:"destination_account_id,omitempty"`
	ExternalDetails      *ExternalDetails  `json:"external_details,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	IdempotencyKey       *uuid.UUID        `json:"idempotency_key,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Validate checks the invariants every transaction row must satisfy.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if len(t.Currency) != 3 || t.Currency != strings.ToUpper(t.Currency) {
		return ErrInvalidCurrencyCode
	}
	if !t.Type.Valid() {
		return ErrInvalidTransactionType
	}
	if !t.Status.Valid() {
		return ErrInvalidTransactionStatus
	}
	if t.SourceAccountID == nil && t.DestinationAccountID == nil {
		return ErrNoAccountReference
	}
	return nil
}

// InvolvesAccount reports whether the account appears as source or destination.
func (t *Transaction) InvolvesAccount(id uuid.UUID) bool {
	return (t.SourceAccountID != nil && *t.SourceAccountID == id) ||
		(t.DestinationAccountID != nil && *t.DestinationAccountID == id)
}

// TransactionFilter narrows ListTransactions results. Zero values mean "any".
type TransactionFilter struct {
	AccountID *uuid.UUID
	Type      TransactionType
	Status    TransactionStatus
	Skip      int
	Limit     int
}

type TransactionRepository interface {
	CreateTransaction(tx *Transaction) error
	GetTransactionByID(id uuid.UUID) (*Transaction, error)
	GetTransactionByIdempotencyKey(key uuid.UUID) (*Transaction, error)
	ListTransactions(filter TransactionFilter) ([]*Transaction, error)
	UpdateTransactionStatus(id uuid.UUID, status TransactionStatus) error
	UpdateTransactionDescription(id uuid.UUID, description string) error
}
