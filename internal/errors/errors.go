package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidAmount              ErrorCode = "invalid_amount"
	InvalidInput               ErrorCode = "invalid_input"
	InvalidAccountID           ErrorCode = "invalid_account_id"
	AccountNotFound            ErrorCode = "account_not_found"
	Unauthorized               ErrorCode = "unauthorized"
	CurrencyMismatch           ErrorCode = "currency_mismatch"
	AccountStatus              ErrorCode = "account_status"
	InsufficientFunds          ErrorCode = "insufficient_funds"
	DailyLimitExceeded         ErrorCode = "daily_limit_exceeded"
	BalanceLimitExceeded       ErrorCode = "balance_limit_exceeded"
	SameAccountTransfer        ErrorCode = "same_account_transfer"
	ExternalTransferValidation ErrorCode = "external_transfer_validation"
	DatabaseUnavailable        ErrorCode = "database_unavailable"
	TransactionProcessing      ErrorCode = "transaction_processing"
	TransactionNotFound        ErrorCode = "transaction_not_found"
	InvalidStatusTransition    ErrorCode = "invalid_status_transition"
	DuplicateAccount           ErrorCode = "duplicate_account"
	DuplicateTransaction       ErrorCode = "duplicate_transaction"
	InternalError              ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// HTTPStatus maps each error code to a stable HTTP status so handlers never
// have to inspect free-text messages.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound, TransactionNotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusForbidden
	case DuplicateAccount, DuplicateTransaction:
		return http.StatusConflict
	case DatabaseUnavailable:
		return http.StatusServiceUnavailable
	case InternalError, TransactionProcessing:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Predefined errors for common cases
var (
	ErrInvalidAmount        = NewAppError(InvalidAmount, "transfer amount must be positive")
	ErrInvalidAccountID     = NewAppError(InvalidAccountID, "invalid account identifier")
	ErrSameAccountTransfer  = NewAppError(SameAccountTransfer, "source and destination accounts cannot be the same")
	ErrDuplicateAccount     = NewAppError(DuplicateAccount, "account already exists")
	ErrDuplicateTransaction = NewAppError(DuplicateTransaction, "transaction already processed")
)

func NewAccountNotFound(identifier string) *AppError {
	return NewAppErrorf(AccountNotFound, "account with identifier %q not found", identifier)
}

func NewUnauthorized(message string) *AppError {
	return NewAppError(Unauthorized, message)
}

func NewCurrencyMismatch(sourceCurrency, destCurrency string) *AppError {
	return NewAppErrorf(CurrencyMismatch, "currency mismatch: cannot transfer %s to %s directly", sourceCurrency, destCurrency)
}

func NewAccountStatus(accountID, operation, status, reason string) *AppError {
	err := NewAppErrorf(AccountStatus, "operation %q not allowed for account %s due to status %q", operation, accountID, status)
	if reason != "" {
		err = err.WithDetails(reason)
	}
	return err
}

func NewInsufficientFunds(accountID, needed, available string) *AppError {
	return NewAppErrorf(InsufficientFunds, "insufficient funds in account %s: required %s, available %s", accountID, needed, available)
}

func NewDailyLimitExceeded(accountID, attempted, limit, spentToday string) *AppError {
	return NewAppErrorf(DailyLimitExceeded, "daily debit limit exceeded for account %s: attempted %s, limit %s, already spent today %s",
		accountID, attempted, limit, spentToday)
}

func NewBalanceLimitExceeded(accountID, attempted, limit, balance string) *AppError {
	return NewAppErrorf(BalanceLimitExceeded, "balance limit exceeded for account %s: attempted credit %s, limit %s, current balance %s",
		accountID, attempted, limit, balance)
}

func NewExternalTransferValidation(detail string) *AppError {
	return NewAppErrorf(ExternalTransferValidation, "external transfer validation failed: %s", detail)
}

func NewDatabaseUnavailable(operation string) *AppError {
	return NewAppErrorf(DatabaseUnavailable, "database is currently unavailable: operation %q could not be completed", operation)
}

func NewTransactionProcessing(cause error) *AppError {
	return NewAppError(TransactionProcessing, "an internal error occurred during transfer processing").
		WithDetails(cause.Error()).
		WithCause(cause)
}

func NewTransactionNotFound(id string) *AppError {
	return NewAppErrorf(TransactionNotFound, "transaction with ID %q not found", id)
}

func NewInvalidStatusTransition(from, to string) *AppError {
	return NewAppErrorf(InvalidStatusTransition, "transaction status cannot change from %q to %q", from, to)
}
