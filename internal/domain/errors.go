package domain

import "errors"

// Entity-level invariant violations. The service layer maps these onto the
// application error taxonomy before they reach a caller.
var (
	ErrNonPositiveAmount        = errors.New("transaction amount must be positive")
	ErrInvalidCurrencyCode      = errors.New("currency must be a 3-letter upper-cased code")
	ErrInvalidTransactionType   = errors.New("unknown transaction type")
	ErrInvalidTransactionStatus = errors.New("unknown transaction status")
	ErrNoAccountReference       = errors.New("transaction must reference a source or destination account")
)
