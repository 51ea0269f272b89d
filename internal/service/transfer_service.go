package service

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

// TransferService orchestrates fund transfers: it resolves and authorizes the
// accounts, runs the account-level checks and mutations inside one unit of
// work, and records exactly one transaction describing the outcome. Nothing
// becomes visible unless the whole unit of work commits.
type TransferService struct {
	store    domain.Store
	accounts *AccountService
	logger   *slog.Logger
}

func NewTransferService(store domain.Store, accounts *AccountService, logger *slog.Logger) *TransferService {
	return &TransferService{
		store:    store,
		accounts: accounts,
		logger:   logger,
	}
}

type TransferRequest struct {
	Source      domain.AccountRef
	Amount      decimal.Decimal
	Currency    string
	Requester   uuid.UUID
	Destination domain.AccountRef
	// ExternalDetails selects the external branch when Destination is not set.
	ExternalDetails *domain.ExternalDetails
	Description     string
	Metadata        map[string]string
	// IdempotencyKey, when set, makes retried calls return the transaction
	// recorded by the first successful attempt instead of moving money twice.
	IdempotencyKey *uuid.UUID
}

// Transfer moves req.Amount from the source account to either an internal
// destination account (status completed) or an external counterparty (debit
// only, status pending_external). Every failure from the recognized taxonomy
// aborts the unit of work and propagates unchanged; anything unexpected is
// wrapped as a transaction_processing error. On failure no balance changes
// and no transaction row survives.
func (s *TransferService) Transfer(req *TransferRequest) (*domain.Transaction, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("transfer_funds")
	}

	if !req.Amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "currency must be a 3-letter code, got %q", req.Currency)
	}

	internal := !req.Destination.IsZero()
	if !internal && req.ExternalDetails == nil {
		return nil, errors.NewAppError(errors.InvalidInput, "either a destination account or external details must be provided")
	}

	if req.IdempotencyKey != nil {
		existing, err := s.store.Transactions().GetTransactionByIdempotencyKey(*req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Returning existing transaction for idempotency key",
				"idempotency_key", *req.IdempotencyKey,
				"transaction_id", existing.ID)
			return existing, nil
		}
	}

	s.logger.Info("Processing transfer",
		"amount", req.Amount,
		"currency", currency,
		"requester", req.Requester,
		"internal", internal)

	var transaction *domain.Transaction
	err := s.store.WithTransaction(func(store domain.Store) error {
		source, err := s.accounts.Resolve(store, req.Source, req.Requester, true, true)
		if err != nil {
			return err
		}

		if source.Currency != currency {
			return errors.NewCurrencyMismatch(source.Currency, currency)
		}

		if err := s.accounts.CheckDebitConditions(source, req.Amount); err != nil {
			return err
		}

		if internal {
			transaction, err = s.transferInternal(store, source, req, currency)
		} else {
			transaction, err = s.transferExternal(store, source, req, currency)
		}
		if err != nil {
			return err
		}

		return store.Transactions().CreateTransaction(transaction)
	})

	if err != nil {
		s.logger.Error("Transfer failed", "error", err)
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.NewTransactionProcessing(err)
	}

	s.logger.Info("Transfer committed", "transaction_id", transaction.ID, "status", transaction.Status)
	return transaction, nil
}

// transferInternal applies debit then credit against two internal accounts
// and builds a completed transaction record.
func (s *TransferService) transferInternal(store domain.Store, source *domain.Account, req *TransferRequest, currency string) (*domain.Transaction, error) {
	dest, err := s.accounts.Resolve(store, req.Destination, req.Requester, false, true)
	if err != nil {
		return nil, err
	}

	if dest.ID == source.ID {
		return nil, errors.ErrSameAccountTransfer
	}

	if dest.Currency != currency {
		return nil, errors.NewCurrencyMismatch(currency, dest.Currency)
	}

	if err := s.accounts.CheckCreditConditions(dest, req.Amount); err != nil {
		return nil, err
	}

	// Debit before credit; both invisible to other readers until commit.
	if err := s.accounts.PerformDebit(store, source, req.Amount); err != nil {
		return nil, err
	}
	if err := s.accounts.PerformCredit(store, dest, req.Amount); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer from %s to %s", source.AccountNumber, dest.AccountNumber)
	}

	sourceID, destID := source.ID, dest.ID
	return &domain.Transaction{
		ID:                   uuid.New(),
		Amount:               req.Amount,
		Currency:             currency,
		Type:                 domain.TypeTransfer,
		Status:               domain.StatusCompleted,
		Description:          description,
		SourceAccountID:      &sourceID,
		DestinationAccountID: &destID,
		Metadata:             req.Metadata,
		IdempotencyKey:       req.IdempotencyKey,
	}, nil
}

// transferExternal debits the source only; settlement with the external
// counterparty happens out of band, so the record stays pending_external.
func (s *TransferService) transferExternal(store domain.Store, source *domain.Account, req *TransferRequest, currency string) (*domain.Transaction, error) {
	if !req.ExternalDetails.Validate() {
		return nil, errors.NewExternalTransferValidation("bank name and account number are required")
	}

	if err := s.accounts.PerformDebit(store, source, req.Amount); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("External transfer from %s to %s (%s)",
			source.AccountNumber, req.ExternalDetails.AccountNumber, req.ExternalDetails.BankName)
	}

	sourceID := source.ID
	return &domain.Transaction{
		ID:              uuid.New(),
		Amount:          req.Amount,
		Currency:        currency,
		Type:            domain.TypeTransfer,
		Status:          domain.StatusPendingExternal,
		Description:     description,
		SourceAccountID: &sourceID,
		ExternalDetails: req.ExternalDetails,
		Metadata:        req.Metadata,
		IdempotencyKey:  req.IdempotencyKey,
	}, nil
}
