package service

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

// TransactionService serves the ledger read path and the controlled status
// updates outside the atomic transfer path. Completed and reversed records
// are immutable here apart from the administrative reversal transition.
type TransactionService struct {
	store    domain.Store
	accounts *AccountService
	logger   *slog.Logger
}

func NewTransactionService(store domain.Store, accounts *AccountService, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		store:    store,
		accounts: accounts,
		logger:   logger,
	}
}

// ManualTransactionRequest describes an administrative ledger entry: deposits,
// withdrawals, fees and corrections recorded after the fact.
type ManualTransactionRequest struct {
	Amount               decimal.Decimal
	Currency             string
	Type                 string
	Status               string
	Description          string
	SourceAccountID      *uuid.UUID
	DestinationAccountID *uuid.UUID
	Metadata             map[string]string
}

// CreateManualTransaction records a transaction without moving any funds.
// Fund movement always goes through the transfer path; this exists so
// administrators can log entries the system did not originate.
func (s *TransactionService) CreateManualTransaction(req *ManualTransactionRequest, isAdmin bool) (*domain.Transaction, error) {
	if !isAdmin {
		return nil, errors.NewUnauthorized("only administrators can create manual transaction records")
	}
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("create_manual_transaction")
	}

	status := domain.TransactionStatus(strings.ToLower(req.Status))
	if status == "" {
		status = domain.StatusCompleted
	}

	tx := &domain.Transaction{
		ID:                   uuid.New(),
		Amount:               req.Amount,
		Currency:             strings.ToUpper(req.Currency),
		Type:                 domain.TransactionType(strings.ToLower(req.Type)),
		Status:               status,
		Description:          req.Description,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Metadata:             req.Metadata,
	}
	if err := tx.Validate(); err != nil {
		return nil, errors.NewAppError(errors.InvalidInput, err.Error())
	}

	// Referenced accounts must exist; the record itself never touches them.
	for _, accountID := range []*uuid.UUID{tx.SourceAccountID, tx.DestinationAccountID} {
		if accountID == nil {
			continue
		}
		if _, err := s.store.Accounts().GetAccountByID(*accountID); err != nil {
			return nil, err
		}
	}

	if err := s.store.Transactions().CreateTransaction(tx); err != nil {
		return nil, err
	}

	s.logger.Info("Manual transaction recorded", "transaction_id", tx.ID, "type", tx.Type)
	return tx, nil
}

// GetTransaction returns a transaction the requester is involved in (as owner
// of the source or destination account) or any transaction for an admin.
func (s *TransactionService) GetTransaction(id uuid.UUID, requester uuid.UUID, isAdmin bool) (*domain.Transaction, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("get_transaction")
	}

	tx, err := s.store.Transactions().GetTransactionByID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.NewTransactionNotFound(id.String())
	}

	if !isAdmin {
		involved, err := s.requesterInvolved(tx, requester)
		if err != nil {
			return nil, err
		}
		if !involved {
			return nil, errors.NewUnauthorized("you do not have permission to view this transaction")
		}
	}
	return tx, nil
}

// ListTransactions applies the caller's filters. Non-admins are pinned to one
// of their own accounts.
func (s *TransactionService) ListTransactions(filter domain.TransactionFilter, requester uuid.UUID, isAdmin bool) ([]*domain.Transaction, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("list_transactions")
	}

	if !isAdmin {
		if filter.AccountID == nil {
			return nil, errors.NewAppError(errors.InvalidInput, "account_id filter is required")
		}
		account, err := s.store.Accounts().GetAccountByID(*filter.AccountID)
		if err != nil {
			return nil, err
		}
		if !account.OwnedBy(requester) {
			return nil, errors.NewUnauthorized("you do not have permission to view transactions for this account")
		}
	}

	return s.store.Transactions().ListTransactions(filter)
}

// ListAccountTransactions returns the history of one account, enforcing
// ownership through account resolution.
func (s *TransactionService) ListAccountTransactions(identifier string, requester uuid.UUID, isAdmin bool, skip, limit int) ([]*domain.Transaction, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("list_account_transactions")
	}

	account, err := s.accounts.GetAccount(identifier, requester, isAdmin)
	if err != nil {
		return nil, err
	}

	accountID := account.ID
	return s.store.Transactions().ListTransactions(domain.TransactionFilter{
		AccountID: &accountID,
		Skip:      skip,
		Limit:     limit,
	})
}

// UpdateDescription edits the free-text description. Involved-party or admin.
// Completed records stay editable since the description never affects funds;
// reversed records are frozen entirely.
func (s *TransactionService) UpdateDescription(id uuid.UUID, requester uuid.UUID, isAdmin bool, description string) (*domain.Transaction, error) {
	tx, err := s.GetTransaction(id, requester, isAdmin)
	if err != nil {
		return nil, err
	}

	if tx.Status == domain.StatusReversed {
		return nil, errors.NewAppError(errors.InvalidInput, "reversed transactions cannot be modified")
	}

	if err := s.store.Transactions().UpdateTransactionDescription(tx.ID, description); err != nil {
		return nil, err
	}
	tx.Description = description
	return tx, nil
}

// Cancel marks a transaction cancelled. Only transactions that have not yet
// settled (pending or pending_external) may be cancelled; the state machine
// refuses everything else. Cancelling is the soft path, there is no delete.
func (s *TransactionService) Cancel(id uuid.UUID, requester uuid.UUID, isAdmin bool) (*domain.Transaction, error) {
	tx, err := s.GetTransaction(id, requester, isAdmin)
	if err != nil {
		return nil, err
	}

	if !tx.Status.CanTransitionTo(domain.StatusCancelled) {
		return nil, errors.NewInvalidStatusTransition(string(tx.Status), string(domain.StatusCancelled))
	}

	if err := s.store.Transactions().UpdateTransactionStatus(tx.ID, domain.StatusCancelled); err != nil {
		return nil, err
	}

	s.logger.Info("Transaction cancelled", "transaction_id", tx.ID)
	tx.Status = domain.StatusCancelled
	return tx, nil
}

// SettleExternal is the administrative transition for a pending_external
// transaction once the external system confirms or rejects settlement.
func (s *TransactionService) SettleExternal(id uuid.UUID, isAdmin bool, outcome domain.TransactionStatus) (*domain.Transaction, error) {
	if !isAdmin {
		return nil, errors.NewUnauthorized("only administrators can settle external transfers")
	}

	tx, err := s.GetTransaction(id, uuid.Nil, true)
	if err != nil {
		return nil, err
	}

	if tx.Status != domain.StatusPendingExternal || !tx.Status.CanTransitionTo(outcome) {
		return nil, errors.NewInvalidStatusTransition(string(tx.Status), string(outcome))
	}

	if err := s.store.Transactions().UpdateTransactionStatus(tx.ID, outcome); err != nil {
		return nil, err
	}

	s.logger.Info("External transfer settled", "transaction_id", tx.ID, "outcome", outcome)
	tx.Status = outcome
	return tx, nil
}

func (s *TransactionService) requesterInvolved(tx *domain.Transaction, requester uuid.UUID) (bool, error) {
	for _, accountID := range []*uuid.UUID{tx.SourceAccountID, tx.DestinationAccountID} {
		if accountID == nil {
			continue
		}
		account, err := s.store.Accounts().GetAccountByID(*accountID)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.AccountNotFound {
				continue
			}
			return false, err
		}
		if account.OwnedBy(requester) {
			return true, nil
		}
	}
	return false, nil
}
