package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-core/internal/cache"
	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

const accountNumberCacheTTL = 10 * time.Minute

// Default ceilings applied when an account is created without explicit limits.
var (
	defaultBalanceLimit    = decimal.NewFromInt(1_000_000)
	defaultDailyDebitLimit = decimal.NewFromInt(100_000)
)

// AccountService owns single-account business rules: resolution and
// authorization, debit/credit eligibility checks, and the balance mutations
// the transfer orchestrator runs inside its unit of work.
type AccountService struct {
	store  domain.Store
	cache  cache.Cache
	logger *slog.Logger
}

func NewAccountService(store domain.Store, c cache.Cache, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		cache:  c,
		logger: logger,
	}
}

type CreateAccountRequest struct {
	UserID          uuid.UUID
	Type            string
	CurrencyCode    string
	BalanceLimit    *decimal.Decimal
	DailyDebitLimit *decimal.Decimal
}

func (s *AccountService) CreateAccount(req *CreateAccountRequest) (*domain.Account, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("create_account")
	}

	accountType := strings.ToLower(req.Type)
	if !allowedAccountType(accountType) {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "account type must be one of: %s",
			strings.Join(domain.AllowedAccountTypes, ", "))
	}

	currency, ok := domain.SupportedCurrencies[strings.ToUpper(req.CurrencyCode)]
	if !ok {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "unsupported currency code: %s", req.CurrencyCode)
	}

	if req.BalanceLimit != nil && req.BalanceLimit.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidInput, "balance limit cannot be negative")
	}
	if req.DailyDebitLimit != nil && req.DailyDebitLimit.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidInput, "daily debit limit cannot be negative")
	}

	balanceLimit := req.BalanceLimit
	if balanceLimit == nil {
		v := defaultBalanceLimit
		balanceLimit = &v
	}
	dailyDebitLimit := req.DailyDebitLimit
	if dailyDebitLimit == nil {
		v := defaultDailyDebitLimit
		dailyDebitLimit = &v
	}

	account := &domain.Account{
		ID:              uuid.New(),
		UserID:          req.UserID,
		AccountNumber:   generateAccountNumber(req.UserID),
		Type:            accountType,
		Currency:        currency.Code,
		Balance:         decimal.Zero,
		Status:          domain.AccountStatusUnrestricted,
		BalanceLimit:    balanceLimit,
		DailyDebitLimit: dailyDebitLimit,
		DailyDebitTotal: decimal.Zero,
	}

	if err := s.store.Accounts().CreateAccount(account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", "account_id", account.ID, "user_id", req.UserID)
	return account, nil
}

// Resolve turns an AccountRef into an account using the supplied store (which
// may be transaction-bound), enforcing ownership when required. forUpdate
// requests a row lock and is only meaningful inside a unit of work.
func (s *AccountService) Resolve(store domain.Store, ref domain.AccountRef, requester uuid.UUID, requireOwnership, forUpdate bool) (*domain.Account, error) {
	account := ref.Resolved()
	if account == nil {
		var err error
		account, err = s.lookup(store, ref.Identifier(), forUpdate)
		if err != nil {
			return nil, err
		}
	}

	if requireOwnership && !account.OwnedBy(requester) {
		return nil, errors.NewUnauthorized("you do not have permission to operate on this account")
	}
	return account, nil
}

func (s *AccountService) lookup(store domain.Store, identifier string, forUpdate bool) (*domain.Account, error) {
	if identifier == "" {
		return nil, errors.ErrInvalidAccountID
	}

	id, err := uuid.Parse(identifier)
	if err != nil {
		// Not a UUID: treat it as an account number.
		id, err = s.resolveNumber(store, identifier)
		if err != nil {
			return nil, err
		}
	}

	if forUpdate {
		return store.Accounts().GetAccountForUpdate(id)
	}
	return store.Accounts().GetAccountByID(id)
}

// resolveNumber maps an account number to its ID, consulting the cache first.
func (s *AccountService) resolveNumber(store domain.Store, number string) (uuid.UUID, error) {
	ctx := context.Background()
	cacheKey := "account:number:" + number

	if cached, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
		if id, err := uuid.Parse(cached); err == nil {
			return id, nil
		}
	}

	account, err := store.Accounts().GetAccountByNumber(number)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, account.ID.String(), accountNumberCacheTTL); err != nil {
		s.logger.Warn("Failed to cache account number mapping", "account_number", number, "error", err)
	}
	return account.ID, nil
}

// CheckDebitConditions verifies status, funds and the daily debit limit.
// Currency agreement is checked by the orchestrator before this runs.
func (s *AccountService) CheckDebitConditions(account *domain.Account, amount decimal.Decimal) error {
	if account.Status != domain.AccountStatusUnrestricted {
		return errors.NewAccountStatus(account.ID.String(), "debit", account.Status, account.StatusReason)
	}

	if account.Balance.LessThan(amount) {
		return errors.NewInsufficientFunds(account.ID.String(), amount.String(), account.Balance.String())
	}

	if account.DailyDebitLimit != nil {
		spentToday := account.DebitUsageToday(time.Now())
		if spentToday.Add(amount).GreaterThan(*account.DailyDebitLimit) {
			return errors.NewDailyLimitExceeded(account.ID.String(),
				amount.String(), account.DailyDebitLimit.String(), spentToday.String())
		}
	}
	return nil
}

// CheckCreditConditions verifies the account can receive funds: frozen
// accounts are refused and the balance ceiling must hold.
func (s *AccountService) CheckCreditConditions(account *domain.Account, amount decimal.Decimal) error {
	if account.Status == domain.AccountStatusFrozen {
		return errors.NewAccountStatus(account.ID.String(), "credit", account.Status,
			"account is frozen and cannot receive funds")
	}

	if account.BalanceLimit != nil && account.Balance.Add(amount).GreaterThan(*account.BalanceLimit) {
		return errors.NewBalanceLimitExceeded(account.ID.String(),
			amount.String(), account.BalanceLimit.String(), account.Balance.String())
	}
	return nil
}

// PerformDebit decrements the balance and advances the daily usage counter,
// persisting through the supplied store. Checks must have passed already and
// the store must be transaction-bound; the change is durable only on commit.
func (s *AccountService) PerformDebit(store domain.Store, account *domain.Account, amount decimal.Decimal) error {
	now := time.Now().UTC()
	account.DailyDebitTotal = account.DebitUsageToday(now).Add(amount)
	today := now.Truncate(24 * time.Hour)
	account.LastDebitDate = &today
	account.Balance = account.Balance.Sub(amount)

	return store.Accounts().UpdateAccount(account)
}

// PerformCredit increments the balance under the same contract as PerformDebit.
func (s *AccountService) PerformCredit(store domain.Store, account *domain.Account, amount decimal.Decimal) error {
	account.Balance = account.Balance.Add(amount)
	return store.Accounts().UpdateAccount(account)
}

func (s *AccountService) GetAccount(identifier string, requester uuid.UUID, isAdmin bool) (*domain.Account, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("get_account")
	}

	account, err := s.lookup(s.store, identifier, false)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(requester) && !isAdmin {
		return nil, errors.NewUnauthorized("you do not have permission to view this account")
	}
	return account, nil
}

func (s *AccountService) ListUserAccounts(userID uuid.UUID) ([]*domain.Account, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("list_accounts")
	}
	return s.store.Accounts().ListAccountsByUser(userID)
}

// UpdateLimits changes the balance and/or daily debit ceilings. Owner only.
// The row is re-read under lock inside the unit of work so a transfer
// committing concurrently is never overwritten.
func (s *AccountService) UpdateLimits(identifier string, requester uuid.UUID, balanceLimit, dailyDebitLimit *decimal.Decimal) (*domain.Account, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("update_limits")
	}

	if balanceLimit == nil && dailyDebitLimit == nil {
		return s.GetAccount(identifier, requester, false)
	}
	if balanceLimit != nil && balanceLimit.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidInput, "balance limit cannot be negative")
	}
	if dailyDebitLimit != nil && dailyDebitLimit.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidInput, "daily debit limit cannot be negative")
	}

	var account *domain.Account
	err := s.store.WithTransaction(func(txStore domain.Store) error {
		var err error
		account, err = s.Resolve(txStore, domain.RefByIdentifier(identifier), requester, true, true)
		if err != nil {
			return err
		}
		if balanceLimit != nil {
			account.BalanceLimit = balanceLimit
		}
		if dailyDebitLimit != nil {
			account.DailyDebitLimit = dailyDebitLimit
		}
		return txStore.Accounts().UpdateAccount(account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateStatus changes an account's status. Administrative operation.
func (s *AccountService) UpdateStatus(identifier string, isAdmin bool, status, reason string) (*domain.Account, error) {
	if !s.store.Available() {
		return nil, errors.NewDatabaseUnavailable("update_status")
	}
	if !isAdmin {
		return nil, errors.NewUnauthorized("only administrators can change account status")
	}

	status = strings.ToLower(status)
	switch status {
	case domain.AccountStatusUnrestricted, domain.AccountStatusRestricted, domain.AccountStatusFrozen:
	default:
		return nil, errors.NewAppErrorf(errors.InvalidInput, "unknown account status: %s", status)
	}

	var account *domain.Account
	err := s.store.WithTransaction(func(txStore domain.Store) error {
		var err error
		account, err = s.Resolve(txStore, domain.RefByIdentifier(identifier), uuid.Nil, false, true)
		if err != nil {
			return err
		}
		account.Status = status
		account.StatusReason = reason
		return txStore.Accounts().UpdateAccount(account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account status updated", "account_id", account.ID, "status", status)
	return account, nil
}

// CloseAccount deletes an account. The balance is re-checked under a row lock
// so a credit landing between the read and the delete keeps the account alive.
func (s *AccountService) CloseAccount(identifier string, requester uuid.UUID, isAdmin bool) error {
	if !s.store.Available() {
		return errors.NewDatabaseUnavailable("close_account")
	}

	var account *domain.Account
	err := s.store.WithTransaction(func(txStore domain.Store) error {
		var err error
		account, err = s.Resolve(txStore, domain.RefByIdentifier(identifier), requester, !isAdmin, true)
		if err != nil {
			return err
		}
		if !account.Balance.IsZero() {
			return errors.NewAccountStatus(account.ID.String(), "close", account.Status,
				fmt.Sprintf("account balance (%s %s) is not zero", account.Balance, account.Currency))
		}
		return txStore.Accounts().DeleteAccount(account.ID)
	})
	if err != nil {
		return err
	}

	if err := s.cache.Delete(context.Background(), "account:number:"+account.AccountNumber); err != nil {
		s.logger.Warn("Failed to evict account number mapping", "account_number", account.AccountNumber, "error", err)
	}
	return nil
}

func allowedAccountType(t string) bool {
	for _, allowed := range domain.AllowedAccountTypes {
		if t == allowed {
			return true
		}
	}
	return false
}

// generateAccountNumber derives a 10-digit number from the owner and the
// current time, matching the numbering scheme of existing accounts.
func generateAccountNumber(userID uuid.UUID) string {
	seed := fmt.Sprintf("%d%d", userID.ID(), time.Now().UTC().UnixNano())
	return seed[len(seed)-10:]
}
