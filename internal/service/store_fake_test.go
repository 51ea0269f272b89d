package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

// memStore is an in-memory domain.Store for unit tests. WithTransaction takes
// a snapshot of all state and restores it when the callback fails, so the
// rollback guarantees of the real unit of work hold here too.
type memStore struct {
	mu           sync.Mutex
	available    bool
	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction
	txOrder      []uuid.UUID

	// onBegin, when set, runs once at the start of the next WithTransaction.
	// Tests use it to commit a concurrent write between a caller's read and
	// its unit of work.
	onBegin func()
}

func newMemStore() *memStore {
	return &memStore{
		available:    true,
		accounts:     make(map[uuid.UUID]*domain.Account),
		transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

func (m *memStore) Accounts() domain.AccountRepository         { return m }
func (m *memStore) Transactions() domain.TransactionRepository { return m }
func (m *memStore) Available() bool                            { return m.available }

func (m *memStore) WithTransaction(fn func(domain.Store) error) error {
	if !m.available {
		return errors.NewDatabaseUnavailable("begin transaction")
	}

	if m.onBegin != nil {
		hook := m.onBegin
		m.onBegin = nil
		hook()
	}

	m.mu.Lock()
	accountsSnap := make(map[uuid.UUID]*domain.Account, len(m.accounts))
	for id, a := range m.accounts {
		accountsSnap[id] = cloneAccount(a)
	}
	transactionsSnap := make(map[uuid.UUID]*domain.Transaction, len(m.transactions))
	for id, t := range m.transactions {
		transactionsSnap[id] = cloneTransaction(t)
	}
	orderSnap := append([]uuid.UUID(nil), m.txOrder...)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.accounts = accountsSnap
		m.transactions = transactionsSnap
		m.txOrder = orderSnap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) CreateAccount(account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return errors.ErrDuplicateAccount
		}
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	m.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (m *memStore) GetAccountByID(id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, errors.NewAccountNotFound(id.String())
	}
	return cloneAccount(account), nil
}

func (m *memStore) GetAccountByNumber(number string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.AccountNumber == number {
			return cloneAccount(account), nil
		}
	}
	return nil, errors.NewAccountNotFound(number)
}

func (m *memStore) GetAccountForUpdate(id uuid.UUID) (*domain.Account, error) {
	return m.GetAccountByID(id)
}

func (m *memStore) ListAccountsByUser(userID uuid.UUID) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []*domain.Account
	for _, account := range m.accounts {
		if account.UserID == userID {
			accounts = append(accounts, cloneAccount(account))
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (m *memStore) UpdateAccount(account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; !ok {
		return errors.NewAccountNotFound(account.ID.String())
	}
	account.UpdatedAt = time.Now().UTC()
	m.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (m *memStore) DeleteAccount(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return errors.NewAccountNotFound(id.String())
	}
	delete(m.accounts, id)
	return nil
}

func (m *memStore) CreateTransaction(tx *domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return errors.NewAppError(errors.InvalidInput, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.IdempotencyKey != nil {
		for _, existing := range m.transactions {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *tx.IdempotencyKey {
				return errors.ErrDuplicateTransaction
			}
		}
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	m.transactions[tx.ID] = cloneTransaction(tx)
	m.txOrder = append(m.txOrder, tx.ID)
	return nil
}

func (m *memStore) GetTransactionByID(id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return cloneTransaction(tx), nil
}

func (m *memStore) GetTransactionByIdempotencyKey(key uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range m.transactions {
		if tx.IdempotencyKey != nil && *tx.IdempotencyKey == key {
			return cloneTransaction(tx), nil
		}
	}
	return nil, nil
}

func (m *memStore) ListTransactions(filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Transaction
	// Newest first, like the SQL ORDER BY created_at DESC.
	for i := len(m.txOrder) - 1; i >= 0; i-- {
		tx := m.transactions[m.txOrder[i]]
		if tx == nil {
			continue
		}
		if filter.AccountID != nil && !tx.InvolvesAccount(*filter.AccountID) {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneTransaction(tx))
	}

	if filter.Skip > 0 {
		if filter.Skip >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Skip:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memStore) UpdateTransactionStatus(id uuid.UUID, status domain.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return errors.NewTransactionNotFound(id.String())
	}
	tx.Status = status
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memStore) UpdateTransactionDescription(id uuid.UUID, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return errors.NewTransactionNotFound(id.String())
	}
	tx.Description = description
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memStore) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

func cloneAccount(a *domain.Account) *domain.Account {
	clone := *a
	if a.BalanceLimit != nil {
		v := *a.BalanceLimit
		clone.BalanceLimit = &v
	}
	if a.DailyDebitLimit != nil {
		v := *a.DailyDebitLimit
		clone.DailyDebitLimit = &v
	}
	if a.LastDebitDate != nil {
		v := *a.LastDebitDate
		clone.LastDebitDate = &v
	}
	return &clone
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	clone := *t
	if t.SourceAccountID != nil {
		v := *t.SourceAccountID
		clone.SourceAccountID = &v
	}
	if t.DestinationAccountID != nil {
		v := *t.DestinationAccountID
		clone.DestinationAccountID = &v
	}
	if t.IdempotencyKey != nil {
		v := *t.IdempotencyKey
		clone.IdempotencyKey = &v
	}
	if t.ExternalDetails != nil {
		v := *t.ExternalDetails
		clone.ExternalDetails = &v
	}
	if t.Metadata != nil {
		clone.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

var accountNumberSeq int

// seedAccount inserts an account directly into the fake store.
func seedAccount(store *memStore, userID uuid.UUID, currency, balance string) *domain.Account {
	accountNumberSeq++
	account := &domain.Account{
		ID:              uuid.New(),
		UserID:          userID,
		AccountNumber:   fmt.Sprintf("9%09d", accountNumberSeq),
		Type:            "savings",
		Currency:        currency,
		Balance:         mustDecimal(balance),
		Status:          domain.AccountStatusUnrestricted,
		DailyDebitTotal: decimal.Zero,
	}
	if err := store.CreateAccount(account); err != nil {
		panic(err)
	}
	return account
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
