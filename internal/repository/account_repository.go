package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

const accountColumns = `
	id, user_id, account_number, type, currency, balance, status, status_reason,
	balance_limit, daily_debit_limit, daily_debit_total, last_debit_date,
	created_at, updated_at
`

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) CreateAccount(account *domain.Account) error {
	query := `
		INSERT INTO accounts
		(id, user_id, account_number, type, currency, balance, status, status_reason,
		 balance_limit, daily_debit_limit, daily_debit_total, last_debit_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	now := time.Now().UTC()
	_, err := r.db.Exec(
		query,
		account.ID,
		account.UserID,
		account.AccountNumber,
		account.Type,
		account.Currency,
		account.Balance.String(),
		account.Status,
		account.StatusReason,
		nullDecimal(account.BalanceLimit),
		nullDecimal(account.DailyDebitLimit),
		account.DailyDebitTotal.String(),
		account.LastDebitDate,
		now,
		now,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			r.logger.Warn("Duplicate account creation attempt", "account_number", account.AccountNumber)
			return errors.ErrDuplicateAccount
		}
		r.logger.Error("Failed to create account", "account_id", account.ID, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to create account").WithDetails(err.Error())
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	r.logger.Info("Account created", "account_id", account.ID, "account_number", account.AccountNumber)
	return nil
}

func (r *accountRepository) GetAccountByID(id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(query, id)
}

func (r *accountRepository) GetAccountByNumber(number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return r.scanAccount(query, number)
}

// GetAccountForUpdate locks the account row for the remainder of the unit of
// work. Concurrent transfers against the same account serialize on this lock.
func (r *accountRepository) GetAccountForUpdate(id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return r.scanAccount(query, id)
}

func (r *accountRepository) scanAccount(query string, arg interface{}) (*domain.Account, error) {
	account, err := scanAccountRow(r.db.QueryRow(query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Account not found", "identifier", arg)
			return nil, errors.NewAccountNotFound(identifierString(arg))
		}
		r.logger.Error("Failed to get account", "identifier", arg, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get account").WithDetails(err.Error())
	}
	return account, nil
}

func (r *accountRepository) ListAccountsByUser(userID uuid.UUID) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		r.logger.Error("Failed to list accounts", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list accounts").WithDetails(err.Error())
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan account").WithDetails(err.Error())
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list accounts").WithDetails(err.Error())
	}
	return accounts, nil
}

// UpdateAccount persists the mutable fields: balance, usage counters, status
// and limits. Timestamps are bumped here so callers never forget.
func (r *accountRepository) UpdateAccount(account *domain.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, status = $2, status_reason = $3, balance_limit = $4,
		    daily_debit_limit = $5, daily_debit_total = $6, last_debit_date = $7, updated_at = $8
		WHERE id = $9
	`

	now := time.Now().UTC()
	result, err := r.db.Exec(
		query,
		account.Balance.String(),
		account.Status,
		account.StatusReason,
		nullDecimal(account.BalanceLimit),
		nullDecimal(account.DailyDebitLimit),
		account.DailyDebitTotal.String(),
		account.LastDebitDate,
		now,
		account.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update account", "account_id", account.ID, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to update account").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		r.logger.Warn("No account found to update", "account_id", account.ID)
		return errors.NewAccountNotFound(account.ID.String())
	}

	account.UpdatedAt = now
	return nil
}

func (r *accountRepository) DeleteAccount(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete account", "account_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to delete account").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		return errors.NewAccountNotFound(id.String())
	}

	r.logger.Info("Account deleted", "account_id", id)
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr, usageStr string
	var balanceLimit, dailyDebitLimit sql.NullString
	var lastDebitDate sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.AccountNumber,
		&account.Type,
		&account.Currency,
		&balanceStr,
		&account.Status,
		&account.StatusReason,
		&balanceLimit,
		&dailyDebitLimit,
		&usageStr,
		&lastDebitDate,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if account.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, err
	}
	if account.DailyDebitTotal, err = decimal.NewFromString(usageStr); err != nil {
		return nil, err
	}
	if account.BalanceLimit, err = parseNullDecimal(balanceLimit); err != nil {
		return nil, err
	}
	if account.DailyDebitLimit, err = parseNullDecimal(dailyDebitLimit); err != nil {
		return nil, err
	}
	if lastDebitDate.Valid {
		t := lastDebitDate.Time
		account.LastDebitDate = &t
	}

	return &account, nil
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func identifierString(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		return v
	case uuid.UUID:
		return v.String()
	default:
		return "unknown"
	}
}
