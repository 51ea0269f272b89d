package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

const transactionColumns = `
	id, amount, currency, type, status, description, source_account_id,
	destination_account_id, external_details, metadata, idempotency_key,
	created_at, updated_at
`

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(tx *domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return errors.NewAppError(errors.InvalidInput, err.Error())
	}

	query := `
		INSERT INTO transactions
		(id, amount, currency, type, status, description, source_account_id,
		 destination_account_id, external_details, metadata, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	externalDetails, err := marshalNullable(tx.ExternalDetails)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode external details").WithDetails(err.Error())
	}
	metadata, err := marshalNullable(tx.Metadata)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode metadata").WithDetails(err.Error())
	}

	var idempotencyKey interface{}
	if tx.IdempotencyKey != nil {
		idempotencyKey = *tx.IdempotencyKey
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(
		query,
		tx.ID,
		tx.Amount.String(),
		tx.Currency,
		string(tx.Type),
		string(tx.Status),
		tx.Description,
		nullUUID(tx.SourceAccountID),
		nullUUID(tx.DestinationAccountID),
		externalDetails,
		metadata,
		idempotencyKey,
		now,
		now,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if pqErr.Constraint == "idx_transactions_idempotency_key" {
				r.logger.Warn("Duplicate idempotency key", "idempotency_key", tx.IdempotencyKey)
				return errors.ErrDuplicateTransaction
			}
		}
		r.logger.Error("Failed to create transaction",
			"source_account_id", tx.SourceAccountID,
			"destination_account_id", tx.DestinationAccountID,
			"amount", tx.Amount,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.logger.Info("Transaction recorded", "transaction_id", tx.ID, "status", tx.Status)
	return nil
}

func (r *transactionRepository) GetTransactionByID(id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanTransaction(r.db.QueryRow(query, id))
}

// GetTransactionByIdempotencyKey returns nil, nil when no transaction carries
// the key, so callers can distinguish "first attempt" without error plumbing.
func (r *transactionRepository) GetTransactionByIdempotencyKey(key uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return r.scanTransaction(r.db.QueryRow(query, key))
}

func (r *transactionRepository) ListTransactions(filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []interface{}

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		p := placeholder(len(args))
		query += ` AND (source_account_id = ` + p + ` OR destination_account_id = ` + p + `)`
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += ` AND type = ` + placeholder(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = ` + placeholder(len(args))
	}

	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))
	args = append(args, filter.Skip)
	query += ` OFFSET ` + placeholder(len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransactionRow(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan transaction").WithDetails(err.Error())
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}
	return transactions, nil
}

func (r *transactionRepository) UpdateTransactionStatus(id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, string(status), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update transaction status",
			"transaction_id", id, "status", status, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to update transaction status").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		return errors.NewTransactionNotFound(id.String())
	}

	r.logger.Info("Transaction status updated", "transaction_id", id, "status", status)
	return nil
}

func (r *transactionRepository) UpdateTransactionDescription(id uuid.UUID, description string) error {
	query := `UPDATE transactions SET description = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, description, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update transaction description", "transaction_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to update transaction description").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		return errors.NewTransactionNotFound(id.String())
	}
	return nil
}

func (r *transactionRepository) scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	tx, err := scanTransactionRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}
	return tx, nil
}

func scanTransactionRow(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amountStr, txType, txStatus string
	var sourceID, destID, idempotencyKey sql.NullString
	var externalDetails, metadata []byte

	err := row.Scan(
		&tx.ID,
		&amountStr,
		&tx.Currency,
		&txType,
		&txStatus,
		&tx.Description,
		&sourceID,
		&destID,
		&externalDetails,
		&metadata,
		&idempotencyKey,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, err
	}
	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(txStatus)

	if tx.SourceAccountID, err = parseNullUUID(sourceID); err != nil {
		return nil, err
	}
	if tx.DestinationAccountID, err = parseNullUUID(destID); err != nil {
		return nil, err
	}
	if tx.IdempotencyKey, err = parseNullUUID(idempotencyKey); err != nil {
		return nil, err
	}

	if len(externalDetails) > 0 {
		var details domain.ExternalDetails
		if err := json.Unmarshal(externalDetails, &details); err != nil {
			return nil, err
		}
		tx.ExternalDetails = &details
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, err
		}
	}

	return &tx, nil
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *domain.ExternalDetails:
		if val == nil {
			return nil, nil
		}
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
