package repository

import (
	"database/sql"
	"log/slog"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

// Store is the Postgres-backed unit-of-work coordinator. A Store built with
// NewStore runs against the connection pool; WithTransaction hands the
// callback a Store bound to a single database transaction.
type Store struct {
	db       *sql.DB
	executor SQLExecutor
	logger   *slog.Logger
}

// NewStore creates a Store over the given database handle. A nil handle
// yields a Store that reports itself unavailable, so callers fail fast
// instead of consulting process-wide state.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	s := &Store{
		db:     db,
		logger: logger,
	}
	if db != nil {
		s.executor = db
	}
	return s
}

// Accounts returns an AccountRepository using the current executor.
func (s *Store) Accounts() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

// Transactions returns a TransactionRepository using the current executor.
func (s *Store) Transactions() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

// Available reports whether the durable store can be reached.
func (s *Store) Available() bool {
	return s.db != nil && s.db.Ping() == nil
}

// WithTransaction executes fn within a database transaction. The transaction
// commits only when fn returns nil; any error or panic rolls it back, so no
// partial balance or ledger state ever becomes visible.
func (s *Store) WithTransaction(fn func(domain.Store) error) error {
	if s.db == nil {
		return errors.NewDatabaseUnavailable("begin transaction")
	}
	// Nested units of work are a programming error, not a runtime condition.
	if _, ok := s.executor.(*sql.Tx); ok {
		return errors.NewAppError(errors.InternalError, "unit of work already open")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewDatabaseUnavailable("begin transaction").WithDetails(err.Error())
	}

	txStore := &Store{
		db:       s.db,
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	return tx.Commit()
}

var _ domain.Store = (*Store)(nil)
