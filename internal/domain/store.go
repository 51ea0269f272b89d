package domain

// Store is the unit-of-work coordinator the services run against. Outside
// WithTransaction the repositories execute against the bare connection; the
// Store handed to fn is bound to a single database transaction that commits
// only if fn returns nil and is rolled back otherwise.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository

	// Available reports whether the durable store is reachable. Callers
	// fail fast before touching any account when it is not.
	Available() bool

	WithTransaction(fn func(Store) error) error
}
