package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-core/internal/cache"
	"banking-core/internal/domain"
	"banking-core/internal/errors"
)

func newTestServices(store *memStore) (*AccountService, *TransferService) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := NewAccountService(store, cache.NewMemoryCache(), logger)
	transfers := NewTransferService(store, accounts, logger)
	return accounts, transfers
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok, "expected *errors.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
}

func balanceOf(t *testing.T, store *memStore, id uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := store.GetAccountByID(id)
	require.NoError(t, err)
	return account.Balance
}

func TestTransferInternalSuccess(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "10")

	tx, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("40"),
		Currency:    "USD",
		Requester:   owner,
	})
	require.NoError(t, err)

	assert.True(t, mustDecimal("60").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("50").Equal(balanceOf(t, store, dest.ID)))

	require.Equal(t, 1, store.transactionCount())
	assert.True(t, mustDecimal("40").Equal(tx.Amount))
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, domain.TypeTransfer, tx.Type)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
	require.NotNil(t, tx.SourceAccountID)
	require.NotNil(t, tx.DestinationAccountID)
	assert.Equal(t, source.ID, *tx.SourceAccountID)
	assert.Equal(t, dest.ID, *tx.DestinationAccountID)
	assert.Contains(t, tx.Description, source.AccountNumber)
}

func TestTransferResolvesAccountNumbers(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "0")

	tx, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.AccountNumber),
		Destination: domain.RefByIdentifier(dest.AccountNumber),
		Amount:      mustDecimal("25"),
		Currency:    "usd", // normalized
		Requester:   owner,
	})
	require.NoError(t, err)

	assert.Equal(t, "USD", tx.Currency)
	assert.True(t, mustDecimal("75").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("25").Equal(balanceOf(t, store, dest.ID)))
}

func TestTransferInvalidAmount(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "10")

	for _, amount := range []string{"0", "-5"} {
		_, err := transfers.Transfer(&TransferRequest{
			Source:      domain.RefByIdentifier(source.ID.String()),
			Destination: domain.RefByIdentifier(dest.ID.String()),
			Amount:      mustDecimal(amount),
			Currency:    "USD",
			Requester:   owner,
		})
		requireCode(t, err, errors.InvalidAmount)
	}

	assert.True(t, mustDecimal("100").Equal(balanceOf(t, store, source.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferSameAccount(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")

	// Same account named two different ways still resolves to itself.
	_, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(source.AccountNumber),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.SameAccountTransfer)

	assert.True(t, mustDecimal("100").Equal(balanceOf(t, store, source.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferCurrencyMismatch(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "NGN", "10")

	// Requested currency disagrees with the source account.
	_, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("10"),
		Currency:    "NGN",
		Requester:   owner,
	})
	requireCode(t, err, errors.CurrencyMismatch)

	// Requested currency matches the source but not the destination.
	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.CurrencyMismatch)

	assert.True(t, mustDecimal("100").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("10").Equal(balanceOf(t, store, dest.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferInsufficientFunds(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "10")
	dest := seedAccount(store, uuid.New(), "USD", "5")

	_, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("50"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.InsufficientFunds)

	assert.True(t, mustDecimal("10").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("5").Equal(balanceOf(t, store, dest.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferUnauthorized(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	source := seedAccount(store, uuid.New(), "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "10")

	_, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   uuid.New(), // not the owner
	})
	requireCode(t, err, errors.Unauthorized)
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferSourceNotFound(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	dest := seedAccount(store, uuid.New(), "USD", "10")

	_, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(uuid.NewString()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   uuid.New(),
	})
	requireCode(t, err, errors.AccountNotFound)
}

func TestTransferFrozenAccounts(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "10")

	frozen, err := store.GetAccountByID(source.ID)
	require.NoError(t, err)
	frozen.Status = domain.AccountStatusFrozen
	require.NoError(t, store.UpdateAccount(frozen))

	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.AccountStatus)

	// Thaw the source, freeze the destination: the credit check refuses it.
	frozen.Status = domain.AccountStatusUnrestricted
	require.NoError(t, store.UpdateAccount(frozen))
	frozenDest, err := store.GetAccountByID(dest.ID)
	require.NoError(t, err)
	frozenDest.Status = domain.AccountStatusFrozen
	require.NoError(t, store.UpdateAccount(frozenDest))

	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.AccountStatus)

	assert.True(t, mustDecimal("100").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("10").Equal(balanceOf(t, store, dest.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferDailyLimit(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "1000")
	dest := seedAccount(store, uuid.New(), "USD", "0")

	limited, err := store.GetAccountByID(source.ID)
	require.NoError(t, err)
	limit := mustDecimal("50")
	limited.DailyDebitLimit = &limit
	require.NoError(t, store.UpdateAccount(limited))

	// First transfer consumes most of the daily allowance.
	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("40"),
		Currency:    "USD",
		Requester:   owner,
	})
	require.NoError(t, err)

	// The second would push cumulative usage past the limit.
	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("20"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.DailyLimitExceeded)

	assert.True(t, mustDecimal("960").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("40").Equal(balanceOf(t, store, dest.ID)))
	assert.Equal(t, 1, store.transactionCount())
}

func TestTransferDailyLimitResetsNextDay(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "1000")
	dest := seedAccount(store, uuid.New(), "USD", "0")

	limited, err := store.GetAccountByID(source.ID)
	require.NoError(t, err)
	limit := mustDecimal("50")
	yesterday := time.Now().UTC().Add(-48 * time.Hour)
	limited.DailyDebitLimit = &limit
	limited.DailyDebitTotal = mustDecimal("45")
	limited.LastDebitDate = &yesterday
	require.NoError(t, store.UpdateAccount(limited))

	// Yesterday's usage no longer counts against today's allowance.
	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("50"),
		Currency:    "USD",
		Requester:   owner,
	})
	require.NoError(t, err)

	refreshed, err := store.GetAccountByID(source.ID)
	require.NoError(t, err)
	assert.True(t, mustDecimal("50").Equal(refreshed.DailyDebitTotal))
}

func TestTransferBalanceLimitExceeded(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "90")

	capped, err := store.GetAccountByID(dest.ID)
	require.NoError(t, err)
	ceiling := mustDecimal("100")
	capped.BalanceLimit = &ceiling
	require.NoError(t, store.UpdateAccount(capped))

	_, err = transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("20"),
		Currency:    "USD",
		Requester:   owner,
	})
	requireCode(t, err, errors.BalanceLimitExceeded)

	assert.True(t, mustDecimal("100").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("90").Equal(balanceOf(t, store, dest.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferExternal(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")

	tx, err := transfers.Transfer(&TransferRequest{
		Source:   domain.RefByIdentifier(source.ID.String()),
		Amount:   mustDecimal("30"),
		Currency: "USD",
		ExternalDetails: &domain.ExternalDetails{
			BankName:      "First Bank",
			AccountNumber: "0123456789",
			AccountName:   "Jane Doe",
		},
		Requester: owner,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingExternal, tx.Status)
	assert.Nil(t, tx.DestinationAccountID)
	require.NotNil(t, tx.ExternalDetails)
	assert.Equal(t, "First Bank", tx.ExternalDetails.BankName)
	assert.True(t, mustDecimal("70").Equal(balanceOf(t, store, source.ID)))
	assert.Equal(t, 1, store.transactionCount())
}

func TestTransferExternalMissingFields(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")

	for _, details := range []*domain.ExternalDetails{
		{AccountNumber: "0123456789"}, // missing bank name
		{BankName: "First Bank"},      // missing account number
		{BankName: "  ", AccountNumber: " "},
	} {
		_, err := transfers.Transfer(&TransferRequest{
			Source:          domain.RefByIdentifier(source.ID.String()),
			Amount:          mustDecimal("30"),
			Currency:        "USD",
			ExternalDetails: details,
			Requester:       owner,
		})
		requireCode(t, err, errors.ExternalTransferValidation)
	}

	assert.True(t, mustDecimal("100").Equal(balanceOf(t, store, source.ID)))
	assert.Equal(t, 0, store.transactionCount())
}

func TestTransferNoDestination(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")

	_, err := transfers.Transfer(&TransferRequest{
		Source:    domain.RefByIdentifier(source.ID.String()),
		Amount:    mustDecimal("30"),
		Currency:  "USD",
		Requester: owner,
	})
	requireCode(t, err, errors.InvalidInput)
}

func TestTransferIdempotencyReplay(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "0")

	key := uuid.New()
	req := &TransferRequest{
		Source:         domain.RefByIdentifier(source.ID.String()),
		Destination:    domain.RefByIdentifier(dest.ID.String()),
		Amount:         mustDecimal("40"),
		Currency:       "USD",
		Requester:      owner,
		IdempotencyKey: &key,
	}

	first, err := transfers.Transfer(req)
	require.NoError(t, err)

	second, err := transfers.Transfer(req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// Money moved exactly once.
	assert.True(t, mustDecimal("60").Equal(balanceOf(t, store, source.ID)))
	assert.True(t, mustDecimal("40").Equal(balanceOf(t, store, dest.ID)))
	assert.Equal(t, 1, store.transactionCount())
}

func TestTransferDatabaseUnavailable(t *testing.T) {
	store := newMemStore()
	store.available = false
	_, transfers := newTestServices(store)

	_, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(uuid.NewString()),
		Destination: domain.RefByIdentifier(uuid.NewString()),
		Amount:      mustDecimal("10"),
		Currency:    "USD",
		Requester:   uuid.New(),
	})
	requireCode(t, err, errors.DatabaseUnavailable)
}

func TestTransferCustomDescriptionAndMetadata(t *testing.T) {
	store := newMemStore()
	_, transfers := newTestServices(store)

	owner := uuid.New()
	source := seedAccount(store, owner, "USD", "100")
	dest := seedAccount(store, uuid.New(), "USD", "0")

	tx, err := transfers.Transfer(&TransferRequest{
		Source:      domain.RefByIdentifier(source.ID.String()),
		Destination: domain.RefByIdentifier(dest.ID.String()),
		Amount:      mustDecimal("5"),
		Currency:    "USD",
		Requester:   owner,
		Description: "rent, August",
		Metadata:    map[string]string{"invoice": "INV-42"},
	})
	require.NoError(t, err)

	assert.Equal(t, "rent, August", tx.Description)
	assert.Equal(t, "INV-42", tx.Metadata["invoice"])
}
