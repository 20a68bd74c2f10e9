package coinledger

import (
	"context"
	"fmt"
	"time"
)

// Service is the single state-transition authority over wallets and their
// ledger. Every balance mutation flows through it and commits together with
// exactly one ledger entry.
type Service struct {
	store     Store
	catalog   PackageCatalog
	directory IdentityDirectory
	nowFn     func() time.Time
	logger    OperationLogger
	locks     *walletLocker
}

// EntryOptions carries the optional attributes of a ledger entry.
type EntryOptions struct {
	ReferenceID string
	AdminNote   string
	Payment     *PaymentDetails
}

// NewService wires a Service.
func NewService(store Store, catalog PackageCatalog, directory IdentityDirectory, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if directory == nil {
		return nil, fmt.Errorf("%w: directory dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:     store,
		catalog:   catalog,
		directory: directory,
		nowFn:     now,
		locks:     newWalletLocker(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// GetOrCreateWallet returns the user's wallet, creating it with a zero
// balance and a point-in-time profile snapshot on first use.
func (service *Service) GetOrCreateWallet(ctx context.Context, userID UserID) (Wallet, error) {
	profile, err := service.directory.Profile(ctx, userID.String())
	if err != nil {
		return Wallet{}, WrapError(operationCredit, "directory", "profile", err)
	}
	return service.store.GetOrCreateWallet(ctx, userID.String(), profile)
}

// GetWallet returns the user's wallet or ErrWalletNotFound.
func (service *Service) GetWallet(ctx context.Context, userID UserID) (Wallet, error) {
	return service.store.GetWallet(ctx, userID.String())
}

// Balance returns the user's current coin balance or ErrWalletNotFound.
func (service *Service) Balance(ctx context.Context, userID UserID) (int64, error) {
	wallet, err := service.store.GetWallet(ctx, userID.String())
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// Credit adds coins to the user's wallet, creating it if needed, and writes
// the paired ledger entry in the same atomic unit. Returns the new balance.
func (service *Service) Credit(ctx context.Context, userID UserID, amount CoinAmount, kind TransactionKind, description string, options EntryOptions) (int64, error) {
	if _, err := ParseTransactionKind(kind.String()); err != nil {
		return 0, err
	}
	profile, err := service.directory.Profile(ctx, userID.String())
	if err != nil {
		return 0, WrapError(operationCredit, "directory", "profile", err)
	}

	unlock := service.locks.lock(userID.String())
	defer unlock()

	var newBalance int64
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		balance, err := service.applyCredit(ctx, transactionStore, userID.String(), profile, amount.Int64(), kind, description, options)
		if err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCredit,
		UserID:    userID.String(),
		Kind:      kind,
		Amount:    amount.Int64(),
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return newBalance, nil
}

// Debit removes coins from the user's wallet if the balance covers the
// amount; the check and the write are one indivisible unit per wallet.
// Returns the new balance.
func (service *Service) Debit(ctx context.Context, userID UserID, amount CoinAmount, kind TransactionKind, description string, options EntryOptions) (int64, error) {
	if _, err := ParseTransactionKind(kind.String()); err != nil {
		return 0, err
	}

	unlock := service.locks.lock(userID.String())
	defer unlock()

	var newBalance int64
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		balance, err := service.applyDebit(ctx, transactionStore, userID.String(), amount.Int64(), kind, description, options)
		if err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDebit,
		UserID:    userID.String(),
		Kind:      kind,
		Amount:    amount.Int64(),
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return newBalance, nil
}

// Transfer moves coins between two wallets as a single atomic unit: the
// sender's debit and the receiver's credit commit together or not at all.
// Returns the receiver's new balance.
func (service *Service) Transfer(ctx context.Context, fromUserID UserID, toUserID UserID, amount CoinAmount, description string) (int64, error) {
	if fromUserID.String() == toUserID.String() {
		return 0, fmt.Errorf("%w: cannot transfer to the same wallet", ErrValidation)
	}
	receiverProfile, err := service.directory.Profile(ctx, toUserID.String())
	if err != nil {
		return 0, WrapError(operationTransfer, "directory", "profile", err)
	}

	unlock := service.locks.lockPair(fromUserID.String(), toUserID.String())
	defer unlock()

	var receiverBalance int64
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := service.applyDebit(ctx, transactionStore, fromUserID.String(), amount.Int64(), KindTransfer, description, EntryOptions{ReferenceID: toUserID.String()}); err != nil {
			return err
		}
		balance, err := service.applyCredit(ctx, transactionStore, toUserID.String(), receiverProfile, amount.Int64(), KindTransfer, description, EntryOptions{ReferenceID: fromUserID.String()})
		if err != nil {
			return err
		}
		receiverBalance = balance
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:      operationTransfer,
		UserID:         fromUserID.String(),
		CounterpartyID: toUserID.String(),
		Kind:           KindTransfer,
		Amount:         amount.Int64(),
		Error:          operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return receiverBalance, nil
}

// ListTransactions returns the wallet's ledger entries, most recent first.
// A non-positive limit falls back to the default; the limit is capped.
func (service *Service) ListTransactions(ctx context.Context, userID UserID, limit int) ([]LedgerEntry, error) {
	if _, err := service.store.GetWallet(ctx, userID.String()); err != nil {
		return nil, err
	}
	return service.store.ListEntries(ctx, userID.String(), clampListLimit(limit))
}

// AddCoins is the admin-facing credit: gated on admin privilege and capped
// at the application-level adjustment maximum.
func (service *Service) AddCoins(ctx context.Context, actorID UserID, userID UserID, amount CoinAmount, note string) (int64, error) {
	if err := service.requireAdmin(ctx, actorID); err != nil {
		return 0, err
	}
	if amount.Int64() > maxAdminAdjustmentCoins {
		return 0, fmt.Errorf("%w: amount exceeds the %d coin cap", ErrValidation, maxAdminAdjustmentCoins)
	}
	return service.Credit(ctx, userID, amount, KindAdminCredit, "admin coin grant", EntryOptions{AdminNote: note})
}

// RemoveCoins is the admin-facing debit, gated and capped like AddCoins.
func (service *Service) RemoveCoins(ctx context.Context, actorID UserID, userID UserID, amount CoinAmount, note string) (int64, error) {
	if err := service.requireAdmin(ctx, actorID); err != nil {
		return 0, err
	}
	if amount.Int64() > maxAdminAdjustmentCoins {
		return 0, fmt.Errorf("%w: amount exceeds the %d coin cap", ErrValidation, maxAdminAdjustmentCoins)
	}
	return service.Debit(ctx, userID, amount, KindAdminDebit, "admin coin removal", EntryOptions{AdminNote: note})
}

func (service *Service) applyCredit(ctx context.Context, transactionStore Store, userID string, profile OwnerProfile, amount int64, kind TransactionKind, description string, options EntryOptions) (int64, error) {
	wallet, err := transactionStore.GetOrCreateWallet(ctx, userID, profile)
	if err != nil {
		return 0, err
	}
	newBalance := wallet.Balance + amount
	if err := transactionStore.UpdateWalletBalance(ctx, userID, wallet.Balance, newBalance); err != nil {
		return 0, err
	}
	entry := LedgerEntry{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  newBalance,
		Description:   description,
		ReferenceID:   options.ReferenceID,
		AdminNote:     options.AdminNote,
		Payment:       options.Payment,
		CreatedAt:     service.nowFn(),
	}
	if err := transactionStore.InsertEntry(ctx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (service *Service) applyDebit(ctx context.Context, transactionStore Store, userID string, amount int64, kind TransactionKind, description string, options EntryOptions) (int64, error) {
	wallet, err := transactionStore.GetWalletForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	if wallet.Balance < amount {
		return 0, ErrInsufficientBalance
	}
	newBalance := wallet.Balance - amount
	if err := transactionStore.UpdateWalletBalance(ctx, userID, wallet.Balance, newBalance); err != nil {
		return 0, err
	}
	entry := LedgerEntry{
		UserID:        userID,
		Kind:          kind,
		Amount:        -amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  newBalance,
		Description:   description,
		ReferenceID:   options.ReferenceID,
		AdminNote:     options.AdminNote,
		Payment:       options.Payment,
		CreatedAt:     service.nowFn(),
	}
	if err := transactionStore.InsertEntry(ctx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// RequireAdmin verifies the actor holds admin privilege; ErrAccessDenied
// otherwise. Exposed for callers composing admin-only operations.
func (service *Service) RequireAdmin(ctx context.Context, actorID UserID) error {
	return service.requireAdmin(ctx, actorID)
}

func (service *Service) requireAdmin(ctx context.Context, actorID UserID) error {
	isAdmin, err := service.directory.IsAdmin(ctx, actorID.String())
	if err != nil {
		return WrapError("admin", "directory", "lookup", err)
	}
	if !isAdmin {
		return fmt.Errorf("%w: admin privilege required", ErrAccessDenied)
	}
	return nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
