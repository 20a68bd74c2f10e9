package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore = "store"
	errorSubjectWallet  = "wallet"
	errorSubjectEntry   = "entry"
	errorSubjectRequest = "request"
	errorSubjectReport  = "report"
	errorCodeCreate     = "create"
	errorCodeGet        = "get"
	errorCodeInsert     = "insert"
	errorCodeList       = "list"
	errorCodeUpdate     = "update"
	errorCodeConflict   = "conflict"
	errorCodePurge      = "purge"
	errorCodeAggregate  = "aggregate"
)

// Store implements coinledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the three tables this store owns.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&Wallet{}, &LedgerEntry{}, &PurchaseRequest{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore coinledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// GetOrCreateWallet returns the user's wallet, creating a zero-balance row
// seeded with the profile snapshot on first use. A concurrent creator
// winning the insert race is resolved by re-reading the row.
func (store *Store) GetOrCreateWallet(ctx context.Context, userID string, profile coinledger.OwnerProfile) (coinledger.Wallet, error) {
	var model Wallet
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
	if err == nil {
		return toWallet(model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, persistenceError(err))
	}

	model = Wallet{
		UserID:       userID,
		Balance:      0,
		OwnerName:    profile.DisplayName,
		OwnerContact: profile.Contact,
	}
	createErr := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(createErr) {
		if err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error; err != nil {
			return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, persistenceError(err))
		}
		return toWallet(model), nil
	}
	if createErr != nil {
		return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeCreate, persistenceError(createErr))
	}
	return toWallet(model), nil
}

func (store *Store) GetWallet(ctx context.Context, userID string) (coinledger.Wallet, error) {
	var model Wallet
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, coinledger.ErrWalletNotFound)
	}
	if err != nil {
		return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, persistenceError(err))
	}
	return toWallet(model), nil
}

func (store *Store) GetWalletForUpdate(ctx context.Context, userID string) (coinledger.Wallet, error) {
	var model Wallet
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, coinledger.ErrWalletNotFound)
	}
	if err != nil {
		return coinledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, persistenceError(err))
	}
	return toWallet(model), nil
}

// UpdateWalletBalance writes the new balance conditionally on the observed
// one. A zero affected-row count means another writer got between the read
// and the write; the enclosing transaction must abort.
func (store *Store) UpdateWalletBalance(ctx context.Context, userID string, balanceBefore int64, balanceAfter int64) error {
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("user_id = ? AND balance = ?", userID, balanceBefore).
		Update("balance", balanceAfter)
	if result.Error != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, persistenceError(result.Error))
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeConflict, fmt.Errorf("%w: stale balance for %s", coinledger.ErrPersistence, userID))
	}
	return nil
}

func (store *Store) InsertEntry(ctx context.Context, entry coinledger.LedgerEntry) error {
	var payment datatypes.JSON
	if entry.Payment != nil {
		raw, err := json.Marshal(entry.Payment)
		if err != nil {
			return wrapStoreError(errorSubjectEntry, errorCodeInsert, fmt.Errorf("%w: %v", coinledger.ErrPersistence, err))
		}
		payment = datatypes.JSON(raw)
	}
	model := LedgerEntry{
		UserID:        entry.UserID,
		Kind:          entry.Kind.String(),
		Amount:        entry.Amount,
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		Description:   entry.Description,
		ReferenceID:   entry.ReferenceID,
		AdminNote:     entry.AdminNote,
		Payment:       payment,
		CreatedAt:     entry.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, persistenceError(err))
	}
	return nil
}

func (store *Store) ListEntries(ctx context.Context, userID string, limit int) ([]coinledger.LedgerEntry, error) {
	var rows []LedgerEntry
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("entry_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, persistenceError(err))
	}
	entries := make([]coinledger.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := toEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) CreatePurchaseRequest(ctx context.Context, request coinledger.PurchaseRequest) (coinledger.PurchaseRequest, error) {
	model := PurchaseRequest{
		RequestID:        request.RequestID,
		RequesterID:      request.RequesterID,
		PackageID:        request.PackageID,
		CoinAmount:       request.CoinAmount,
		PaidAmount:       request.PaidAmount,
		PaymentMethod:    request.PaymentMethod,
		PaymentReference: request.PaymentReference,
		Status:           request.Status.String(),
		RequestedAt:      request.RequestedAt,
		AdminNote:        request.AdminNote,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return coinledger.PurchaseRequest{}, wrapStoreError(errorSubjectRequest, errorCodeCreate, persistenceError(err))
	}
	return toRequest(model)
}

func (store *Store) GetPurchaseRequest(ctx context.Context, requestID string) (coinledger.PurchaseRequest, error) {
	return store.getPurchaseRequest(ctx, requestID, false)
}

func (store *Store) GetPurchaseRequestForUpdate(ctx context.Context, requestID string) (coinledger.PurchaseRequest, error) {
	return store.getPurchaseRequest(ctx, requestID, true)
}

func (store *Store) getPurchaseRequest(ctx context.Context, requestID string, forUpdate bool) (coinledger.PurchaseRequest, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model PurchaseRequest
	err := query.Where("request_id = ?", requestID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return coinledger.PurchaseRequest{}, wrapStoreError(errorSubjectRequest, errorCodeGet, fmt.Errorf("%w: unknown request %s", coinledger.ErrInvalidStatusTransition, requestID))
	}
	if err != nil {
		return coinledger.PurchaseRequest{}, wrapStoreError(errorSubjectRequest, errorCodeGet, persistenceError(err))
	}
	return toRequest(model)
}

// UpdatePurchaseRequestStatus flips status conditionally on the expected
// current state; zero affected rows means the transition already happened.
func (store *Store) UpdatePurchaseRequestStatus(ctx context.Context, requestID string, from coinledger.RequestStatus, to coinledger.RequestStatus, processedAt time.Time, adminNote string) error {
	result := store.db.WithContext(ctx).
		Model(&PurchaseRequest{}).
		Where("request_id = ? AND status = ?", requestID, from.String()).
		Updates(map[string]interface{}{
			"status":       to.String(),
			"processed_at": processedAt,
			"admin_note":   adminNote,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRequest, errorCodeUpdate, persistenceError(result.Error))
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRequest, errorCodeUpdate, coinledger.ErrInvalidStatusTransition)
	}
	return nil
}

func (store *Store) ListPurchaseRequestsByStatus(ctx context.Context, status coinledger.RequestStatus, limit int) ([]coinledger.PurchaseRequest, error) {
	var rows []PurchaseRequest
	err := store.db.WithContext(ctx).
		Where("status = ?", status.String()).
		Order("requested_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRequest, errorCodeList, persistenceError(err))
	}
	return toRequests(rows)
}

func (store *Store) ListPurchaseRequestsByRequester(ctx context.Context, requesterID string, limit int) ([]coinledger.PurchaseRequest, error) {
	var rows []PurchaseRequest
	err := store.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("requested_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRequest, errorCodeList, persistenceError(err))
	}
	return toRequests(rows)
}

func (store *Store) SumBalances(ctx context.Context) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Select("coalesce(sum(balance),0) as total").
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectReport, errorCodeAggregate, persistenceError(err))
	}
	return sum.Total, nil
}

func (store *Store) CountRequestsByStatus(ctx context.Context) (map[coinledger.RequestStatus]int64, error) {
	var rows []groupCount
	err := store.db.WithContext(ctx).
		Model(&PurchaseRequest{}).
		Select("status as label, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReport, errorCodeAggregate, persistenceError(err))
	}
	counts := make(map[coinledger.RequestStatus]int64, len(rows))
	for _, row := range rows {
		status, err := coinledger.ParseRequestStatus(row.Label)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReport, errorCodeAggregate, err)
		}
		counts[status] = row.Total
	}
	return counts, nil
}

func (store *Store) CountEntriesByKind(ctx context.Context) (map[coinledger.TransactionKind]int64, error) {
	var rows []groupCount
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("kind as label, count(*) as total").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReport, errorCodeAggregate, persistenceError(err))
	}
	counts := make(map[coinledger.TransactionKind]int64, len(rows))
	for _, row := range rows {
		kind, err := coinledger.ParseTransactionKind(row.Label)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReport, errorCodeAggregate, err)
		}
		counts[kind] = row.Total
	}
	return counts, nil
}

func (store *Store) TopSpenders(ctx context.Context, limit int) ([]coinledger.SpenderTotal, error) {
	var rows []spenderRow
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("ledger_entries.user_id as user_id, wallets.owner_name as owner_name, coalesce(sum(-ledger_entries.amount),0) as spent_coins").
		Joins("join wallets on wallets.user_id = ledger_entries.user_id").
		Where("ledger_entries.amount < 0").
		Group("ledger_entries.user_id, wallets.owner_name").
		Order("spent_coins DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReport, errorCodeAggregate, persistenceError(err))
	}
	totals := make([]coinledger.SpenderTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, coinledger.SpenderTotal{
			UserID:     row.UserID,
			OwnerName:  row.OwnerName,
			SpentCoins: row.SpentCoins,
		})
	}
	return totals, nil
}

// PurgeUser removes the wallet, its ledger entries, and its purchase
// requests together. Reserved for the account-deletion collaborator.
func (store *Store) PurgeUser(ctx context.Context, userID string) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore coinledger.Store) error {
		transaction := txStore.(*Store).db
		if err := transaction.WithContext(ctx).Where("user_id = ?", userID).Delete(&LedgerEntry{}).Error; err != nil {
			return wrapStoreError(errorSubjectEntry, errorCodePurge, persistenceError(err))
		}
		if err := transaction.WithContext(ctx).Where("requester_id = ?", userID).Delete(&PurchaseRequest{}).Error; err != nil {
			return wrapStoreError(errorSubjectRequest, errorCodePurge, persistenceError(err))
		}
		if err := transaction.WithContext(ctx).Where("user_id = ?", userID).Delete(&Wallet{}).Error; err != nil {
			return wrapStoreError(errorSubjectWallet, errorCodePurge, persistenceError(err))
		}
		return nil
	})
}

func wrapStoreError(subject string, code string, err error) error {
	return coinledger.WrapError(errorOperationStore, subject, code, err)
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %v", coinledger.ErrPersistence, err)
}

type sqlSum struct {
	Total int64
}

type groupCount struct {
	Label string
	Total int64
}

type spenderRow struct {
	UserID     string
	OwnerName  string
	SpentCoins int64
}

func toWallet(model Wallet) coinledger.Wallet {
	return coinledger.Wallet{
		UserID:       model.UserID,
		Balance:      model.Balance,
		OwnerName:    model.OwnerName,
		OwnerContact: model.OwnerContact,
		CreatedAt:    model.CreatedAt,
	}
}

func toEntry(model LedgerEntry) (coinledger.LedgerEntry, error) {
	kind, err := coinledger.ParseTransactionKind(model.Kind)
	if err != nil {
		return coinledger.LedgerEntry{}, err
	}
	var payment *coinledger.PaymentDetails
	if len(model.Payment) > 0 {
		payment = &coinledger.PaymentDetails{}
		if err := json.Unmarshal(model.Payment, payment); err != nil {
			return coinledger.LedgerEntry{}, fmt.Errorf("%w: %v", coinledger.ErrPersistence, err)
		}
	}
	return coinledger.LedgerEntry{
		EntryID:       model.EntryID,
		UserID:        model.UserID,
		Kind:          kind,
		Amount:        model.Amount,
		BalanceBefore: model.BalanceBefore,
		BalanceAfter:  model.BalanceAfter,
		Description:   model.Description,
		ReferenceID:   model.ReferenceID,
		AdminNote:     model.AdminNote,
		Payment:       payment,
		CreatedAt:     model.CreatedAt,
	}, nil
}

func toRequest(model PurchaseRequest) (coinledger.PurchaseRequest, error) {
	status, err := coinledger.ParseRequestStatus(model.Status)
	if err != nil {
		return coinledger.PurchaseRequest{}, err
	}
	return coinledger.PurchaseRequest{
		RequestID:        model.RequestID,
		RequesterID:      model.RequesterID,
		PackageID:        model.PackageID,
		CoinAmount:       model.CoinAmount,
		PaidAmount:       model.PaidAmount,
		PaymentMethod:    model.PaymentMethod,
		PaymentReference: model.PaymentReference,
		Status:           status,
		RequestedAt:      model.RequestedAt,
		ProcessedAt:      model.ProcessedAt,
		AdminNote:        model.AdminNote,
	}, nil
}

func toRequests(rows []PurchaseRequest) ([]coinledger.PurchaseRequest, error) {
	requests := make([]coinledger.PurchaseRequest, 0, len(rows))
	for _, row := range rows {
		request, err := toRequest(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRequest, errorCodeList, err)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
