package coinledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UserID identifies a wallet owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty user id", ErrValidation)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// CoinAmount is a strictly positive number of coins.
type CoinAmount int64

// NewCoinAmount validates an amount and ensures it is strictly positive.
func NewCoinAmount(raw int64) (CoinAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	return CoinAmount(raw), nil
}

// Int64 returns the raw coin count.
func (amount CoinAmount) Int64() int64 {
	return int64(amount)
}

// TransactionKind enumerates ledger entry kinds.
type TransactionKind string

const (
	KindAdminCredit  TransactionKind = "admin_credit"
	KindAdminDebit   TransactionKind = "admin_debit"
	KindCoinPurchase TransactionKind = "coin_purchase"
	KindCoinUsage    TransactionKind = "coin_usage"
	KindReward       TransactionKind = "reward"
	KindRefund       TransactionKind = "refund"
	KindTransfer     TransactionKind = "transfer"
)

// ParseTransactionKind validates a raw kind against the closed enumeration.
func ParseTransactionKind(raw string) (TransactionKind, error) {
	kind := TransactionKind(strings.TrimSpace(raw))
	switch kind {
	case KindAdminCredit, KindAdminDebit, KindCoinPurchase, KindCoinUsage, KindReward, KindRefund, KindTransfer:
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, raw)
}

// String returns the stored enum value.
func (kind TransactionKind) String() string {
	return string(kind)
}

// RequestStatus enumerates purchase request states.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// ParseRequestStatus validates a raw status against the closed enumeration.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	status := RequestStatus(strings.TrimSpace(raw))
	switch status {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown request status %q", ErrValidation, raw)
}

// String returns the stored enum value.
func (status RequestStatus) String() string {
	return string(status)
}

// OwnerProfile is the display snapshot copied onto a wallet at creation time.
type OwnerProfile struct {
	DisplayName string
	Contact     string
}

// Wallet holds a user's non-negative coin balance.
type Wallet struct {
	UserID       string
	Balance      int64
	OwnerName    string
	OwnerContact string
	CreatedAt    time.Time
}

// PaymentDetails carries the optional payment metadata attached to a
// purchase-backed ledger entry.
type PaymentDetails struct {
	Method     string          `json:"method"`
	Reference  string          `json:"reference"`
	PackageID  string          `json:"package_id"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

// LedgerEntry is a single immutable record of one balance change.
// Amount is signed: positive for credits, negative for debits.
type LedgerEntry struct {
	EntryID       uint64
	UserID        string
	Kind          TransactionKind
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Description   string
	ReferenceID   string
	AdminNote     string
	Payment       *PaymentDetails
	CreatedAt     time.Time
}

// PurchaseRequest is a user-initiated request to convert an external payment
// into coins. CoinAmount and PaidAmount are snapshotted from the catalog at
// creation time and never re-read.
type PurchaseRequest struct {
	RequestID        string
	RequesterID      string
	PackageID        string
	CoinAmount       int64
	PaidAmount       decimal.Decimal
	PaymentMethod    string
	PaymentReference string
	Status           RequestStatus
	RequestedAt      time.Time
	ProcessedAt      *time.Time
	AdminNote        string
}

// Package is a catalog item mapping an id to a fixed coin amount and price.
type Package struct {
	PackageID string
	Name      string
	Coins     int64
	Price     decimal.Decimal
}

// SpenderTotal is one row of the top-spenders report.
type SpenderTotal struct {
	UserID     string
	OwnerName  string
	SpentCoins int64
}

// Report aggregates the read-only ledger statistics for admins.
type Report struct {
	CoinsInCirculation int64
	RequestCounts      map[RequestStatus]int64
	EntryCounts        map[TransactionKind]int64
	TopSpenders        []SpenderTotal
}

// Store is the persistence contract used by Service. Implementations must
// guarantee that all writes issued inside a single WithTx closure commit
// together or not at all.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetOrCreateWallet(ctx context.Context, userID string, profile OwnerProfile) (Wallet, error)
	GetWallet(ctx context.Context, userID string) (Wallet, error)
	GetWalletForUpdate(ctx context.Context, userID string) (Wallet, error)
	UpdateWalletBalance(ctx context.Context, userID string, balanceBefore int64, balanceAfter int64) error

	InsertEntry(ctx context.Context, entry LedgerEntry) error
	ListEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)

	CreatePurchaseRequest(ctx context.Context, request PurchaseRequest) (PurchaseRequest, error)
	GetPurchaseRequest(ctx context.Context, requestID string) (PurchaseRequest, error)
	GetPurchaseRequestForUpdate(ctx context.Context, requestID string) (PurchaseRequest, error)
	UpdatePurchaseRequestStatus(ctx context.Context, requestID string, from RequestStatus, to RequestStatus, processedAt time.Time, adminNote string) error
	ListPurchaseRequestsByStatus(ctx context.Context, status RequestStatus, limit int) ([]PurchaseRequest, error)
	ListPurchaseRequestsByRequester(ctx context.Context, requesterID string, limit int) ([]PurchaseRequest, error)

	SumBalances(ctx context.Context) (int64, error)
	CountRequestsByStatus(ctx context.Context) (map[RequestStatus]int64, error)
	CountEntriesByKind(ctx context.Context) (map[TransactionKind]int64, error)
	TopSpenders(ctx context.Context, limit int) ([]SpenderTotal, error)

	PurgeUser(ctx context.Context, userID string) error
}

// PackageCatalog is the static coin-package lookup consumed at
// purchase-request creation time.
type PackageCatalog interface {
	Package(packageID string) (Package, error)
	Packages() []Package
}

// IdentityDirectory is the external identity collaborator: admin gating and
// the display snapshot used to seed new wallets.
type IdentityDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	Profile(ctx context.Context, userID string) (OwnerProfile, error)
}
