package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet represents the wallets table, one row per user.
type Wallet struct {
	UserID       string    `gorm:"primaryKey"`
	Balance      int64     `gorm:"not null;default:0;check:balance >= 0"`
	OwnerName    string    `gorm:"not null"`
	OwnerContact string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "wallets" }

// LedgerEntry mirrors the ledger_entries table. The auto-increment primary
// key doubles as the creation order of the append-only ledger.
type LedgerEntry struct {
	EntryID       uint64         `gorm:"primaryKey;autoIncrement"`
	UserID        string         `gorm:"not null;index:idx_ledger_user_created,priority:1"`
	Kind          string         `gorm:"not null;index"`
	Amount        int64          `gorm:"not null"`
	BalanceBefore int64          `gorm:"not null"`
	BalanceAfter  int64          `gorm:"not null"`
	Description   string         `gorm:"not null"`
	ReferenceID   string         `gorm:""`
	AdminNote     string         `gorm:""`
	Payment       datatypes.JSON `gorm:""`
	CreatedAt     time.Time      `gorm:"not null;index:idx_ledger_user_created,priority:2"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// PurchaseRequest mirrors the purchase_requests table.
type PurchaseRequest struct {
	RequestID        string          `gorm:"type:uuid;primaryKey"`
	RequesterID      string          `gorm:"not null;index"`
	PackageID        string          `gorm:"not null"`
	CoinAmount       int64           `gorm:"not null"`
	PaidAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentMethod    string          `gorm:"not null"`
	PaymentReference string          `gorm:""`
	Status           string          `gorm:"not null;index"`
	RequestedAt      time.Time       `gorm:"not null;index"`
	ProcessedAt      *time.Time      `gorm:""`
	AdminNote        string          `gorm:""`
}

func (PurchaseRequest) TableName() string { return "purchase_requests" }

func (request *PurchaseRequest) BeforeCreate(tx *gorm.DB) error {
	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}
	return nil
}
