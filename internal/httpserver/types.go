package httpserver

import (
	"time"

	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	"github.com/shopspring/decimal"
)

type walletPayload struct {
	UserID       string `json:"user_id"`
	Balance      int64  `json:"balance"`
	OwnerName    string `json:"owner_name"`
	OwnerContact string `json:"owner_contact"`
}

type entryPayload struct {
	EntryID       uint64                     `json:"entry_id"`
	Kind          string                     `json:"kind"`
	Amount        int64                      `json:"amount"`
	BalanceBefore int64                      `json:"balance_before"`
	BalanceAfter  int64                      `json:"balance_after"`
	Description   string                     `json:"description"`
	ReferenceID   string                     `json:"reference_id,omitempty"`
	AdminNote     string                     `json:"admin_note,omitempty"`
	Payment       *coinledger.PaymentDetails `json:"payment,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

type requestPayload struct {
	RequestID        string          `json:"request_id"`
	RequesterID      string          `json:"requester_id"`
	PackageID        string          `json:"package_id"`
	CoinAmount       int64           `json:"coin_amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Status           string          `json:"status"`
	RequestedAt      time.Time       `json:"requested_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	AdminNote        string          `json:"admin_note,omitempty"`
}

type packagePayload struct {
	PackageID string          `json:"package_id"`
	Name      string          `json:"name"`
	Coins     int64           `json:"coins"`
	Price     decimal.Decimal `json:"price"`
}

type createRequestBody struct {
	PackageID        string `json:"package_id" binding:"required"`
	PaymentMethod    string `json:"payment_method" binding:"required"`
	PaymentReference string `json:"payment_reference"`
}

type adminCoinsBody struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Note   string `json:"note"`
}

type adminDecisionBody struct {
	Note string `json:"note"`
}

type adminTransferBody struct {
	FromUserID  string `json:"from_user_id" binding:"required"`
	ToUserID    string `json:"to_user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func toWalletPayload(wallet coinledger.Wallet) walletPayload {
	return walletPayload{
		UserID:       wallet.UserID,
		Balance:      wallet.Balance,
		OwnerName:    wallet.OwnerName,
		OwnerContact: wallet.OwnerContact,
	}
}

func toEntryPayloads(entries []coinledger.LedgerEntry) []entryPayload {
	payloads := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, entryPayload{
			EntryID:       entry.EntryID,
			Kind:          entry.Kind.String(),
			Amount:        entry.Amount,
			BalanceBefore: entry.BalanceBefore,
			BalanceAfter:  entry.BalanceAfter,
			Description:   entry.Description,
			ReferenceID:   entry.ReferenceID,
			AdminNote:     entry.AdminNote,
			Payment:       entry.Payment,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return payloads
}

func toRequestPayload(request coinledger.PurchaseRequest) requestPayload {
	return requestPayload{
		RequestID:        request.RequestID,
		RequesterID:      request.RequesterID,
		PackageID:        request.PackageID,
		CoinAmount:       request.CoinAmount,
		PaidAmount:       request.PaidAmount,
		PaymentMethod:    request.PaymentMethod,
		PaymentReference: request.PaymentReference,
		Status:           request.Status.String(),
		RequestedAt:      request.RequestedAt,
		ProcessedAt:      request.ProcessedAt,
		AdminNote:        request.AdminNote,
	}
}

func toRequestPayloads(requests []coinledger.PurchaseRequest) []requestPayload {
	payloads := make([]requestPayload, 0, len(requests))
	for _, request := range requests {
		payloads = append(payloads, toRequestPayload(request))
	}
	return payloads
}

func toPackagePayloads(packages []coinledger.Package) []packagePayload {
	payloads := make([]packagePayload, 0, len(packages))
	for _, coinPackage := range packages {
		payloads = append(payloads, packagePayload{
			PackageID: coinPackage.PackageID,
			Name:      coinPackage.Name,
			Coins:     coinPackage.Coins,
			Price:     coinPackage.Price,
		})
	}
	return payloads
}
