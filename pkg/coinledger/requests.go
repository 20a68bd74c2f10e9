package coinledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CreatePurchaseRequest snapshots the package's coin amount and price and
// stores a pending request. The snapshot is never re-read from the catalog.
func (service *Service) CreatePurchaseRequest(ctx context.Context, requesterID UserID, packageID string, paymentMethod string, paymentReference string) (PurchaseRequest, error) {
	trimmedPackageID := strings.TrimSpace(packageID)
	if trimmedPackageID == "" {
		return PurchaseRequest{}, fmt.Errorf("%w: empty package id", ErrValidation)
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return PurchaseRequest{}, fmt.Errorf("%w: empty payment method", ErrValidation)
	}
	coinPackage, err := service.catalog.Package(trimmedPackageID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	if coinPackage.Coins <= 0 || !coinPackage.Price.IsPositive() {
		return PurchaseRequest{}, fmt.Errorf("%w: package %q has a non-positive amount", ErrValidation, trimmedPackageID)
	}

	request := PurchaseRequest{
		RequesterID:      requesterID.String(),
		PackageID:        coinPackage.PackageID,
		CoinAmount:       coinPackage.Coins,
		PaidAmount:       coinPackage.Price,
		PaymentMethod:    strings.TrimSpace(paymentMethod),
		PaymentReference: strings.TrimSpace(paymentReference),
		Status:           RequestStatusPending,
		RequestedAt:      service.nowFn(),
	}
	created, operationError := service.store.CreatePurchaseRequest(ctx, request)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreate,
		UserID:    requesterID.String(),
		RequestID: created.RequestID,
		Amount:    coinPackage.Coins,
		Error:     operationError,
	})
	if operationError != nil {
		return PurchaseRequest{}, operationError
	}
	return created, nil
}

// ApprovePurchaseRequest transitions a pending request to approved and
// credits the requester's wallet with the snapshotted coin amount. The
// credit and the status flip commit together; if the credit fails the
// request stays pending.
func (service *Service) ApprovePurchaseRequest(ctx context.Context, actorID UserID, requestID string, note string) (PurchaseRequest, error) {
	if err := service.requireAdmin(ctx, actorID); err != nil {
		return PurchaseRequest{}, err
	}
	pendingView, err := service.store.GetPurchaseRequest(ctx, requestID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	profile, err := service.directory.Profile(ctx, pendingView.RequesterID)
	if err != nil {
		return PurchaseRequest{}, WrapError(operationApprove, "directory", "profile", err)
	}

	unlock := service.locks.lock(pendingView.RequesterID)
	defer unlock()

	var approved PurchaseRequest
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetPurchaseRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidStatusTransition, request.Status)
		}
		payment := &PaymentDetails{
			Method:     request.PaymentMethod,
			Reference:  request.PaymentReference,
			PackageID:  request.PackageID,
			PaidAmount: request.PaidAmount,
		}
		amount, err := NewCoinAmount(request.CoinAmount)
		if err != nil {
			return err
		}
		description := fmt.Sprintf("coin purchase %s", request.PackageID)
		if _, err := service.applyCredit(ctx, transactionStore, request.RequesterID, profile, amount.Int64(), KindCoinPurchase, description, EntryOptions{
			ReferenceID: request.RequestID,
			AdminNote:   note,
			Payment:     payment,
		}); err != nil {
			return err
		}
		processedAt := service.nowFn()
		if err := transactionStore.UpdatePurchaseRequestStatus(ctx, requestID, RequestStatusPending, RequestStatusApproved, processedAt, note); err != nil {
			return err
		}
		approved = request
		approved.Status = RequestStatusApproved
		approved.ProcessedAt = &processedAt
		approved.AdminNote = note
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationApprove,
		UserID:    pendingView.RequesterID,
		RequestID: requestID,
		Kind:      KindCoinPurchase,
		Amount:    pendingView.CoinAmount,
		Error:     operationError,
	})
	if operationError != nil {
		return PurchaseRequest{}, operationError
	}
	return approved, nil
}

// RejectPurchaseRequest transitions a pending request to rejected. A
// non-empty admin note is mandatory; no balance changes.
func (service *Service) RejectPurchaseRequest(ctx context.Context, actorID UserID, requestID string, note string) (PurchaseRequest, error) {
	if err := service.requireAdmin(ctx, actorID); err != nil {
		return PurchaseRequest{}, err
	}
	trimmedNote := strings.TrimSpace(note)
	if trimmedNote == "" {
		return PurchaseRequest{}, fmt.Errorf("%w: rejection requires a note", ErrValidation)
	}

	var rejected PurchaseRequest
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetPurchaseRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidStatusTransition, request.Status)
		}
		processedAt := service.nowFn()
		if err := transactionStore.UpdatePurchaseRequestStatus(ctx, requestID, RequestStatusPending, RequestStatusRejected, processedAt, trimmedNote); err != nil {
			return err
		}
		rejected = request
		rejected.Status = RequestStatusRejected
		rejected.ProcessedAt = &processedAt
		rejected.AdminNote = trimmedNote
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReject,
		RequestID: requestID,
		Error:     operationError,
	})
	if operationError != nil {
		return PurchaseRequest{}, operationError
	}
	return rejected, nil
}

// CancelPurchaseRequest lets a requester withdraw their own pending request.
func (service *Service) CancelPurchaseRequest(ctx context.Context, requesterID UserID, requestID string) (PurchaseRequest, error) {
	var cancelled PurchaseRequest
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetPurchaseRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.RequesterID != requesterID.String() {
			return fmt.Errorf("%w: request belongs to another user", ErrAccessDenied)
		}
		if request.Status != RequestStatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidStatusTransition, request.Status)
		}
		processedAt := service.nowFn()
		if err := transactionStore.UpdatePurchaseRequestStatus(ctx, requestID, RequestStatusPending, RequestStatusCancelled, processedAt, ""); err != nil {
			return err
		}
		cancelled = request
		cancelled.Status = RequestStatusCancelled
		cancelled.ProcessedAt = &processedAt
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancel,
		UserID:    requesterID.String(),
		RequestID: requestID,
		Error:     operationError,
	})
	if operationError != nil {
		return PurchaseRequest{}, operationError
	}
	return cancelled, nil
}

// ListPendingPurchaseRequests returns pending requests for admin review,
// newest first.
func (service *Service) ListPendingPurchaseRequests(ctx context.Context, actorID UserID, limit int) ([]PurchaseRequest, error) {
	if err := service.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return service.store.ListPurchaseRequestsByStatus(ctx, RequestStatusPending, clampListLimit(limit))
}

// ListPurchaseRequestsFor returns the requester's own requests, newest first.
func (service *Service) ListPurchaseRequestsFor(ctx context.Context, requesterID UserID, limit int) ([]PurchaseRequest, error) {
	return service.store.ListPurchaseRequestsByRequester(ctx, requesterID.String(), clampListLimit(limit))
}

// ListPackages exposes the catalog to the purchase flow's read side.
func (service *Service) ListPackages() []Package {
	return service.catalog.Packages()
}

// PackagePrice returns the catalog price for a package id.
func (service *Service) PackagePrice(packageID string) (decimal.Decimal, error) {
	coinPackage, err := service.catalog.Package(packageID)
	if err != nil {
		return decimal.Zero, err
	}
	return coinPackage.Price, nil
}
