package coinledger

import (
	"context"
	"errors"
	"testing"
)

func TestBuildReportRequiresAdmin(test *testing.T) {
	test.Parallel()

	service := mustNewService(test, newStubStore())
	alice := mustUserID(test, testUserAlice)

	if _, err := service.BuildReport(context.Background(), alice); !errors.Is(err, ErrAccessDenied) {
		test.Fatalf("expected %v, got %v", ErrAccessDenied, err)
	}
}

func TestBuildReportAggregates(test *testing.T) {
	test.Parallel()

	store := newStubStore()
	service := newRequestService(test, store)
	ctx := context.Background()
	alice := mustUserID(test, testUserAlice)
	bob := mustUserID(test, testUserBob)
	admin := mustUserID(test, testAdmin)

	if _, err := service.Credit(ctx, alice, mustCoinAmount(test, 200), KindReward, "seed", EntryOptions{}); err != nil {
		test.Fatalf("credit alice: %v", err)
	}
	if _, err := service.Credit(ctx, bob, mustCoinAmount(test, 100), KindReward, "seed", EntryOptions{}); err != nil {
		test.Fatalf("credit bob: %v", err)
	}
	if _, err := service.Debit(ctx, alice, mustCoinAmount(test, 80), KindCoinUsage, "usage", EntryOptions{}); err != nil {
		test.Fatalf("debit alice: %v", err)
	}
	if _, err := service.Debit(ctx, bob, mustCoinAmount(test, 30), KindCoinUsage, "usage", EntryOptions{}); err != nil {
		test.Fatalf("debit bob: %v", err)
	}

	created, err := service.CreatePurchaseRequest(ctx, alice, testPackageID, "card", "")
	if err != nil {
		test.Fatalf("create request: %v", err)
	}
	if _, err := service.RejectPurchaseRequest(ctx, admin, created.RequestID, "declined"); err != nil {
		test.Fatalf("reject request: %v", err)
	}
	if _, err := service.CreatePurchaseRequest(ctx, bob, testPackageID, "card", ""); err != nil {
		test.Fatalf("create second request: %v", err)
	}

	report, err := service.BuildReport(ctx, admin)
	if err != nil {
		test.Fatalf("build report: %v", err)
	}
	if report.CoinsInCirculation != 190 {
		test.Fatalf("expected 190 coins in circulation, got %d", report.CoinsInCirculation)
	}
	if report.RequestCounts[RequestStatusPending] != 1 || report.RequestCounts[RequestStatusRejected] != 1 {
		test.Fatalf("unexpected request counts: %+v", report.RequestCounts)
	}
	if report.EntryCounts[KindReward] != 2 || report.EntryCounts[KindCoinUsage] != 2 {
		test.Fatalf("unexpected entry counts: %+v", report.EntryCounts)
	}
	if len(report.TopSpenders) != 2 {
		test.Fatalf("expected 2 spenders, got %d", len(report.TopSpenders))
	}
	if report.TopSpenders[0].UserID != testUserAlice || report.TopSpenders[0].SpentCoins != 80 {
		test.Fatalf("unexpected top spender: %+v", report.TopSpenders[0])
	}
}
