package coinledger

import (
	"errors"
	"testing"
)

func TestNewUserID(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name          string
		raw           string
		expected      string
		expectedError error
	}{
		{name: "plain id", raw: "user-7", expected: "user-7"},
		{name: "trims whitespace", raw: "  user-7  ", expected: "user-7"},
		{name: "empty id", raw: "", expectedError: ErrValidation},
		{name: "whitespace only", raw: "   ", expectedError: ErrValidation},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()

			userID, err := NewUserID(testCase.raw)
			if !errors.Is(err, testCase.expectedError) {
				test.Fatalf("expected error %v, got %v", testCase.expectedError, err)
			}
			if err == nil && userID.String() != testCase.expected {
				test.Fatalf("expected %q, got %q", testCase.expected, userID.String())
			}
		})
	}
}

func TestNewCoinAmount(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name          string
		raw           int64
		expectedError error
	}{
		{name: "positive amount", raw: 1},
		{name: "large amount", raw: 1_000_000},
		{name: "zero amount", raw: 0, expectedError: ErrValidation},
		{name: "negative amount", raw: -5, expectedError: ErrValidation},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()

			amount, err := NewCoinAmount(testCase.raw)
			if !errors.Is(err, testCase.expectedError) {
				test.Fatalf("expected error %v, got %v", testCase.expectedError, err)
			}
			if err == nil && amount.Int64() != testCase.raw {
				test.Fatalf("expected %d, got %d", testCase.raw, amount.Int64())
			}
		})
	}
}

func TestParseTransactionKind(test *testing.T) {
	test.Parallel()

	validKinds := []TransactionKind{
		KindAdminCredit, KindAdminDebit, KindCoinPurchase,
		KindCoinUsage, KindReward, KindRefund, KindTransfer,
	}
	for _, kind := range validKinds {
		parsed, err := ParseTransactionKind(kind.String())
		if err != nil {
			test.Fatalf("parse %q: %v", kind, err)
		}
		if parsed != kind {
			test.Fatalf("expected %q, got %q", kind, parsed)
		}
	}

	if _, err := ParseTransactionKind(" transfer "); err != nil {
		test.Fatalf("expected trimmed kind to parse, got %v", err)
	}
	if _, err := ParseTransactionKind("withdrawal"); !errors.Is(err, ErrValidation) {
		test.Fatalf("expected %v for unknown kind, got %v", ErrValidation, err)
	}
	if _, err := ParseTransactionKind(""); !errors.Is(err, ErrValidation) {
		test.Fatalf("expected %v for empty kind, got %v", ErrValidation, err)
	}
}

func TestParseRequestStatus(test *testing.T) {
	test.Parallel()

	validStatuses := []RequestStatus{
		RequestStatusPending, RequestStatusApproved,
		RequestStatusRejected, RequestStatusCancelled,
	}
	for _, status := range validStatuses {
		parsed, err := ParseRequestStatus(status.String())
		if err != nil {
			test.Fatalf("parse %q: %v", status, err)
		}
		if parsed != status {
			test.Fatalf("expected %q, got %q", status, parsed)
		}
	}

	if _, err := ParseRequestStatus("archived"); !errors.Is(err, ErrValidation) {
		test.Fatalf("expected %v for unknown status, got %v", ErrValidation, err)
	}
}
