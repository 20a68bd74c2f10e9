package coinledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// stubStore is an in-memory Store with whole-state rollback so that WithTx
// keeps the all-or-nothing contract the real store provides.
type stubStore struct {
	mutex       sync.Mutex
	wallets     map[string]Wallet
	entries     []LedgerEntry
	requests    map[string]PurchaseRequest
	nextEntryID uint64
	nextRequest int

	getWalletError     error
	updateBalanceError error
	insertEntryError   error
	createRequestError error
	updateStatusError  error
	// When positive, the n-th InsertEntry inside the current transaction fails.
	failInsertNumber int
	txInsertCalls    int
}

func newStubStore() *stubStore {
	return &stubStore{
		wallets:  make(map[string]Wallet),
		requests: make(map[string]PurchaseRequest),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	snapshotWallets := make(map[string]Wallet, len(store.wallets))
	for key, value := range store.wallets {
		snapshotWallets[key] = value
	}
	snapshotEntries := make([]LedgerEntry, len(store.entries))
	copy(snapshotEntries, store.entries)
	snapshotRequests := make(map[string]PurchaseRequest, len(store.requests))
	for key, value := range store.requests {
		snapshotRequests[key] = value
	}
	snapshotEntryID := store.nextEntryID

	store.txInsertCalls = 0
	if err := fn(ctx, store); err != nil {
		store.wallets = snapshotWallets
		store.entries = snapshotEntries
		store.requests = snapshotRequests
		store.nextEntryID = snapshotEntryID
		return err
	}
	return nil
}

func (store *stubStore) GetOrCreateWallet(ctx context.Context, userID string, profile OwnerProfile) (Wallet, error) {
	if store.getWalletError != nil {
		return Wallet{}, store.getWalletError
	}
	wallet, found := store.wallets[userID]
	if found {
		return wallet, nil
	}
	wallet = Wallet{
		UserID:       userID,
		Balance:      0,
		OwnerName:    profile.DisplayName,
		OwnerContact: profile.Contact,
		CreatedAt:    time.Unix(0, 0).UTC(),
	}
	store.wallets[userID] = wallet
	return wallet, nil
}

func (store *stubStore) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	if store.getWalletError != nil {
		return Wallet{}, store.getWalletError
	}
	wallet, found := store.wallets[userID]
	if !found {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (store *stubStore) GetWalletForUpdate(ctx context.Context, userID string) (Wallet, error) {
	return store.GetWallet(ctx, userID)
}

func (store *stubStore) UpdateWalletBalance(ctx context.Context, userID string, balanceBefore int64, balanceAfter int64) error {
	if store.updateBalanceError != nil {
		return store.updateBalanceError
	}
	wallet, found := store.wallets[userID]
	if !found {
		return ErrWalletNotFound
	}
	if wallet.Balance != balanceBefore {
		return fmt.Errorf("%w: stale balance for %s", ErrPersistence, userID)
	}
	wallet.Balance = balanceAfter
	store.wallets[userID] = wallet
	return nil
}

func (store *stubStore) InsertEntry(ctx context.Context, entry LedgerEntry) error {
	store.txInsertCalls++
	if store.insertEntryError != nil {
		return store.insertEntryError
	}
	if store.failInsertNumber > 0 && store.txInsertCalls == store.failInsertNumber {
		return fmt.Errorf("%w: injected insert failure", ErrPersistence)
	}
	store.nextEntryID++
	entry.EntryID = store.nextEntryID
	store.entries = append(store.entries, entry)
	return nil
}

func (store *stubStore) ListEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error) {
	listed := make([]LedgerEntry, 0)
	for _, entry := range store.entries {
		if entry.UserID == userID {
			listed = append(listed, entry)
		}
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].EntryID > listed[j].EntryID })
	if len(listed) > limit {
		listed = listed[:limit]
	}
	return listed, nil
}

func (store *stubStore) CreatePurchaseRequest(ctx context.Context, request PurchaseRequest) (PurchaseRequest, error) {
	if store.createRequestError != nil {
		return PurchaseRequest{}, store.createRequestError
	}
	store.nextRequest++
	request.RequestID = fmt.Sprintf("req-%d", store.nextRequest)
	store.requests[request.RequestID] = request
	return request, nil
}

func (store *stubStore) GetPurchaseRequest(ctx context.Context, requestID string) (PurchaseRequest, error) {
	request, found := store.requests[requestID]
	if !found {
		return PurchaseRequest{}, fmt.Errorf("%w: unknown request %s", ErrInvalidStatusTransition, requestID)
	}
	return request, nil
}

func (store *stubStore) GetPurchaseRequestForUpdate(ctx context.Context, requestID string) (PurchaseRequest, error) {
	return store.GetPurchaseRequest(ctx, requestID)
}

func (store *stubStore) UpdatePurchaseRequestStatus(ctx context.Context, requestID string, from RequestStatus, to RequestStatus, processedAt time.Time, adminNote string) error {
	if store.updateStatusError != nil {
		return store.updateStatusError
	}
	request, found := store.requests[requestID]
	if !found || request.Status != from {
		return ErrInvalidStatusTransition
	}
	request.Status = to
	request.ProcessedAt = &processedAt
	request.AdminNote = adminNote
	store.requests[requestID] = request
	return nil
}

func (store *stubStore) ListPurchaseRequestsByStatus(ctx context.Context, status RequestStatus, limit int) ([]PurchaseRequest, error) {
	return store.listRequests(func(request PurchaseRequest) bool { return request.Status == status }, limit), nil
}

func (store *stubStore) ListPurchaseRequestsByRequester(ctx context.Context, requesterID string, limit int) ([]PurchaseRequest, error) {
	return store.listRequests(func(request PurchaseRequest) bool { return request.RequesterID == requesterID }, limit), nil
}

func (store *stubStore) listRequests(match func(PurchaseRequest) bool, limit int) []PurchaseRequest {
	listed := make([]PurchaseRequest, 0)
	for _, request := range store.requests {
		if match(request) {
			listed = append(listed, request)
		}
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].RequestedAt.After(listed[j].RequestedAt) })
	if len(listed) > limit {
		listed = listed[:limit]
	}
	return listed
}

func (store *stubStore) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	for _, wallet := range store.wallets {
		total += wallet.Balance
	}
	return total, nil
}

func (store *stubStore) CountRequestsByStatus(ctx context.Context) (map[RequestStatus]int64, error) {
	counts := make(map[RequestStatus]int64)
	for _, request := range store.requests {
		counts[request.Status]++
	}
	return counts, nil
}

func (store *stubStore) CountEntriesByKind(ctx context.Context) (map[TransactionKind]int64, error) {
	counts := make(map[TransactionKind]int64)
	for _, entry := range store.entries {
		counts[entry.Kind]++
	}
	return counts, nil
}

func (store *stubStore) TopSpenders(ctx context.Context, limit int) ([]SpenderTotal, error) {
	spent := make(map[string]int64)
	for _, entry := range store.entries {
		if entry.Amount < 0 {
			spent[entry.UserID] += -entry.Amount
		}
	}
	totals := make([]SpenderTotal, 0, len(spent))
	for userID, coins := range spent {
		totals = append(totals, SpenderTotal{UserID: userID, OwnerName: store.wallets[userID].OwnerName, SpentCoins: coins})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].SpentCoins > totals[j].SpentCoins })
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

func (store *stubStore) PurgeUser(ctx context.Context, userID string) error {
	delete(store.wallets, userID)
	kept := store.entries[:0]
	for _, entry := range store.entries {
		if entry.UserID != userID {
			kept = append(kept, entry)
		}
	}
	store.entries = kept
	for requestID, request := range store.requests {
		if request.RequesterID == userID {
			delete(store.requests, requestID)
		}
	}
	return nil
}

type stubDirectory struct {
	admins       map[string]bool
	profiles     map[string]OwnerProfile
	isAdminError error
	profileError error
}

func newStubDirectory(adminIDs ...string) *stubDirectory {
	admins := make(map[string]bool, len(adminIDs))
	for _, adminID := range adminIDs {
		admins[adminID] = true
	}
	return &stubDirectory{admins: admins, profiles: make(map[string]OwnerProfile)}
}

func (directory *stubDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	return userID != "", nil
}

func (directory *stubDirectory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if directory.isAdminError != nil {
		return false, directory.isAdminError
	}
	return directory.admins[userID], nil
}

func (directory *stubDirectory) Profile(ctx context.Context, userID string) (OwnerProfile, error) {
	if directory.profileError != nil {
		return OwnerProfile{}, directory.profileError
	}
	return directory.profiles[userID], nil
}

type stubCatalog struct {
	packages map[string]Package
}

func newStubCatalog(packages ...Package) *stubCatalog {
	byID := make(map[string]Package, len(packages))
	for _, coinPackage := range packages {
		byID[coinPackage.PackageID] = coinPackage
	}
	return &stubCatalog{packages: byID}
}

func (catalog *stubCatalog) Package(packageID string) (Package, error) {
	coinPackage, found := catalog.packages[packageID]
	if !found {
		return Package{}, fmt.Errorf("%w: unknown package %q", ErrInvalidPackage, packageID)
	}
	return coinPackage, nil
}

func (catalog *stubCatalog) Packages() []Package {
	listed := make([]Package, 0, len(catalog.packages))
	for _, coinPackage := range catalog.packages {
		listed = append(listed, coinPackage)
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].Coins < listed[j].Coins })
	return listed
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	return mustNewServiceWith(test, store, newStubCatalog(), newStubDirectory("admin-1"), options...)
}

func mustNewServiceWith(test *testing.T, store Store, catalog PackageCatalog, directory IdentityDirectory, options ...ServiceOption) *Service {
	test.Helper()
	clock := newTestClock()
	service, err := NewService(store, catalog, directory, clock.now, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

// testClock hands out strictly increasing timestamps so ordering by
// creation time is deterministic in tests.
type testClock struct {
	mutex sync.Mutex
	tick  int64
}

func newTestClock() *testClock {
	return &testClock{}
}

func (clock *testClock) now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.tick++
	return time.Unix(clock.tick, 0).UTC()
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("new user id: %v", err)
	}
	return userID
}

func mustCoinAmount(test *testing.T, raw int64) CoinAmount {
	test.Helper()
	amount, err := NewCoinAmount(raw)
	if err != nil {
		test.Fatalf("new coin amount: %v", err)
	}
	return amount
}
