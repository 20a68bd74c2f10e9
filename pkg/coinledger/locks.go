package coinledger

import "sync"

// walletLocker serializes operations per wallet so that the read-validate-
// write sequence of a balance change is indivisible for any single wallet
// while distinct wallets proceed in parallel.
type walletLocker struct {
	mutex   sync.Mutex
	wallets map[string]*sync.Mutex
}

func newWalletLocker() *walletLocker {
	return &walletLocker{wallets: make(map[string]*sync.Mutex)}
}

func (locker *walletLocker) mutexFor(userID string) *sync.Mutex {
	locker.mutex.Lock()
	defer locker.mutex.Unlock()
	walletMutex, found := locker.wallets[userID]
	if !found {
		walletMutex = &sync.Mutex{}
		locker.wallets[userID] = walletMutex
	}
	return walletMutex
}

// lock acquires the wallet's critical section and returns its release func.
func (locker *walletLocker) lock(userID string) func() {
	walletMutex := locker.mutexFor(userID)
	walletMutex.Lock()
	return walletMutex.Unlock
}

// lockPair acquires two wallets' critical sections in lexicographic user-id
// order so that concurrent opposite-direction transfers cannot deadlock.
func (locker *walletLocker) lockPair(firstID string, secondID string) func() {
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	firstMutex := locker.mutexFor(firstID)
	secondMutex := locker.mutexFor(secondID)
	firstMutex.Lock()
	secondMutex.Lock()
	return func() {
		secondMutex.Unlock()
		firstMutex.Unlock()
	}
}
