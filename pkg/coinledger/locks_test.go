package coinledger

import (
	"sync"
	"testing"
	"time"
)

func TestWalletLockerSerializesSameWallet(test *testing.T) {
	test.Parallel()

	locker := newWalletLocker()

	var counter int
	var waitGroup sync.WaitGroup
	for worker := 0; worker < 50; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			unlock := locker.lock("alice")
			defer unlock()
			counter++
		}()
	}
	waitGroup.Wait()

	if counter != 50 {
		test.Fatalf("expected 50 serialized increments, got %d", counter)
	}
}

func TestWalletLockerAllowsDistinctWallets(test *testing.T) {
	test.Parallel()

	locker := newWalletLocker()

	unlockAlice := locker.lock("alice")
	defer unlockAlice()

	done := make(chan struct{})
	go func() {
		unlockBob := locker.lock("bob")
		unlockBob()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		test.Fatalf("lock on a distinct wallet blocked")
	}
}

func TestLockPairOppositeOrdersDoNotDeadlock(test *testing.T) {
	test.Parallel()

	locker := newWalletLocker()

	const rounds = 200
	var waitGroup sync.WaitGroup
	waitGroup.Add(2)
	go func() {
		defer waitGroup.Done()
		for round := 0; round < rounds; round++ {
			unlock := locker.lockPair("alice", "bob")
			unlock()
		}
	}()
	go func() {
		defer waitGroup.Done()
		for round := 0; round < rounds; round++ {
			unlock := locker.lockPair("bob", "alice")
			unlock()
		}
	}()

	done := make(chan struct{})
	go func() {
		waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		test.Fatalf("opposite-order pair locking deadlocked")
	}
}
