package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paydibs/internal/reconcile"
)

func TestNewOrderLocker_NoAddrUsesMemory(t *testing.T) {
	locker, err := reconcile.NewOrderLocker("", "", 0, 0)
	require.NoError(t, err)
	require.NotNil(t, locker)
}

func TestMemoryLocker_SerializesSameKey(t *testing.T) {
	locker, err := reconcile.NewOrderLocker("", "", 0, 0)
	require.NoError(t, err)

	const workers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), "100000042")
			if err != nil {
				return
			}
			defer release()
			// Unsynchronized increment; only the lock keeps it safe.
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)
}

func TestMemoryLocker_DistinctKeysDoNotBlock(t *testing.T) {
	locker, err := reconcile.NewOrderLocker("", "", 0, 0)
	require.NoError(t, err)

	releaseA, err := locker.Lock(context.Background(), "100000001")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Lock(context.Background(), "100000002")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different order blocked")
	}
}

func TestMemoryLocker_ReleaseAllowsReacquire(t *testing.T) {
	locker, err := reconcile.NewOrderLocker("", "", 0, 0)
	require.NoError(t, err)

	release, err := locker.Lock(context.Background(), "100000042")
	require.NoError(t, err)
	release()

	reacquired := make(chan struct{})
	go func() {
		release, err := locker.Lock(context.Background(), "100000042")
		if err == nil {
			release()
		}
		close(reacquired)
	}()

	select {
	case <-reacquired:
	case <-time.After(2 * time.Second):
		t.Fatal("released lock could not be reacquired")
	}
}
