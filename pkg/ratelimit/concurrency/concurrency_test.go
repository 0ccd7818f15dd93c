package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/pacegate/internal/testutil"
	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
)

func mustNew(t testing.TB, capacity int) Limiter {
	t.Helper()
	limiter, err := NewSafe(capacity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return limiter
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{"valid capacity", 10, false},
		{"capacity one", 1, false},
		{"zero capacity", 0, true},
		{"negative capacity", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := NewSafe(tt.capacity)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidArgument)
				if limiter != nil {
					t.Error("expected nil limiter on error")
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, limiter.Capacity(), tt.capacity)
			testutil.AssertEqual(t, limiter.Available(), tt.capacity)
			testutil.AssertEqual(t, limiter.InUse(), 0)
		})
	}
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name              string
		config            Config
		expectedAvailable int
	}{
		{"default config", Config{Capacity: 10, InitialAvailable: -1}, 10},
		{"custom initial available", Config{Capacity: 10, InitialAvailable: 5}, 5},
		{"initial available exceeds capacity", Config{Capacity: 5, InitialAvailable: 10}, 5},
		{"zero initial available", Config{Capacity: 10, InitialAvailable: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := NewWithConfigSafe(tt.config)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, limiter.Available(), tt.expectedAvailable)
			testutil.AssertEqual(t, limiter.InUse(), tt.config.Capacity-tt.expectedAvailable)
		})
	}
}

func TestBasicAcquireRelease(t *testing.T) {
	limiter := mustNew(t, 3)

	for i := 1; i <= 3; i++ {
		testutil.AssertEqual(t, limiter.Acquire(), true)
		testutil.AssertEqual(t, limiter.InUse(), i)
	}

	// At capacity
	testutil.AssertEqual(t, limiter.Acquire(), false)
	testutil.AssertEqual(t, limiter.Available(), 0)

	testutil.AssertNoError(t, limiter.Release())
	testutil.AssertEqual(t, limiter.Available(), 1)
	testutil.AssertEqual(t, limiter.InUse(), 2)

	testutil.AssertEqual(t, limiter.Acquire(), true)
}

func TestAcquireReleaseN(t *testing.T) {
	limiter := mustNew(t, 10)

	testutil.AssertEqual(t, limiter.AcquireN(3), true)
	testutil.AssertEqual(t, limiter.AcquireN(5), true)
	testutil.AssertEqual(t, limiter.AcquireN(3), false)
	testutil.AssertEqual(t, limiter.AcquireN(2), true)
	testutil.AssertEqual(t, limiter.Available(), 0)

	testutil.AssertNoError(t, limiter.ReleaseN(4))
	testutil.AssertEqual(t, limiter.Available(), 4)
	testutil.AssertEqual(t, limiter.InUse(), 6)

	// AcquireN(0) should always succeed
	testutil.AssertEqual(t, limiter.AcquireN(0), true)
	testutil.AssertEqual(t, limiter.Available(), 4)
}

func TestOverRelease(t *testing.T) {
	limiter := mustNew(t, 2)

	err := limiter.Release()
	testutil.AssertErrorIs(t, err, gferrors.ErrProtocol)
	testutil.AssertEqual(t, limiter.Available(), 2)

	testutil.AssertEqual(t, limiter.Acquire(), true)
	testutil.AssertNoError(t, limiter.Release())
	testutil.AssertErrorIs(t, limiter.Release(), gferrors.ErrProtocol)
	testutil.AssertErrorIs(t, limiter.ReleaseN(3), gferrors.ErrProtocol)

	testutil.AssertEqual(t, limiter.Available(), 2)
	testutil.AssertEqual(t, limiter.InUse(), 0)
}

func TestWaitNExceedingCapacity(t *testing.T) {
	limiter := mustNew(t, 2)

	err := limiter.WaitN(context.Background(), 3)
	testutil.AssertErrorIs(t, err, gferrors.ErrProtocol)
	testutil.AssertEqual(t, limiter.Waiting(), 0)
}

func TestWaitWithContext(t *testing.T) {
	limiter := mustNew(t, 1)
	ctx := context.Background()

	testutil.AssertNoError(t, limiter.Wait(ctx))
	testutil.AssertEqual(t, limiter.Available(), 0)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	testutil.AssertEqual(t, limiter.Wait(canceledCtx), context.Canceled)

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancelTimeout()
	testutil.AssertEqual(t, limiter.Wait(timeoutCtx), context.DeadlineExceeded)

	testutil.AssertEqual(t, limiter.Waiting(), 0)
	testutil.AssertEqual(t, limiter.InUse(), 1)
}

func TestWaitWithRelease(t *testing.T) {
	limiter := mustNew(t, 1)
	limiter.Acquire()

	done := make(chan error, 1)
	go func() {
		done <- limiter.Wait(context.Background())
	}()

	testutil.Eventually(t, func() bool { return limiter.Waiting() == 1 }, time.Second, time.Millisecond)
	testutil.AssertNoError(t, limiter.Release())

	select {
	case err := <-done:
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, limiter.Available(), 0)
	case <-time.After(time.Second):
		t.Fatal("waiting goroutine should have been woken up")
	}
}

func TestWaitersServedInOrder(t *testing.T) {
	limiter := mustNew(t, 1)
	limiter.Acquire()

	const numWaiters = 5
	order := make(chan int, numWaiters)

	for i := 0; i < numWaiters; i++ {
		i := i
		go func() {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			order <- i
			limiter.Release()
		}()
		// Queue them one at a time so arrival order is known.
		testutil.Eventually(t, func() bool { return limiter.Waiting() == i+1 }, time.Second, time.Millisecond)
	}

	testutil.AssertNoError(t, limiter.Release())

	for want := 0; want < numWaiters; want++ {
		select {
		case got := <-order:
			testutil.AssertEqual(t, got, want)
		case <-time.After(time.Second):
			t.Fatalf("waiter %d timed out", want)
		}
	}
}

func TestLargeRequestBlocksLaterSmallOnes(t *testing.T) {
	limiter := mustNew(t, 3)
	testutil.AssertEqual(t, limiter.AcquireN(2), true)

	big := make(chan error, 1)
	go func() { big <- limiter.WaitN(context.Background(), 3) }()
	testutil.Eventually(t, func() bool { return limiter.Waiting() == 1 }, time.Second, time.Millisecond)

	// A free permit exists, but the queued request comes first.
	testutil.AssertEqual(t, limiter.Acquire(), false)

	testutil.AssertNoError(t, limiter.ReleaseN(2))
	select {
	case err := <-big:
		testutil.AssertNoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("large request should have been served")
	}
	testutil.AssertEqual(t, limiter.InUse(), 3)
}

func TestContextCancellation(t *testing.T) {
	limiter := mustNew(t, 1)
	limiter.Acquire()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- limiter.Wait(ctx)
	}()

	testutil.Eventually(t, func() bool { return limiter.Waiting() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		testutil.AssertEqual(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait should have been canceled")
	}

	// No permit consumed by the canceled waiter
	testutil.AssertEqual(t, limiter.Available(), 0)
	testutil.AssertEqual(t, limiter.InUse(), 1)
	testutil.AssertEqual(t, limiter.Waiting(), 0)
}

func TestCanceledHeadUnblocksNext(t *testing.T) {
	limiter := mustNew(t, 2)
	testutil.AssertEqual(t, limiter.AcquireN(1), true)

	ctx, cancel := context.WithCancel(context.Background())
	big := make(chan error, 1)
	go func() { big <- limiter.WaitN(ctx, 2) }()
	testutil.Eventually(t, func() bool { return limiter.Waiting() == 1 }, time.Second, time.Millisecond)

	small := make(chan error, 1)
	go func() { small <- limiter.Wait(context.Background()) }()
	testutil.Eventually(t, func() bool { return limiter.Waiting() == 2 }, time.Second, time.Millisecond)

	cancel()
	testutil.AssertEqual(t, <-big, context.Canceled)

	select {
	case err := <-small:
		testutil.AssertNoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("small waiter should proceed once the head gives up")
	}
	testutil.AssertEqual(t, limiter.InUse(), 2)
}

func TestConcurrentAccess(t *testing.T) {
	const capacity = 4
	limiter := mustNew(t, capacity)

	const numGoroutines = 20
	const operationsPerGoroutine = 50

	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				if err := limiter.Wait(context.Background()); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Microsecond)
				atomic.AddInt64(&current, -1)
				if err := limiter.Release(); err != nil {
					t.Errorf("unexpected release error: %v", err)
				}
			}
		}()
	}

	wg.Wait()

	if peak > capacity {
		t.Errorf("peak concurrency %d exceeded capacity %d", peak, capacity)
	}
	testutil.AssertEqual(t, limiter.Available(), capacity)
	testutil.AssertEqual(t, limiter.InUse(), 0)
}
