package pagination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(Config{})

	if got := bf.Config().MaxConcurrency; got != 10 {
		t.Errorf("MaxConcurrency = %d, want 10", got)
	}
	if got := bf.Config().Timeout; got != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", got)
	}

	custom := NewBatchFetcher(Config{MaxConcurrency: 3, Timeout: time.Second})
	if custom.Config().MaxConcurrency != 3 || custom.Config().Timeout != time.Second {
		t.Errorf("custom config not kept: %+v", custom.Config())
	}
}

func TestFetchAll_PreservesInputOrder(t *testing.T) {
	bf := NewBatchFetcher(Config{MaxConcurrency: 5, Timeout: time.Second})

	const n = 5
	results := make([]int, n)
	var (
		mu         sync.Mutex
		completion []int
	)

	err := bf.FetchAll(context.Background(), n, func(ctx context.Context, i int) error {
		// Later indexes finish first.
		time.Sleep(time.Duration(n-i) * 10 * time.Millisecond)
		results[i] = i * i

		mu.Lock()
		completion = append(completion, i)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	for i, got := range results {
		if got != i*i {
			t.Errorf("results[%d] = %d, want %d", i, got, i*i)
		}
	}
	if completion[0] == 0 {
		t.Logf("completion order %v (scheduling did not invert order)", completion)
	}
}

func TestFetchAll_RespectsConcurrencyLimit(t *testing.T) {
	bf := NewBatchFetcher(Config{MaxConcurrency: 3, Timeout: time.Second})

	var inFlight, peak atomic.Int32
	err := bf.FetchAll(context.Background(), 20, func(ctx context.Context, i int) error {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
	if got := peak.Load(); got < 2 {
		t.Errorf("peak concurrency = %d, expected parallel execution", got)
	}
}

func TestFetchAll_FailFastCancelsSiblings(t *testing.T) {
	bf := NewBatchFetcher(Config{MaxConcurrency: 4, Timeout: 5 * time.Second})
	boom := errors.New("detail fetch failed")

	var cancelled atomic.Int32
	start := time.Now()

	err := bf.FetchAll(context.Background(), 4, func(ctx context.Context, i int) error {
		if i == 3 {
			return boom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})

	if !errors.Is(err, boom) {
		t.Fatalf("FetchAll() error = %v, want %v", err, boom)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("FetchAll took %v, siblings were not cancelled", elapsed)
	}
	if got := cancelled.Load(); got != 3 {
		t.Errorf("cancelled siblings = %d, want 3", got)
	}
}

func TestFetchAll_StopsSchedulingAfterFailure(t *testing.T) {
	bf := NewBatchFetcher(Config{MaxConcurrency: 1, Timeout: time.Second})

	var calls atomic.Int32
	err := bf.FetchAll(context.Background(), 10, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 0 {
			return errors.New("first fails")
		}
		return nil
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got > 2 {
		t.Errorf("calls = %d, scheduling should stop shortly after the failure", got)
	}
}

func TestFetchAll_PerItemTimeout(t *testing.T) {
	bf := NewBatchFetcher(Config{MaxConcurrency: 2, Timeout: 20 * time.Millisecond})

	err := bf.FetchAll(context.Background(), 2, func(ctx context.Context, i int) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchAll() error = %v, want DeadlineExceeded", err)
	}
}

func TestFetchAll_ParentCancelled(t *testing.T) {
	bf := NewBatchFetcher(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := bf.FetchAll(ctx, 5, func(ctx context.Context, i int) error {
		calls.Add(1)
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("FetchAll() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 with an already cancelled context", calls.Load())
	}
}

func TestFetchAll_Empty(t *testing.T) {
	bf := NewBatchFetcher(DefaultConfig())
	called := false
	if err := bf.FetchAll(context.Background(), 0, func(context.Context, int) error {
		called = true
		return nil
	}); err != nil {
		t.Errorf("FetchAll(0) error = %v", err)
	}
	if called {
		t.Error("fn should not be called for n = 0")
	}
}
