package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "pool:x")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if l.Held() != 0 {
		t.Errorf("Held = %d after all releases, want 0", l.Held())
	}
}

func TestLocalDistinctKeysDoNotBlock(t *testing.T) {
	l := lock.NewLocal()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r1, err := l.Lock(ctx, lock.OwnerKey(id.NewOwnerID()))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer r1()
	r2, err := l.Lock(ctx, lock.OwnerKey(id.NewOwnerID()))
	if err != nil {
		t.Fatalf("second key blocked: %v", err)
	}
	r2()
}

func TestLocalHonorsContext(t *testing.T) {
	l := lock.NewLocal()
	release, _ := l.Lock(context.Background(), "term:x")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "term:x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := lock.NewLocal()
	release, _ := l.Lock(context.Background(), "asset:x")
	release()
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	again, err := l.Lock(ctx, "asset:x")
	if err != nil {
		t.Fatalf("relock after double release: %v", err)
	}
	again()
}

func TestKeys(t *testing.T) {
	o := id.NewOwnerID()
	if got := lock.PoolKey(o); got != "pool:"+o.String() {
		t.Errorf("PoolKey = %q", got)
	}
	term := id.NewTermID()
	if got := lock.TermKey(term); got != "term:"+term.String() {
		t.Errorf("TermKey = %q", got)
	}
}
