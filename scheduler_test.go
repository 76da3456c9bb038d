package tally_test

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/store/memory"
)

func TestIsDue(t *testing.T) {
	tests := []struct {
		elapsed  time.Duration
		interval time.Duration
		want     bool
	}{
		{0, time.Second, true},
		{1000 * time.Millisecond, time.Second, true},
		{2000 * time.Millisecond, time.Second, true},
		{3000 * time.Millisecond, time.Second, true},
		{500 * time.Millisecond, time.Second, false},
		{1500 * time.Millisecond, time.Second, false},
		{time.Second, 0, false},
		{-time.Second, time.Second, false},
		{45 * time.Minute, tally.AirdropInterval, true},
	}
	for _, tt := range tests {
		if got := tally.IsDue(tt.elapsed, tt.interval); got != tt.want {
			t.Errorf("IsDue(%v, %v) = %v, want %v", tt.elapsed, tt.interval, got, tt.want)
		}
	}
}

func airdropTerm(t *testing.T, e *tally.Engine) contract.Term {
	t.Helper()
	contracts, err := e.Assets(context.Background(), asset.ListOpts{Type: asset.TypeContract})
	if err != nil {
		t.Fatal(err)
	}
	if len(contracts) != 1 {
		t.Fatalf("expected 1 contract, got %d", len(contracts))
	}
	return contracts[0].Contract.Terms[0]
}

func termActivities(t *testing.T, e *tally.Engine, termID id.TermID, status activity.Status) []*activity.Activity {
	t.Helper()
	acts, err := e.Activities(context.Background(), activity.ListOpts{ContractTermID: termID, Status: status})
	if err != nil {
		t.Fatal(err)
	}
	return acts
}

func TestTickExecutesDueObligation(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, tally.WithRandSource(rand.NewPCG(1, 2)))
	_, alice, bob := setup(t, e)
	term := airdropTerm(t, e)
	first := termActivities(t, e, term.ID, activity.StatusPending)[0]

	report, err := e.Tick(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := tally.TickReport{Contracts: 1, DueTerms: 1, Executed: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}

	consumed, err := e.Activities(ctx, activity.ListOpts{ContractTermID: term.ID})
	if err != nil {
		t.Fatal(err)
	}
	// The completed obligation, the executed transfer and the next pending one.
	if len(consumed) != 3 {
		t.Fatalf("expected 3 term activities, got %d", len(consumed))
	}

	done, err := s.GetActivity(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != activity.StatusCompleted {
		t.Errorf("obligation status = %q, want completed", done.Status)
	}

	pending := termActivities(t, e, term.ID, activity.StatusPending)
	if len(pending) != 1 || pending[0].ID == first.ID || !pending[0].Transfer.ToID.IsNil() {
		t.Errorf("next obligation not enqueued correctly: %+v", pending)
	}

	if got := balance(t, e, alice.ID()) + balance(t, e, bob.ID()); got != 1 {
		t.Errorf("airdrop paid %d units, want 1", got)
	}
	if got := totalValue(t, s); got != tally.DefaultTotalSupply {
		t.Errorf("conservation broken: total = %d", got)
	}
}

func TestTickNotDue(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setup(t, e)
	term := airdropTerm(t, e)

	for _, elapsed := range []time.Duration{time.Second, 7 * time.Minute, 16 * time.Minute} {
		report, err := e.Tick(ctx, elapsed)
		if err != nil {
			t.Fatal(err)
		}
		if report.DueTerms != 0 || report.Executed != 0 {
			t.Errorf("elapsed %v: unexpected report %+v", elapsed, report)
		}
	}
	if n := len(termActivities(t, e, term.ID, activity.StatusPending)); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestTickWithoutRecipientLeavesPending(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	term := airdropTerm(t, e)
	before := termActivities(t, e, term.ID, activity.StatusPending)

	report, err := e.Tick(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.Executed != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	after := termActivities(t, e, term.ID, activity.StatusPending)
	if len(after) != 1 || after[0].ID != before[0].ID {
		t.Errorf("pending obligation changed: %+v", after)
	}
}

func TestTickFailureEnqueuesNext(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, tally.WithTotalSupply(1))
	setup(t, e)
	term := airdropTerm(t, e)

	// The first airdrop drains the pool.
	if _, err := e.Tick(ctx, 0); err != nil {
		t.Fatal(err)
	}
	pending := termActivities(t, e, term.ID, activity.StatusPending)[0]

	report, err := e.Tick(ctx, tally.AirdropInterval)
	if !errors.Is(err, tally.ErrInsufficientFunds) {
		t.Fatalf("got %v, want insufficient funds", err)
	}
	if report.Failed != 1 || report.Executed != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	failed, err := s.GetActivity(ctx, pending.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != activity.StatusFailed {
		t.Errorf("status = %q, want failed", failed.Status)
	}
	next := termActivities(t, e, term.ID, activity.StatusPending)
	if len(next) != 1 || next[0].ID == pending.ID {
		t.Errorf("next obligation not enqueued: %+v", next)
	}
	if got := totalValue(t, s); got != 1 {
		t.Errorf("conservation broken: total = %d", got)
	}
}

func TestTickSkipsTermsNotAgreed(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	setup(t, e)

	contracts, err := e.Assets(ctx, asset.ListOpts{Type: asset.TypeContract})
	if err != nil {
		t.Fatal(err)
	}
	c := contracts[0]
	c.Contract.Terms[0].Status = contract.TermProposed
	if err := s.UpdateAsset(ctx, c); err != nil {
		t.Fatal(err)
	}

	report, err := e.Tick(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.Contracts != 1 || report.DueTerms != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

type tickCounter struct {
	ticks    atomic.Int32
	shutdown atomic.Bool
}

func (c *tickCounter) Name() string { return "tick-counter" }

func (c *tickCounter) OnSettlementTick(context.Context, int, int, time.Duration) error {
	c.ticks.Add(1)
	return nil
}

func (c *tickCounter) OnShutdown(context.Context) error {
	c.shutdown.Store(true)
	return nil
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	counter := &tickCounter{}
	e := tally.New(memory.New(),
		tally.WithLogger(slog.New(slog.DiscardHandler)),
		tally.WithBootstrap(true),
		tally.WithPollInterval(5*time.Millisecond),
		tally.WithPlugin(counter),
	)

	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SystemID(ctx); err != nil {
		t.Fatalf("system not bootstrapped: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for counter.ticks.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if counter.ticks.Load() < 2 {
		t.Fatalf("worker ticked %d times", counter.ticks.Load())
	}

	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	if !counter.shutdown.Load() {
		t.Error("shutdown hook not called")
	}
	// Stop is safe to call twice.
	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStartWithoutBootstrap(t *testing.T) {
	e := tally.New(memory.New(), tally.WithLogger(slog.New(slog.DiscardHandler)))
	err := e.Start(context.Background())
	if !errors.Is(err, tally.ErrSystemNotInitialized) {
		t.Fatalf("got %v, want ErrSystemNotInitialized", err)
	}
}
