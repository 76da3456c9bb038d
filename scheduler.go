package tally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/owner"
)

// TickReport summarizes one settlement scan.
type TickReport struct {
	Contracts int // active contracts scanned
	DueTerms  int // terms due at this tick
	Executed  int // obligations completed
	Failed    int // obligations marked failed
	Skipped   int // obligations left pending, e.g. no eligible recipient
}

// IsDue reports whether a term with the given interval fires at elapsed.
// Missed occurrences are not caught up.
func IsDue(elapsed, interval time.Duration) bool {
	if interval <= 0 || elapsed < 0 {
		return false
	}
	return elapsed%interval == 0
}

// Start migrates the store, adopts the System identity and begins the
// settlement worker. With WithBootstrap an empty store is initialized by
// Reset first.
func (e *Engine) Start(ctx context.Context) error {
	if err := exec(ctx, e, "migrate", e.store.Migrate); err != nil {
		return err
	}

	if err := e.adopt(ctx); err != nil {
		if !errors.Is(err, ErrSystemNotInitialized) || !e.bootstrap {
			return err
		}
		if _, err := e.Reset(ctx); err != nil {
			return fmt.Errorf("tally: bootstrap: %w", err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.settlementWorker(ctx)

	sysID, _ := e.SystemID(ctx)
	e.logger.Info("tally started",
		"system", sysID,
		"poll_interval", e.pollInterval,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the settlement worker and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// settlementWorker ticks every poll interval. Elapsed time advances by the
// poll interval per tick, starting at zero.
func (e *Engine) settlementWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := e.Tick(ctx, elapsed)
			if err != nil {
				e.logger.Warn("tally: settlement tick had failures",
					"elapsed", elapsed,
					"failed", report.Failed,
					"error", err,
				)
			}
			elapsed += e.pollInterval
		}
	}
}

// Tick performs one settlement scan at the given elapsed time. Failures
// are collected in the returned error and never abort the scan.
func (e *Engine) Tick(ctx context.Context, elapsed time.Duration) (TickReport, error) {
	var (
		report TickReport
		errs   MultiError
	)
	start := time.Now()

	contracts, err := call(ctx, e, "list contracts", func(ctx context.Context) ([]*asset.Asset, error) {
		return e.store.ListAssets(ctx, asset.ListOpts{
			Type:           asset.TypeContract,
			ContractStatus: contract.StatusActive,
		})
	})
	if err != nil {
		return report, err
	}
	report.Contracts = len(contracts)

	for _, c := range contracts {
		if c.Contract == nil {
			continue
		}
		for _, term := range c.Contract.Terms {
			if !term.Executable() || !IsDue(elapsed, term.Interval) {
				continue
			}
			report.DueTerms++
			errs.Add(e.settleTerm(ctx, term, &report))
		}
	}

	took := time.Since(start)
	if report.DueTerms > 0 {
		e.logger.Debug("settlement tick",
			"elapsed", elapsed,
			"contracts", report.Contracts,
			"due", report.DueTerms,
			"executed", report.Executed,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"took_ms", took.Milliseconds(),
		)
	}
	e.plugins.EmitSettlementTick(ctx, report.Executed, report.Failed, took)

	return report, errs.ErrOrNil()
}

// settleTerm executes every pending obligation of term.
func (e *Engine) settleTerm(ctx context.Context, term contract.Term, report *TickReport) error {
	release, err := e.lock(ctx, lock.TermKey(term.ID))
	if err != nil {
		return err
	}
	defer release()

	pending, err := call(ctx, e, "list pending", func(ctx context.Context) ([]*activity.Activity, error) {
		return e.store.ListActivities(ctx, activity.ListOpts{
			ContractTermID: term.ID,
			Status:         activity.StatusPending,
		})
	})
	if err != nil {
		return err
	}

	var errs MultiError
	for _, p := range pending {
		if p.Transfer == nil || p.Transfer.Type != activity.TransferValuesFromOwnerToOwner {
			continue
		}
		errs.Add(e.executeObligation(ctx, term, p, report))
	}
	return errs.ErrOrNil()
}

// executeObligation runs one pending recurring transfer. On success the
// pending activity is completed; on failure it is marked failed. Either
// way the next occurrence is enqueued.
func (e *Engine) executeObligation(ctx context.Context, term contract.Term, pending *activity.Activity, report *TickReport) error {
	from := pending.Transfer.FromID
	to := pending.Transfer.ToID

	if to.IsNil() {
		drawn, err := e.drawRecipient(ctx, from)
		if err != nil {
			return err
		}
		if drawn == nil {
			report.Skipped++
			e.logger.Warn("tally: no eligible recipient for obligation", "term", term.ID, "activity", pending.ID)
			return nil
		}
		to = drawn.ID
	}

	act, cause := e.transferValue(ctx, from, to, term.RecurringTransfer.Amount, term.ID)

	outcome := activity.StatusCompleted
	if cause != nil {
		outcome = activity.StatusFailed
	}
	if err := exec(ctx, e, "update activity status", func(ctx context.Context) error {
		return e.store.UpdateActivityStatus(ctx, pending.ID, activity.StatusPending, outcome)
	}); err != nil {
		report.Failed++
		e.logger.Error("tally: could not settle pending obligation", "term", term.ID, "activity", pending.ID, "error", err)
		return errors.Join(cause, err)
	}

	next := nextObligation(from, term.ID, pending.Transfer.ToID, e.now())
	if err := e.record(ctx, next); err != nil {
		e.logger.Error("tally: could not enqueue next obligation", "term", term.ID, "error", err)
		cause = errors.Join(cause, err)
	}

	if outcome == activity.StatusFailed {
		report.Failed++
		e.logger.Warn("tally: obligation failed", "term", term.ID, "activity", pending.ID, "error", cause)
		e.plugins.EmitObligationFailed(ctx, term.ID, pending, cause)
		return fmt.Errorf("tally: term %s: %w", term.ID, cause)
	}

	report.Executed++
	e.logger.Info("obligation executed", "term", term.ID, "to", to, "amount", term.RecurringTransfer.Amount)
	e.plugins.EmitObligationExecuted(ctx, term.ID, act)
	return cause
}

// drawRecipient picks a random non-System owner other than exclude. It
// returns nil when nobody is eligible.
func (e *Engine) drawRecipient(ctx context.Context, exclude id.OwnerID) (*owner.Owner, error) {
	candidates, err := call(ctx, e, "list owners", func(ctx context.Context) ([]*owner.Owner, error) {
		return e.store.ListOwners(ctx, owner.ListOpts{
			ExcludeRoles: []owner.Role{owner.RoleSystem},
			ExcludeIDs:   []id.OwnerID{exclude},
		})
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[e.intn(len(candidates))], nil
}
