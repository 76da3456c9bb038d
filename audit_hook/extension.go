// Package audithook bridges Tally ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnGenesis            = (*Extension)(nil)
	_ plugin.OnOwnerCreated       = (*Extension)(nil)
	_ plugin.OnAssetCreated       = (*Extension)(nil)
	_ plugin.OnValueTransferred   = (*Extension)(nil)
	_ plugin.OnAssetsTransferred  = (*Extension)(nil)
	_ plugin.OnAssetContributed   = (*Extension)(nil)
	_ plugin.OnAssetOffered       = (*Extension)(nil)
	_ plugin.OnAccountChecked     = (*Extension)(nil)
	_ plugin.OnObligationExecuted = (*Extension)(nil)
	_ plugin.OnObligationFailed   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Tally events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnGenesis implements plugin.OnGenesis.
func (e *Extension) OnGenesis(ctx context.Context, system *owner.Owner, supply int64) error {
	return e.record(ctx, ActionSystemReset, SeverityWarning, OutcomeSuccess,
		ResourceSystem, system.ID.String(), CategoryGenesis, nil,
		"supply", supply,
	)
}

// OnOwnerCreated implements plugin.OnOwnerCreated.
func (e *Extension) OnOwnerCreated(ctx context.Context, o *owner.Owner) error {
	return e.record(ctx, ActionOwnerCreated, SeverityInfo, OutcomeSuccess,
		ResourceOwner, o.ID.String(), CategoryEntity, nil,
		"role", string(o.Role),
		"name", o.Name,
	)
}

// OnAssetCreated implements plugin.OnAssetCreated.
func (e *Extension) OnAssetCreated(ctx context.Context, a *asset.Asset) error {
	return e.record(ctx, ActionAssetCreated, SeverityInfo, OutcomeSuccess,
		ResourceAsset, a.ID.String(), CategoryEntity, nil,
		"type", string(a.Type),
		"owner_id", a.OwnerID.String(),
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnValueTransferred implements plugin.OnValueTransferred.
func (e *Extension) OnValueTransferred(ctx context.Context, act *activity.Activity, amount int64) error {
	return e.record(ctx, ActionValueTransferred, SeverityInfo, OutcomeSuccess,
		ResourceActivity, act.ID.String(), CategoryLedger, nil,
		append(transferMeta(act), "amount", amount)...,
	)
}

// OnAssetsTransferred implements plugin.OnAssetsTransferred.
func (e *Extension) OnAssetsTransferred(ctx context.Context, act *activity.Activity) error {
	return e.record(ctx, ActionAssetsTransferred, SeverityInfo, OutcomeSuccess,
		ResourceActivity, act.ID.String(), CategoryLedger, nil,
		transferMeta(act)...,
	)
}

// OnAssetContributed implements plugin.OnAssetContributed.
func (e *Extension) OnAssetContributed(ctx context.Context, act *activity.Activity, reward int64) error {
	return e.record(ctx, ActionAssetContributed, SeverityInfo, OutcomeSuccess,
		ResourceActivity, act.ID.String(), CategoryLedger, nil,
		"owner_id", act.OwnerID.String(),
		"reward", reward,
	)
}

// OnAssetOffered implements plugin.OnAssetOffered.
func (e *Extension) OnAssetOffered(ctx context.Context, act *activity.Activity, amount int64) error {
	return e.record(ctx, ActionAssetOffered, SeverityInfo, OutcomeSuccess,
		ResourceActivity, act.ID.String(), CategoryLedger, nil,
		append(transferMeta(act), "amount", amount)...,
	)
}

// OnAccountChecked implements plugin.OnAccountChecked.
func (e *Extension) OnAccountChecked(ctx context.Context, act *activity.Activity) error {
	var amount int64
	if act.CheckAccount != nil {
		amount = act.CheckAccount.Amount
	}
	return e.record(ctx, ActionAccountChecked, SeverityInfo, OutcomeSuccess,
		ResourceOwner, act.OwnerID.String(), CategoryLedger, nil,
		"balance", amount,
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnObligationExecuted implements plugin.OnObligationExecuted.
func (e *Extension) OnObligationExecuted(ctx context.Context, termID id.TermID, act *activity.Activity) error {
	return e.record(ctx, ActionObligationExecuted, SeverityInfo, OutcomeSuccess,
		ResourceTerm, termID.String(), CategorySettlement, nil,
		append(transferMeta(act), "activity_id", act.ID.String())...,
	)
}

// OnObligationFailed implements plugin.OnObligationFailed.
func (e *Extension) OnObligationFailed(ctx context.Context, termID id.TermID, pending *activity.Activity, cause error) error {
	return e.record(ctx, ActionObligationFailed, SeverityError, OutcomeFailure,
		ResourceTerm, termID.String(), CategorySettlement, cause,
		"activity_id", pending.ID.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func transferMeta(act *activity.Activity) []any {
	if act.Transfer == nil {
		return nil
	}
	return []any{
		"transfer_type", string(act.Transfer.Type),
		"from_id", act.Transfer.FromID.String(),
		"to_id", act.Transfer.ToID.String(),
		"count", len(act.Transfer.IDs),
	}
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
