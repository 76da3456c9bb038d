// Package observability provides a metrics extension for Tally that records
// ledger and settlement event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnGenesis            = (*MetricsExtension)(nil)
	_ plugin.OnOwnerCreated       = (*MetricsExtension)(nil)
	_ plugin.OnAssetCreated       = (*MetricsExtension)(nil)
	_ plugin.OnValueTransferred   = (*MetricsExtension)(nil)
	_ plugin.OnAssetsTransferred  = (*MetricsExtension)(nil)
	_ plugin.OnAssetContributed   = (*MetricsExtension)(nil)
	_ plugin.OnAssetOffered       = (*MetricsExtension)(nil)
	_ plugin.OnAccountChecked     = (*MetricsExtension)(nil)
	_ plugin.OnObligationExecuted = (*MetricsExtension)(nil)
	_ plugin.OnObligationFailed   = (*MetricsExtension)(nil)
	_ plugin.OnSettlementTick     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a Tally plugin to track value flow automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Genesis metrics
	Resets       Counter
	SupplyMinted Counter

	// Entity metrics
	OwnerCreated Counter
	AssetCreated Counter

	// Ledger metrics
	ValueTransfers     Counter
	ValueTransferred   Counter
	AssetTransfers     Counter
	RewardsMinted      Counter
	RewardSize         Histogram
	AssetOffers        Counter
	ValueOffered       Counter
	AccountChecks      Counter
	AccountBalanceSeen Histogram

	// Settlement metrics
	ObligationsExecuted Counter
	ObligationsFailed   Counter
	SettlementTicks     Counter
	SettlementLatency   Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		Resets:       factory.Counter("tally.genesis.resets"),
		SupplyMinted: factory.Counter("tally.genesis.supply"),

		OwnerCreated: factory.Counter("tally.owner.created"),
		AssetCreated: factory.Counter("tally.asset.created"),

		ValueTransfers:     factory.Counter("tally.value.transfers"),
		ValueTransferred:   factory.Counter("tally.value.transferred"),
		AssetTransfers:     factory.Counter("tally.asset.transfers"),
		RewardsMinted:      factory.Counter("tally.reward.minted"),
		RewardSize:         factory.Histogram("tally.reward.size"),
		AssetOffers:        factory.Counter("tally.asset.offers"),
		ValueOffered:       factory.Counter("tally.value.offered"),
		AccountChecks:      factory.Counter("tally.account.checks"),
		AccountBalanceSeen: factory.Histogram("tally.account.balance"),

		ObligationsExecuted: factory.Counter("tally.obligation.executed"),
		ObligationsFailed:   factory.Counter("tally.obligation.failed"),
		SettlementTicks:     factory.Counter("tally.settlement.ticks"),
		SettlementLatency:   factory.Histogram("tally.settlement.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnGenesis implements plugin.OnGenesis.
func (m *MetricsExtension) OnGenesis(_ context.Context, _ *owner.Owner, supply int64) error {
	m.Resets.Inc()
	m.SupplyMinted.Add(float64(supply))
	return nil
}

// OnOwnerCreated implements plugin.OnOwnerCreated.
func (m *MetricsExtension) OnOwnerCreated(_ context.Context, _ *owner.Owner) error {
	m.OwnerCreated.Inc()
	return nil
}

// OnAssetCreated implements plugin.OnAssetCreated.
func (m *MetricsExtension) OnAssetCreated(_ context.Context, _ *asset.Asset) error {
	m.AssetCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnValueTransferred implements plugin.OnValueTransferred.
func (m *MetricsExtension) OnValueTransferred(_ context.Context, _ *activity.Activity, amount int64) error {
	m.ValueTransfers.Inc()
	m.ValueTransferred.Add(float64(amount))
	return nil
}

// OnAssetsTransferred implements plugin.OnAssetsTransferred.
func (m *MetricsExtension) OnAssetsTransferred(_ context.Context, act *activity.Activity) error {
	if act.Transfer != nil {
		m.AssetTransfers.Add(float64(len(act.Transfer.IDs)))
	}
	return nil
}

// OnAssetContributed implements plugin.OnAssetContributed.
func (m *MetricsExtension) OnAssetContributed(_ context.Context, _ *activity.Activity, reward int64) error {
	m.RewardsMinted.Add(float64(reward))
	m.RewardSize.Observe(float64(reward))
	return nil
}

// OnAssetOffered implements plugin.OnAssetOffered.
func (m *MetricsExtension) OnAssetOffered(_ context.Context, _ *activity.Activity, amount int64) error {
	m.AssetOffers.Inc()
	m.ValueOffered.Add(float64(amount))
	return nil
}

// OnAccountChecked implements plugin.OnAccountChecked.
func (m *MetricsExtension) OnAccountChecked(_ context.Context, act *activity.Activity) error {
	m.AccountChecks.Inc()
	if act.CheckAccount != nil {
		m.AccountBalanceSeen.Observe(float64(act.CheckAccount.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnObligationExecuted implements plugin.OnObligationExecuted.
func (m *MetricsExtension) OnObligationExecuted(_ context.Context, _ id.TermID, _ *activity.Activity) error {
	m.ObligationsExecuted.Inc()
	return nil
}

// OnObligationFailed implements plugin.OnObligationFailed.
func (m *MetricsExtension) OnObligationFailed(_ context.Context, _ id.TermID, _ *activity.Activity, _ error) error {
	m.ObligationsFailed.Inc()
	return nil
}

// OnSettlementTick implements plugin.OnSettlementTick.
func (m *MetricsExtension) OnSettlementTick(_ context.Context, _, _ int, elapsed time.Duration) error {
	m.SettlementTicks.Inc()
	m.SettlementLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
