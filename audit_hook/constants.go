package audithook

// Action constants for audit events.
const (
	// Genesis actions
	ActionSystemReset = "system.reset"

	// Entity actions
	ActionOwnerCreated = "owner.created"
	ActionAssetCreated = "asset.created"

	// Ledger actions
	ActionValueTransferred  = "value.transferred"
	ActionAssetsTransferred = "assets.transferred"
	ActionAssetContributed  = "asset.contributed"
	ActionAssetOffered      = "asset.offered"
	ActionAccountChecked    = "account.checked"

	// Settlement actions
	ActionObligationExecuted = "obligation.executed"
	ActionObligationFailed   = "obligation.failed"
)

// Resource constants for audit events.
const (
	ResourceSystem   = "system"
	ResourceOwner    = "owner"
	ResourceAsset    = "asset"
	ResourceValue    = "value"
	ResourceActivity = "activity"
	ResourceTerm     = "term"
)

// Category constants for audit events.
const (
	CategoryGenesis    = "genesis"
	CategoryEntity     = "entity"
	CategoryLedger     = "ledger"
	CategorySettlement = "settlement"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
