package observability

// Metric name prefixes
const (
	MetricPrefix = "stakehouse"
)

// Metric names
const (
	// Stake metrics
	StakeUpsertsTotal     = MetricPrefix + ".stakes.upserts_total"
	StakeSettlementsTotal = MetricPrefix + ".stakes.settlements_total"
	StakeSettlementAmount = MetricPrefix + ".stakes.settlement_amount"

	// Invite metrics
	InviteResponsesTotal = MetricPrefix + ".invites.responses_total"

	// Reconciliation metrics
	ReconciliationsTotal = MetricPrefix + ".reconciler.passes_total"
	ConflictsTotal       = MetricPrefix + ".reconciler.conflicts_total"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelOutcome   = "outcome"
)

// Settlement types
const (
	SettlementTypeImmediate = "immediate"
	SettlementTypeConfirmed = "confirmed"
)

// Invite responses
const (
	InviteResponseAccepted = "accepted"
	InviteResponseDeclined = "declined"
)

// Reconciliation outcomes
const (
	OutcomeSynced  = "synced"
	OutcomePending = "pending"
)
