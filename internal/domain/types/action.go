package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"

	ActionDatabaseTransactionFailed = "database_transaction_failed"
	ActionExternalServiceFailed     = "external_service_failed"

	ActionScoreRecomputed  = "performance_score_recomputed"
	ActionTripEarning      = "trip_earning_applied"
	ActionCandidatesRanked = "dispatch_candidates_ranked"
	ActionPenaltyEvaluated = "penalty_evaluated"
	ActionPenaltyApplied   = "penalty_applied"
	ActionDriverBlocked    = "driver_blocked"
	ActionBlockSyncFailed  = "driver_block_sync_failed"
	ActionRuleDisabled     = "penalty_rule_disabled"
	ActionTierDisabled     = "earnings_tier_disabled"
	ActionMonthSettled     = "month_settled"
	ActionEventConsumed    = "event_consumed"
	ActionDistanceDegraded = "distance_lookup_degraded"
)
