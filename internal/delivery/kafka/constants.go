package kafka

const (
	TopicCommandAudit = "clinicqueue.command.audit"

	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)
