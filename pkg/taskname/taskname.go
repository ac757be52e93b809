package taskname

const (
	// Audit tasks
	AuditAppend = "audit:append"

	// Claim tasks
	ClaimExpirySweep = "claim:expiry:sweep"
)
