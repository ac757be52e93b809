package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Actions recorded by the claim pipeline.
const (
	ActionClaimSubmitted   = "claim_submitted"
	ActionClaimApproved    = "claim_approved"
	ActionClaimRejected    = "claim_rejected"
	ActionCashbackCredited = "cashback_credited"
)

// AuditEntry is append-only. Rows are never updated or deleted.
type AuditEntry struct {
	ID          string         `gorm:"column:id;primaryKey"`
	ActorID     string         `gorm:"column:actor_id;index"`
	Action      string         `gorm:"column:action;index"`
	ClaimID     string         `gorm:"column:claim_id;index"`
	BeforeState string         `gorm:"column:before_state"`
	AfterState  string         `gorm:"column:after_state"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

// Entry is the transport shape handed to the Recorder before an id is
// assigned.
type Entry struct {
	ActorID     string         `json:"actor_id"`
	Action      string         `json:"action"`
	ClaimID     string         `json:"claim_id"`
	BeforeState string         `json:"before_state"`
	AfterState  string         `json:"after_state"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}
