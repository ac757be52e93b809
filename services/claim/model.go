package claim

import (
	"time"

	"gorm.io/datatypes"
)

// Claim states. Transitions are forward-only: pending → approved → credited,
// or pending → rejected. rejected and credited are terminal.
const (
	StatePending  = "pending"
	StateApproved = "approved"
	StateRejected = "rejected"
	StateCredited = "credited"
)

// Supported proof platforms.
const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformTwitter   = "twitter"
	PlatformTiktok    = "tiktok"
)

type Claim struct {
	ID         string  `gorm:"column:id;primaryKey"`
	UserID     string  `gorm:"column:user_id;index;uniqueIndex:idx_claims_user_order"`
	OrderID    *string `gorm:"column:order_id;uniqueIndex:idx_claims_user_order"`
	StoreID    string  `gorm:"column:store_id;index"`
	MerchantID string  `gorm:"column:merchant_id;index"`

	ClaimCode string `gorm:"column:claim_code;uniqueIndex"`
	ProofURL  string `gorm:"column:proof_url;uniqueIndex"`
	Platform  string `gorm:"column:platform"`
	State     string `gorm:"column:state;index"`

	// Amount is frozen at intake; CashbackRate is held in basis points.
	Amount       int64 `gorm:"column:amount"`
	CashbackRate int   `gorm:"column:cashback_rate"`

	SubmittedAt time.Time  `gorm:"column:submitted_at;index"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at"`
	CreditedAt  *time.Time `gorm:"column:credited_at"`

	ReviewerID      string `gorm:"column:reviewer_id"`
	ReviewNotes     string `gorm:"column:review_notes"`
	RejectionReason string `gorm:"column:rejection_reason"`

	RiskFlags datatypes.JSON `gorm:"column:risk_flags"`

	SubmissionIP      string `gorm:"column:submission_ip"`
	DeviceFingerprint string `gorm:"column:device_fingerprint"`
	UserAgent         string `gorm:"column:user_agent"`
}

func (Claim) TableName() string {
	return "claims"
}

func ValidPlatform(platform string) bool {
	switch platform {
	case PlatformInstagram, PlatformFacebook, PlatformTwitter, PlatformTiktok:
		return true
	}
	return false
}
