package claim

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/db/option"
	"rez-rewards-core/pkg/repository"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	gatePassed   = prometheus.NewCounter(prometheus.CounterOpts{Name: "claim_gate_passed_total"})
	gateRejected = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "claim_gate_rejected_total"}, []string{"reason"})
)

type FraudReason string

const (
	ReasonInvalidFormat       FraudReason = "invalid_format"
	ReasonDuplicateProof      FraudReason = "duplicate_proof"
	ReasonDuplicateOrderClaim FraudReason = "duplicate_order_claim"
	ReasonCooldownActive      FraudReason = "cooldown_active"
	ReasonDailyCapReached     FraudReason = "daily_cap_reached"
)

// FraudRejection is returned by the gate when a hard check fails. It is
// surfaced verbatim to the caller and never retried automatically.
type FraudRejection struct {
	Reason     FraudReason   `json:"reason"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Flags      []string      `json:"flags,omitempty"`
}

func (e *FraudRejection) Error() string {
	return fmt.Sprintf("claim rejected: %s", e.Reason)
}

// Advisory risk flags. They annotate the claim for reviewers but never block
// submission on their own.
const (
	FlagMissingDeviceFingerprint = "missing_device_fingerprint"
	FlagMissingOrderReference    = "missing_order_reference"
	FlagIPVelocity               = "ip_velocity"
	FlagDeviceShared             = "device_shared"
)

const (
	ipVelocityThreshold  = 10
	deviceShareThreshold = 2
	dailyCapWindow       = 24 * time.Hour
)

var proofPatterns = map[string]*regexp.Regexp{
	PlatformInstagram: regexp.MustCompile(`^https?://(www\.)?instagram\.com/([\w.]+/)?(p|reel|reels)/[a-zA-Z0-9_-]+/?(\?.*)?$`),
	PlatformFacebook:  regexp.MustCompile(`^https?://(www\.)?facebook\.com/`),
	PlatformTwitter:   regexp.MustCompile(`^https?://(www\.)?(twitter|x)\.com/.*/status/[0-9]+`),
	PlatformTiktok:    regexp.MustCompile(`^https?://(www\.)?tiktok\.com/`),
}

type RequestMetadata struct {
	IP                string
	DeviceFingerprint string
	UserAgent         string
}

type GateInput struct {
	UserID   string
	ProofURL string
	OrderID  *string
	Platform string
	Metadata RequestMetadata
}

// Gate runs the ordered pre-acceptance checks. The first hard failure stops
// evaluation; the uniqueness checks are additionally backed by unique indexes
// so concurrent racers cannot slip past the read.
type Gate struct {
	claims repository.Repository[Claim]
	risk   *RiskStore
	cfg    config.RewardsConfig
}

func NewGate(claims repository.Repository[Claim], risk *RiskStore, cfg config.RewardsConfig) *Gate {
	return &Gate{claims: claims, risk: risk, cfg: cfg}
}

// Evaluate returns the advisory risk flags on pass, or a *FraudRejection.
func (g *Gate) Evaluate(ctx context.Context, in GateInput) ([]string, error) {
	now := time.Now().UTC()

	// 1. URL format
	pattern, ok := proofPatterns[in.Platform]
	if !ok || !pattern.MatchString(in.ProofURL) {
		return nil, g.reject(&FraudRejection{
			Reason:  ReasonInvalidFormat,
			Message: fmt.Sprintf("proof url does not match the expected %s format", in.Platform),
		})
	}

	// 2. Global proof uniqueness
	existing, err := g.claims.FindOne(ctx, &Claim{ProofURL: in.ProofURL})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, g.reject(&FraudRejection{
			Reason:  ReasonDuplicateProof,
			Message: "this proof url has already been submitted",
		})
	}

	// 3. Per-order uniqueness
	if in.OrderID != nil && *in.OrderID != "" {
		existing, err := g.claims.FindOne(ctx, &Claim{UserID: in.UserID, OrderID: in.OrderID})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, g.reject(&FraudRejection{
				Reason:  ReasonDuplicateOrderClaim,
				Message: "a claim for this order already exists",
			})
		}
	}

	// 4. Cooldown window
	recent, err := g.claims.Find(ctx, &Claim{UserID: in.UserID},
		option.ApplyOperator(option.Condition{
			Field:    "submitted_at",
			Operator: option.GT,
			Value:    now.Add(-g.cfg.CooldownWindow),
		}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "submitted_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"submitted_at": true},
		}),
	)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 {
		remaining := g.cfg.CooldownWindow - now.Sub(recent[0].SubmittedAt)
		return nil, g.reject(&FraudRejection{
			Reason:     ReasonCooldownActive,
			Message:    fmt.Sprintf("please wait %s before submitting another claim", remaining.Round(time.Minute)),
			RetryAfter: remaining,
		})
	}

	// 5. Daily cap
	daily, err := g.claims.Find(ctx, &Claim{UserID: in.UserID},
		option.ApplyOperator(option.Condition{
			Field:    "submitted_at",
			Operator: option.GT,
			Value:    now.Add(-dailyCapWindow),
		}),
	)
	if err != nil {
		return nil, err
	}
	if len(daily) >= g.cfg.DailyCap {
		return nil, g.reject(&FraudRejection{
			Reason:  ReasonDailyCapReached,
			Message: fmt.Sprintf("no more than %d claims may be submitted per day", g.cfg.DailyCap),
		})
	}

	gatePassed.Inc()
	return g.riskFlags(ctx, in), nil
}

// riskFlags computes the advisory annotations. Velocity lookups are
// best-effort: a redis failure yields fewer flags, never an error.
func (g *Gate) riskFlags(ctx context.Context, in GateInput) []string {
	flags := make([]string, 0, 4)

	if in.Metadata.DeviceFingerprint == "" {
		flags = append(flags, FlagMissingDeviceFingerprint)
	}
	if in.OrderID == nil || *in.OrderID == "" {
		flags = append(flags, FlagMissingOrderReference)
	}

	if g.risk == nil {
		return flags
	}

	if in.Metadata.IP != "" {
		count, err := g.risk.ObserveIP(ctx, in.Metadata.IP)
		if err != nil {
			zap.L().Warn("failed to observe submission ip", zap.Error(err))
		} else if count >= ipVelocityThreshold {
			flags = append(flags, FlagIPVelocity)
		}
	}

	if in.Metadata.DeviceFingerprint != "" {
		users, err := g.risk.ObserveDevice(ctx, in.Metadata.DeviceFingerprint, in.UserID)
		if err != nil {
			zap.L().Warn("failed to observe device fingerprint", zap.Error(err))
		} else if users >= deviceShareThreshold {
			flags = append(flags, FlagDeviceShared)
		}
	}

	return flags
}

func (g *Gate) reject(rejection *FraudRejection) error {
	gateRejected.WithLabelValues(string(rejection.Reason)).Inc()
	return rejection
}
