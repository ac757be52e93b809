package claim

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/db/option"
	"rez-rewards-core/pkg/db/pagination"
	"rez-rewards-core/pkg/errutil"
	"rez-rewards-core/pkg/repository"
	"rez-rewards-core/pkg/sequence"
	"rez-rewards-core/services/audit"
	"rez-rewards-core/services/order"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	claims repository.Repository[Claim]
	gate   *Gate
	orders order.Lookup
	seq    sequence.Generator
	node   *snowflake.Node
	audit  audit.Recorder
	cfg    config.RewardsConfig
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
	Orders order.Lookup
	Seq    sequence.Generator
	Audit  audit.Recorder
	Redis  *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	claims := repository.ProvideStore[Claim](p.DB)

	var risk *RiskStore
	if p.Redis != nil {
		risk = NewRiskStore(p.Redis)
	}

	return &Service{
		db:     p.DB,
		claims: claims,
		gate:   NewGate(claims, risk, p.Config.Rewards),
		orders: p.Orders,
		seq:    p.Seq,
		node:   p.Node,
		audit:  p.Audit,
		cfg:    p.Config.Rewards,
	}
}

type SubmitInput struct {
	UserID   string
	Platform string
	ProofURL string
	OrderID  *string
	Metadata RequestMetadata
}

type SubmitResult struct {
	ClaimID   string   `json:"claim_id"`
	ClaimCode string   `json:"claim_code"`
	State     string   `json:"state"`
	Amount    int64    `json:"amount"`
	RiskFlags []string `json:"risk_flags,omitempty"`
}

// Submit validates the input, freezes the cashback amount from the referenced
// order, runs the fraud gate and persists the claim in pending state. The
// create is the commit point: a cancelled context leaves no claim behind.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("user_id", in.UserID),
	)

	if in.UserID == "" {
		return nil, errutil.BadRequest("user id is required", nil)
	}
	if in.ProofURL == "" {
		return nil, errutil.BadRequest("proof url is required", nil)
	}
	if !ValidPlatform(in.Platform) {
		return nil, errutil.BadRequest("unsupported platform", nil,
			errutil.WithDetails(errutil.Detail{Field: "platform", Message: in.Platform}))
	}

	// Amount is computed once, at intake. The order is never consulted again.
	var amount int64
	var storeID, merchantID string
	if in.OrderID != nil && *in.OrderID != "" {
		ord, err := s.orders.GetOrder(ctx, *in.OrderID, in.UserID)
		if err != nil {
			zapLog.Error("failed to resolve order", zap.Error(err))
			return nil, err
		}
		if ord == nil {
			return nil, errutil.BadRequest("order not found", nil)
		}
		amount = (ord.Subtotal*int64(s.cfg.CashbackRateBps) + 5000) / 10000
		storeID = ord.StoreID
		merchantID = ord.MerchantID
	}

	flags, err := s.gate.Evaluate(ctx, GateInput{
		UserID:   in.UserID,
		ProofURL: in.ProofURL,
		OrderID:  in.OrderID,
		Platform: in.Platform,
		Metadata: in.Metadata,
	})
	if err != nil {
		return nil, err
	}

	code, err := s.seq.NextClaimCode(ctx)
	if err != nil {
		zapLog.Error("failed to generate claim code", zap.Error(err))
		return nil, errutil.Internal("failed to generate claim code", err)
	}

	flagsJSON, _ := json.Marshal(flags)

	record := &Claim{
		ID:                s.node.Generate().String(),
		UserID:            in.UserID,
		OrderID:           in.OrderID,
		StoreID:           storeID,
		MerchantID:        merchantID,
		ClaimCode:         code,
		ProofURL:          in.ProofURL,
		Platform:          in.Platform,
		State:             StatePending,
		Amount:            amount,
		CashbackRate:      s.cfg.CashbackRateBps,
		SubmittedAt:       time.Now().UTC(),
		RiskFlags:         flagsJSON,
		SubmissionIP:      in.Metadata.IP,
		DeviceFingerprint: in.Metadata.DeviceFingerprint,
		UserAgent:         in.Metadata.UserAgent,
	}

	if err := s.claims.Create(ctx, record); err != nil {
		// Racers that slipped past the gate's read checks land here on the
		// unique indexes.
		if rejection := rejectionFromUniqueViolation(err); rejection != nil {
			return nil, s.gate.reject(rejection)
		}
		zapLog.Error("failed to persist claim", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:    in.UserID,
		Action:     audit.ActionClaimSubmitted,
		ClaimID:    record.ID,
		AfterState: StatePending,
	})

	zapLog.Info("claim submitted",
		zap.String("claim_id", record.ID),
		zap.String("claim_code", record.ClaimCode),
		zap.Int64("amount", record.Amount),
	)

	return &SubmitResult{
		ClaimID:   record.ID,
		ClaimCode: record.ClaimCode,
		State:     record.State,
		Amount:    record.Amount,
		RiskFlags: flags,
	}, nil
}

func rejectionFromUniqueViolation(err error) *FraudRejection {
	msg := err.Error()
	isUnique := strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
	if !isUnique {
		return nil
	}

	switch {
	case strings.Contains(msg, "user_order") || strings.Contains(msg, "order_id"):
		return &FraudRejection{
			Reason:  ReasonDuplicateOrderClaim,
			Message: "a claim for this order already exists",
		}
	case strings.Contains(msg, "proof_url"):
		return &FraudRejection{
			Reason:  ReasonDuplicateProof,
			Message: "this proof url has already been submitted",
		}
	default:
		// Some other constraint (claim_code). Let the caller see the raw
		// failure instead of a misleading rejection.
		return nil
	}
}

// Get returns a claim visible to its owner.
func (s *Service) Get(ctx context.Context, claimID, userID string) (*Claim, error) {
	record, err := s.claims.FindOne(ctx, &Claim{ID: claimID})
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != userID {
		return nil, errutil.NotFound("claim not found", nil)
	}
	return record, nil
}

type ListInput struct {
	UserID     string
	State      string
	Pagination pagination.Pagination
}

// List returns the owner's claims, newest first, cursor-paginated.
func (s *Service) List(ctx context.Context, in ListInput) ([]*Claim, *pagination.PageInfo, error) {
	query := &Claim{UserID: in.UserID, State: in.State}

	records, err := s.claims.Find(ctx, query,
		option.ApplyPagination(in.Pagination, "submitted_at"),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "submitted_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"submitted_at": true},
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	limit := in.Pagination.Limit
	if limit <= 0 {
		limit = 10
	}

	pageInfo := pagination.BuildCursorPageInfo(records, limit, func(c *Claim) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			SortValue: c.SubmittedAt.UTC().Format(time.RFC3339Nano),
			ID:        c.ID,
		})
		return cursor
	})

	if len(records) > limit {
		records = records[:limit]
	}

	return records, pageInfo, nil
}

// Retract lets the owner delete a claim that is still pending. No other
// deletion path exists.
func (s *Service) Retract(ctx context.Context, claimID, userID string) error {
	record, err := s.claims.FindOne(ctx, &Claim{ID: claimID})
	if err != nil {
		return err
	}
	if record == nil {
		return errutil.NotFound("claim not found", nil)
	}
	if record.UserID != userID {
		return errutil.Forbidden("claim belongs to another user", nil)
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND state = ?", claimID, userID, StatePending).
		Delete(&Claim{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errutil.UnprocessableEntity("only pending claims can be retracted", nil)
	}

	return nil
}

type PlatformStat struct {
	Platform string `json:"platform"`
	State    string `json:"state"`
	Count    int64  `json:"count"`
}

// PlatformStats aggregates the user's claims per platform and state.
func (s *Service) PlatformStats(ctx context.Context, userID string) ([]PlatformStat, error) {
	var stats []PlatformStat
	err := s.db.WithContext(ctx).
		Model(&Claim{}).
		Select("platform, state, count(*) as count").
		Where("user_id = ?", userID).
		Group("platform, state").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
