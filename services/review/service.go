package review

import (
	"context"
	"time"

	"rez-rewards-core/pkg/authctx"
	"rez-rewards-core/pkg/errutil"
	"rez-rewards-core/pkg/repository"
	"rez-rewards-core/services/audit"
	"rez-rewards-core/services/claim"
	"rez-rewards-core/services/wallet"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	claims repository.Repository[claim.Claim]
	credit wallet.Coordinator
	audit  audit.Recorder
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Credit wallet.Coordinator
	Audit  audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		claims: repository.ProvideStore[claim.Claim](p.DB),
		credit: p.Credit,
		audit:  p.Audit,
	}
}

type ReviewResult struct {
	ClaimID        string `json:"claim_id"`
	State          string `json:"state"`
	CreditedAmount *int64 `json:"credited_amount,omitempty"`
}

// Approve moves a pending claim to approved. Merchant-scoped reviewers may
// only act on claims tied to their own stores, and their approval credits the
// wallet in the same logical operation; the system path leaves crediting to a
// separate call.
func (s *Service) Approve(ctx context.Context, claimID string, actor authctx.Actor, notes string) (*ReviewResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("claim_id", claimID),
		zap.String("reviewer_id", actor.ID),
	)

	record, err := s.authorize(ctx, claimID, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&claim.Claim{}).
		Where("id = ? AND state = ?", claimID, claim.StatePending).
		Updates(map[string]interface{}{
			"state":        claim.StateApproved,
			"reviewed_at":  now,
			"reviewer_id":  actor.ID,
			"review_notes": notes,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.UnprocessableEntity("claim is not pending", nil,
			errutil.WithDetails(errutil.Detail{Field: "state", Message: record.State}))
	}

	result := &ReviewResult{ClaimID: claimID, State: claim.StateApproved}

	if actor.System {
		// The merchant path is audited by the crediting entry; a separate
		// approval record only exists when approve and credit are split.
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.ID,
			Action:      audit.ActionClaimApproved,
			ClaimID:     claimID,
			BeforeState: claim.StatePending,
			AfterState:  claim.StateApproved,
		})
	}

	if !actor.System {
		// Merchant approval implies payout.
		creditResult, err := s.credit.Credit(ctx, claimID, actor.ID)
		if err != nil {
			// The approval stands; crediting is retryable via the system
			// path.
			zapLog.Error("crediting after merchant approval failed", zap.Error(err))
			return nil, err
		}
		result.State = creditResult.State
		result.CreditedAmount = &record.Amount
	}

	zapLog.Info("claim approved", zap.String("state", result.State))
	return result, nil
}

// Reject moves a pending claim to rejected. A non-empty reason is required.
func (s *Service) Reject(ctx context.Context, claimID string, actor authctx.Actor, reason string) (*ReviewResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if reason == "" {
		return nil, errutil.BadRequest("rejection reason is required", nil)
	}

	record, err := s.authorize(ctx, claimID, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&claim.Claim{}).
		Where("id = ? AND state = ?", claimID, claim.StatePending).
		Updates(map[string]interface{}{
			"state":            claim.StateRejected,
			"reviewed_at":      now,
			"reviewer_id":      actor.ID,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.UnprocessableEntity("claim is not pending", nil,
			errutil.WithDetails(errutil.Detail{Field: "state", Message: record.State}))
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor.ID,
		Action:      audit.ActionClaimRejected,
		ClaimID:     claimID,
		BeforeState: claim.StatePending,
		AfterState:  claim.StateRejected,
	})

	zap.L().Info("claim rejected",
		zap.String("claim_id", claimID),
		zap.String("reviewer_id", actor.ID),
	)

	return &ReviewResult{ClaimID: claimID, State: claim.StateRejected}, nil
}

// authorize loads the claim and checks the actor's scope covers its store.
// Violations never mutate anything.
func (s *Service) authorize(ctx context.Context, claimID string, actor authctx.Actor) (*claim.Claim, error) {
	record, err := s.claims.FindOne(ctx, &claim.Claim{ID: claimID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errutil.NotFound("claim not found", nil)
	}
	if !actor.OwnsStore(record.StoreID) {
		return nil, errutil.Forbidden("claim is outside the reviewer's scope", nil)
	}
	return record, nil
}
