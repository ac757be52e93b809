package wallet

import (
	"context"
	"time"

	"rez-rewards-core/pkg/db/option"
	"rez-rewards-core/pkg/errutil"
	"rez-rewards-core/pkg/repository"
	"rez-rewards-core/services/audit"
	"rez-rewards-core/services/claim"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Coordinator is the crediting entry point exposed to the review service.
type Coordinator interface {
	Credit(ctx context.Context, claimID, actorID string) (*CreditResult, error)
}

type Service struct {
	db      *gorm.DB
	wallets repository.Repository[Wallet]
	entries repository.Repository[WalletEntry]
	claims  repository.Repository[claim.Claim]
	node    *snowflake.Node
	audit   audit.Recorder
}

type ServiceParams struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Audit audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		wallets: repository.ProvideStore[Wallet](p.DB),
		entries: repository.ProvideStore[WalletEntry](p.DB),
		claims:  repository.ProvideStore[claim.Claim](p.DB),
		node:    p.Node,
		audit:   p.Audit,
	}
}

type CreditResult struct {
	ClaimID    string `json:"claim_id"`
	State      string `json:"state"`
	NewBalance int64  `json:"new_balance"`
}

// Credit executes approved → credited as one transaction spanning the claim
// and the wallet. It is idempotent: an already-credited claim returns the
// current state without error, and concurrent invocations are serialised by
// the row lock plus the unique wallet entry per claim. Either both the wallet
// increment and the state change commit, or neither does.
func (s *Service) Credit(ctx context.Context, claimID, actorID string) (*CreditResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("claim_id", claimID),
	)

	var result *CreditResult
	var credited bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.claims.WithTrx(tx).FindOne(ctx, &claim.Claim{ID: claimID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if record == nil {
			return errutil.NotFound("claim not found", nil)
		}

		if record.State == claim.StateCredited {
			// A previous attempt already completed. Report the outcome
			// without touching anything.
			w, err := s.wallets.WithTrx(tx).FindOne(ctx, &Wallet{UserID: record.UserID})
			if err != nil {
				return err
			}
			var balance int64
			if w != nil {
				balance = w.Available
			}
			result = &CreditResult{ClaimID: claimID, State: claim.StateCredited, NewBalance: balance}
			return nil
		}

		if record.State != claim.StateApproved {
			return errutil.UnprocessableEntity("claim is not approved", nil,
				errutil.WithDetails(errutil.Detail{Field: "state", Message: record.State}))
		}

		now := time.Now().UTC()

		w, err := s.wallets.WithTrx(tx).FindOne(ctx, &Wallet{UserID: record.UserID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if w == nil {
			w = &Wallet{
				ID:        s.node.Generate().String(),
				UserID:    record.UserID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.wallets.WithTrx(tx).Create(ctx, w); err != nil {
				return err
			}
		}

		// The unique claim_id index makes a concurrent second credit fail
		// here, rolling its transaction back.
		if err := s.entries.WithTrx(tx).Create(ctx, &WalletEntry{
			ID:        s.node.Generate().String(),
			WalletID:  w.ID,
			UserID:    record.UserID,
			ClaimID:   claimID,
			Amount:    record.Amount,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := tx.Model(&Wallet{}).Where("id = ?", w.ID).Updates(map[string]interface{}{
			"available":  gorm.Expr("available + ?", record.Amount),
			"total":      gorm.Expr("total + ?", record.Amount),
			"updated_at": now,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&claim.Claim{}).
			Where("id = ? AND state = ?", claimID, claim.StateApproved).
			Updates(map[string]interface{}{
				"state":       claim.StateCredited,
				"credited_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("claim state changed during crediting", nil)
		}

		result = &CreditResult{
			ClaimID:    claimID,
			State:      claim.StateCredited,
			NewBalance: w.Available + record.Amount,
		}
		credited = true
		return nil
	})
	if err != nil {
		zapLog.Error("crediting failed", zap.Error(err))
		return nil, err
	}

	if credited {
		// Best-effort after commit: an audit failure never unwinds the
		// committed credit.
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionCashbackCredited,
			ClaimID:     claimID,
			BeforeState: claim.StateApproved,
			AfterState:  claim.StateCredited,
		})

		zapLog.Info("cashback credited", zap.Int64("balance", result.NewBalance))
	}

	return result, nil
}

// GetBalance returns the user's wallet, zero-valued when none exists yet.
func (s *Service) GetBalance(ctx context.Context, userID string) (*Wallet, error) {
	w, err := s.wallets.FindOne(ctx, &Wallet{UserID: userID})
	if err != nil {
		return nil, err
	}
	if w == nil {
		return &Wallet{UserID: userID}, nil
	}
	return w, nil
}
