package audit

import (
	"context"
	"encoding/json"
	"time"

	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/repository"
	"rez-rewards-core/pkg/task"
	"rez-rewards-core/pkg/taskname"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder appends an audit entry for a claim state transition. Recording is
// fire-and-forget: implementations log failures instead of returning them so
// the financial path is never blocked on the sink.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type Service struct {
	entries  repository.Repository[AuditEntry]
	node     *snowflake.Node
	enqueuer task.Enqueuer
	useQueue bool
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	useQueue := p.Enqueuer != nil
	if p.Config != nil && !p.Config.Rewards.AuditQueue {
		useQueue = false
	}

	return &Service{
		entries:  repository.ProvideStore[AuditEntry](p.DB),
		node:     p.Node,
		enqueuer: p.Enqueuer,
		useQueue: useQueue,
	}
}

// Record enqueues the entry for the background writer, falling back to a
// direct insert when no queue is configured. Errors are logged only.
func (s *Service) Record(ctx context.Context, entry Entry) {
	zapLog := zap.L().With(
		zap.String("action", entry.Action),
		zap.String("claim_id", entry.ClaimID),
	)

	if s.useQueue {
		payload, err := json.Marshal(entry)
		if err != nil {
			zapLog.Error("failed to marshal audit entry", zap.Error(err))
			return
		}

		if _, err := s.enqueuer.Enqueue(asynq.NewTask(taskname.AuditAppend, payload)); err != nil {
			zapLog.Warn("failed to enqueue audit entry, writing directly", zap.Error(err))
		} else {
			return
		}
	}

	if err := s.append(ctx, entry); err != nil {
		zapLog.Error("failed to append audit entry", zap.Error(err))
	}
}

func (s *Service) append(ctx context.Context, entry Entry) error {
	return s.entries.Create(ctx, &AuditEntry{
		ID:          s.node.Generate().String(),
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		ClaimID:     entry.ClaimID,
		BeforeState: entry.BeforeState,
		AfterState:  entry.AfterState,
		Metadata:    entry.Metadata,
		CreatedAt:   time.Now().UTC(),
	})
}
