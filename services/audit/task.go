package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"rez-rewards-core/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("task.audit",
	fx.Invoke(registerTaskHandlers),
)

type taskHandlerParams struct {
	fx.In

	Mux     *asynq.ServeMux
	Service *Service
}

func registerTaskHandlers(p taskHandlerParams) {
	p.Mux.HandleFunc(taskname.AuditAppend, p.Service.HandleAppendTask)
}

// HandleAppendTask persists an audit entry enqueued by Record.
func (s *Service) HandleAppendTask(ctx context.Context, t *asynq.Task) error {
	var entry Entry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("action", entry.Action),
		zap.String("claim_id", entry.ClaimID),
	)

	if err := s.append(ctx, entry); err != nil {
		zapLog.Error("failed to append audit entry", zap.Error(err))
		return err
	}

	return nil
}
