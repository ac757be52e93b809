package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/taskname"
	"rez-rewards-core/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func queueConfig(enabled bool) *config.Config {
	cfg := &config.Config{}
	cfg.Rewards.Normalize()
	cfg.Rewards.AuditQueue = enabled
	return cfg
}

func newTestService(t *testing.T, enqueuer *fakeEnqueuer, queue bool) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &AuditEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	params := ServiceParams{
		DB:     db,
		Node:   node,
		Config: queueConfig(queue),
	}
	if enqueuer != nil {
		params.Enqueuer = enqueuer
	}

	return NewService(params), db
}

func sampleEntry() Entry {
	return Entry{
		ActorID:    "user-1",
		Action:     ActionClaimSubmitted,
		ClaimID:    "claim-1",
		AfterState: "pending",
	}
}

func TestRecordWritesDirectlyWithoutQueue(t *testing.T) {
	svc, db := newTestService(t, nil, false)

	svc.Record(context.Background(), sampleEntry())

	var stored AuditEntry
	require.NoError(t, db.First(&stored, "claim_id = ?", "claim-1").Error)
	require.Equal(t, ActionClaimSubmitted, stored.Action)
	require.Equal(t, "user-1", stored.ActorID)
	require.NotEmpty(t, stored.ID)
	require.False(t, stored.CreatedAt.IsZero())
}

func TestRecordEnqueues(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	svc, db := newTestService(t, enqueuer, true)

	svc.Record(context.Background(), sampleEntry())

	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, taskname.AuditAppend, enqueuer.tasks[0].Type())

	var payload Entry
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &payload))
	require.Equal(t, "claim-1", payload.ClaimID)

	// Nothing persisted until the worker runs.
	var count int64
	require.NoError(t, db.Model(&AuditEntry{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestRecordFallsBackWhenEnqueueFails(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	svc, db := newTestService(t, enqueuer, true)

	svc.Record(context.Background(), sampleEntry())

	var count int64
	require.NoError(t, db.Model(&AuditEntry{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestHandleAppendTask(t *testing.T) {
	svc, db := newTestService(t, nil, false)

	payload, err := json.Marshal(sampleEntry())
	require.NoError(t, err)

	err = svc.HandleAppendTask(context.Background(), asynq.NewTask(taskname.AuditAppend, payload))
	require.NoError(t, err)

	var stored AuditEntry
	require.NoError(t, db.First(&stored, "claim_id = ?", "claim-1").Error)
	require.Equal(t, ActionClaimSubmitted, stored.Action)
}

func TestHandleAppendTaskInvalidPayload(t *testing.T) {
	svc, _ := newTestService(t, nil, false)

	err := svc.HandleAppendTask(context.Background(), asynq.NewTask(taskname.AuditAppend, []byte("{")))
	require.Error(t, err)
}
