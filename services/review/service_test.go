package review

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rez-rewards-core/pkg/authctx"
	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/errutil"
	"rez-rewards-core/pkg/repository"
	"rez-rewards-core/services/audit"
	"rez-rewards-core/services/claim"
	"rez-rewards-core/services/order"
	"rez-rewards-core/services/testutil"
	"rez-rewards-core/services/wallet"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, entry audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeOrders struct {
	orders map[string]*order.Order
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID, userID string) (*order.Order, error) {
	ord, ok := f.orders[orderID]
	if !ok || ord.UserID != userID {
		return nil, nil
	}
	return ord, nil
}

type fakeSequence struct {
	mu   sync.Mutex
	next int
}

func (f *fakeSequence) NextClaimCode(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return "CLM-TEST-" + string(rune('A'+f.next)), nil
}

type testEnv struct {
	db       *gorm.DB
	claims   *claim.Service
	review   *Service
	wallets  *wallet.Service
	recorder *fakeRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t, &claim.Claim{}, &wallet.Wallet{}, &wallet.WalletEntry{}, &order.Order{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	recorder := &fakeRecorder{}

	walletSvc := wallet.NewService(wallet.ServiceParams{
		DB:    db,
		Node:  node,
		Audit: recorder,
	})

	cfg := &config.Config{}
	cfg.Rewards.Normalize()

	claimSvc := claim.NewService(claim.ServiceParams{
		DB:     db,
		Node:   node,
		Config: cfg,
		Orders: &fakeOrders{orders: map[string]*order.Order{
			"order-1": {ID: "order-1", UserID: "user-1", StoreID: "store-1", MerchantID: "merchant-1", Subtotal: 1000, Total: 1100},
		}},
		Seq:   &fakeSequence{},
		Audit: recorder,
	})

	reviewSvc := NewService(ServiceParams{
		DB:     db,
		Credit: walletSvc,
		Audit:  recorder,
	})

	return &testEnv{
		db:       db,
		claims:   claimSvc,
		review:   reviewSvc,
		wallets:  walletSvc,
		recorder: recorder,
	}
}

func (e *testEnv) submit(t *testing.T) string {
	t.Helper()

	orderID := "order-1"
	result, err := e.claims.Submit(context.Background(), claim.SubmitInput{
		UserID:   "user-1",
		Platform: claim.PlatformInstagram,
		ProofURL: "https://www.instagram.com/p/abc123/",
		OrderID:  &orderID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), result.Amount)
	return result.ClaimID
}

func (e *testEnv) claimState(t *testing.T, claimID string) string {
	t.Helper()

	record, err := repository.ProvideStore[claim.Claim](e.db).FindOne(context.Background(), &claim.Claim{ID: claimID})
	require.NoError(t, err)
	require.NotNil(t, record)
	return record.State
}

var (
	merchantActor = authctx.Actor{ID: "merchant-1", StoreIDs: []string{"store-1"}}
	outsideActor  = authctx.Actor{ID: "merchant-2", StoreIDs: []string{"store-2"}}
	systemActor   = authctx.Actor{ID: "admin-1", System: true}
)

func TestMerchantApprovalCreditsImmediately(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	result, err := env.review.Approve(context.Background(), claimID, merchantActor, "looks good")
	require.NoError(t, err)
	require.Equal(t, claim.StateCredited, result.State)
	require.NotNil(t, result.CreditedAmount)
	require.Equal(t, int64(50), *result.CreditedAmount)

	w, err := env.wallets.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), w.Available)
	require.Equal(t, int64(50), w.Total)

	require.Equal(t, claim.StateCredited, env.claimState(t, claimID))
	require.Equal(t, []string{audit.ActionClaimSubmitted, audit.ActionCashbackCredited}, env.recorder.actions())
}

func TestApproveOutOfScope(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	_, err := env.review.Approve(context.Background(), claimID, outsideActor, "")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusForbidden, base.Code)

	require.Equal(t, claim.StatePending, env.claimState(t, claimID))
}

func TestRejectOutOfScope(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	_, err := env.review.Reject(context.Background(), claimID, outsideActor, "spam")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusForbidden, base.Code)

	require.Equal(t, claim.StatePending, env.claimState(t, claimID))
}

func TestSystemApproveLeavesCreditSeparate(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	result, err := env.review.Approve(context.Background(), claimID, systemActor, "manual review")
	require.NoError(t, err)
	require.Equal(t, claim.StateApproved, result.State)
	require.Nil(t, result.CreditedAmount)

	w, err := env.wallets.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), w.Available)

	credit, err := env.wallets.Credit(context.Background(), claimID, systemActor.ID)
	require.NoError(t, err)
	require.Equal(t, claim.StateCredited, credit.State)
	require.Equal(t, int64(50), credit.NewBalance)
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	_, err := env.review.Reject(context.Background(), claimID, merchantActor, "")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusBadRequest, base.Code)

	require.Equal(t, claim.StatePending, env.claimState(t, claimID))
}

func TestRejectedIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	result, err := env.review.Reject(context.Background(), claimID, merchantActor, "proof does not match order")
	require.NoError(t, err)
	require.Equal(t, claim.StateRejected, result.State)

	_, err = env.review.Approve(context.Background(), claimID, merchantActor, "")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusUnprocessableEntity, base.Code)

	_, err = env.wallets.Credit(context.Background(), claimID, systemActor.ID)
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusUnprocessableEntity, base.Code)

	require.Equal(t, claim.StateRejected, env.claimState(t, claimID))
}

func TestApproveTwice(t *testing.T) {
	env := newTestEnv(t)
	claimID := env.submit(t)

	_, err := env.review.Approve(context.Background(), claimID, systemActor, "")
	require.NoError(t, err)

	_, err = env.review.Approve(context.Background(), claimID, systemActor, "")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusUnprocessableEntity, base.Code)
}

func TestUnknownClaim(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.review.Approve(context.Background(), "missing", systemActor, "")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusNotFound, base.Code)
}
