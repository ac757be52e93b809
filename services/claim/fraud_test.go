package claim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/db/option"
	"rez-rewards-core/pkg/repository"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn     func(tx *gorm.DB) repository.Repository[T]
	findFn        func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn     func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn      func(ctx context.Context, resource *T) error
	updateFn      func(ctx context.Context, resourceID string, resource any) error
	batchCreateFn func(ctx context.Context, resources []*T) error
	batchUpdateFn func(ctx context.Context, resources []*T) error
	countFn       func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, resourceID, resource)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	if m.batchUpdateFn != nil {
		return m.batchUpdateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, query)
	}
	return 0, nil
}

func testRewardsConfig() config.RewardsConfig {
	cfg := config.RewardsConfig{}
	cfg.Normalize()
	return cfg
}

func requireRejection(t *testing.T, err error, reason FraudReason) *FraudRejection {
	t.Helper()
	require.Error(t, err)
	rejection, ok := err.(*FraudRejection)
	require.True(t, ok, "expected *FraudRejection, got %T", err)
	require.Equal(t, reason, rejection.Reason)
	return rejection
}

func TestGateProofPatterns(t *testing.T) {
	cases := []struct {
		platform string
		url      string
		valid    bool
	}{
		{PlatformInstagram, "https://www.instagram.com/p/Cxyz_123-/", true},
		{PlatformInstagram, "https://instagram.com/reel/abc123", true},
		{PlatformInstagram, "https://www.instagram.com/someuser/p/Cxyz123/?igsh=1", true},
		{PlatformInstagram, "https://www.instagram.com/someuser/", false},
		{PlatformTwitter, "https://x.com/someone/status/1234567890", true},
		{PlatformTwitter, "https://twitter.com/someone/status/1234567890", true},
		{PlatformTwitter, "https://x.com/someone", false},
		{PlatformFacebook, "https://www.facebook.com/someone/posts/123", true},
		{PlatformFacebook, "https://notfacebook.example.com/post", false},
		{PlatformTiktok, "https://www.tiktok.com/@user/video/123", true},
		{PlatformTiktok, "https://example.com/@user/video/123", false},
	}

	for _, tc := range cases {
		matched := proofPatterns[tc.platform].MatchString(tc.url)
		require.Equal(t, tc.valid, matched, "%s %s", tc.platform, tc.url)
	}
}

func TestGateInvalidFormatStopsEvaluation(t *testing.T) {
	claims := &repoMock[Claim]{
		findOneFn: func(ctx context.Context, _ *Claim, _ ...option.QueryOption) (*Claim, error) {
			t.Fatal("uniqueness check must not run after a format failure")
			return nil, nil
		},
	}

	gate := NewGate(claims, nil, testRewardsConfig())
	_, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformInstagram,
		ProofURL: "https://example.com/not-instagram",
	})

	requireRejection(t, err, ReasonInvalidFormat)
}

func TestGateDuplicateProof(t *testing.T) {
	claims := &repoMock[Claim]{
		findOneFn: func(ctx context.Context, query *Claim, _ ...option.QueryOption) (*Claim, error) {
			if query.ProofURL != "" {
				return &Claim{ID: "existing"}, nil
			}
			return nil, nil
		},
	}

	gate := NewGate(claims, nil, testRewardsConfig())
	_, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformInstagram,
		ProofURL: "https://www.instagram.com/p/abc123/",
	})

	requireRejection(t, err, ReasonDuplicateProof)
}

func TestGateDuplicateOrderClaim(t *testing.T) {
	orderID := "order-1"
	claims := &repoMock[Claim]{
		findOneFn: func(ctx context.Context, query *Claim, _ ...option.QueryOption) (*Claim, error) {
			if query.OrderID != nil {
				return &Claim{ID: "existing"}, nil
			}
			return nil, nil
		},
	}

	gate := NewGate(claims, nil, testRewardsConfig())
	_, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformInstagram,
		ProofURL: "https://www.instagram.com/p/abc123/",
		OrderID:  &orderID,
	})

	requireRejection(t, err, ReasonDuplicateOrderClaim)
}

func TestGateCooldownIncludesRemainingWait(t *testing.T) {
	claims := &repoMock[Claim]{
		findFn: func(ctx context.Context, _ *Claim, _ ...option.QueryOption) ([]*Claim, error) {
			return []*Claim{{SubmittedAt: time.Now().UTC().Add(-time.Hour)}}, nil
		},
	}

	gate := NewGate(claims, nil, testRewardsConfig())
	_, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformInstagram,
		ProofURL: "https://www.instagram.com/p/abc123/",
	})

	rejection := requireRejection(t, err, ReasonCooldownActive)
	require.Greater(t, rejection.RetryAfter, 22*time.Hour)
	require.LessOrEqual(t, rejection.RetryAfter, 23*time.Hour)
}

func TestGateDailyCap(t *testing.T) {
	cfg := testRewardsConfig()
	cfg.CooldownWindow = time.Hour

	calls := 0
	claims := &repoMock[Claim]{
		findFn: func(ctx context.Context, _ *Claim, _ ...option.QueryOption) ([]*Claim, error) {
			calls++
			if calls == 1 {
				// Cooldown query: nothing within the last hour.
				return nil, nil
			}
			// Cap query: three claims within the trailing day.
			return []*Claim{
				{SubmittedAt: time.Now().UTC().Add(-2 * time.Hour)},
				{SubmittedAt: time.Now().UTC().Add(-3 * time.Hour)},
				{SubmittedAt: time.Now().UTC().Add(-4 * time.Hour)},
			}, nil
		},
	}

	gate := NewGate(claims, nil, cfg)
	_, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformInstagram,
		ProofURL: "https://www.instagram.com/p/abc123/",
	})

	requireRejection(t, err, ReasonDailyCapReached)
}

func TestGateAdvisoryFlags(t *testing.T) {
	gate := NewGate(&repoMock[Claim]{}, nil, testRewardsConfig())

	flags, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformInstagram,
		ProofURL: "https://www.instagram.com/p/abc123/",
	})

	require.NoError(t, err)
	require.Contains(t, flags, FlagMissingDeviceFingerprint)
	require.Contains(t, flags, FlagMissingOrderReference)
}

func TestGatePassWithMetadata(t *testing.T) {
	orderID := "order-1"
	gate := NewGate(&repoMock[Claim]{}, nil, testRewardsConfig())

	flags, err := gate.Evaluate(context.Background(), GateInput{
		UserID:   "user-1",
		Platform: PlatformTiktok,
		ProofURL: "https://www.tiktok.com/@user/video/123",
		OrderID:  &orderID,
		Metadata: RequestMetadata{DeviceFingerprint: "fp-1"},
	})

	require.NoError(t, err)
	require.Empty(t, flags)
}
