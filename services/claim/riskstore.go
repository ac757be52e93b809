package claim

import (
	"context"
	"fmt"
	"time"

	"rez-rewards-core/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const riskWindow = time.Hour

// RiskStore tracks submission velocity per IP and per device fingerprint in
// redis with a sliding TTL. Counts are approximate and only feed advisory
// risk flags, never a hard rejection.
type RiskStore struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewRiskStore(rdb *redis.Client) *RiskStore {
	return &RiskStore{
		rdb: rdb,
		ttl: riskWindow,
	}
}

// ObserveIP records a submission from ip and returns how many submissions
// the ip has made within the window. Concurrent observations of the same ip
// are collapsed; velocity is a heuristic, not an exact count.
func (s *RiskStore) ObserveIP(ctx context.Context, ip string) (int64, error) {
	v, err, _ := s.group.Do(fmt.Sprintf("ip:%s", ip), func() (interface{}, error) {
		key := rediskey.BuildRiskIPKey(ip)
		count, err := s.rdb.Incr(ctx, key).Result()
		if err != nil {
			return int64(0), err
		}
		if count == 1 {
			_ = s.rdb.Expire(ctx, key, s.ttl).Err()
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ObserveDevice records that userID submitted from the given fingerprint and
// returns how many distinct users share it within the window.
func (s *RiskStore) ObserveDevice(ctx context.Context, fingerprint, userID string) (int64, error) {
	v, err, _ := s.group.Do(fmt.Sprintf("device:%s:%s", fingerprint, userID), func() (interface{}, error) {
		key := rediskey.BuildRiskDeviceKey(fingerprint)
		if err := s.rdb.SAdd(ctx, key, userID).Err(); err != nil {
			return int64(0), err
		}
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
		return s.rdb.SCard(ctx, key).Result()
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}
