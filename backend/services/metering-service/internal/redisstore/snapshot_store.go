package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"submeter/backend/services/metering-service/internal/meter"
)

// SnapshotStore caches the latest state of each meter in redis.
type SnapshotStore struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewSnapshotStore returns redis-backed store.
func NewSnapshotStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl, timeout: 2 * time.Second, logger: logger}
}

func (s *SnapshotStore) key(meterID string) string {
	return fmt.Sprintf("meters:snapshot:%s", meterID)
}

// Save caches snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snap meter.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snap.ID), data, s.ttl).Err()
}

// Get returns cached snapshot.
func (s *SnapshotStore) Get(ctx context.Context, meterID string) (*meter.Snapshot, error) {
	result, err := s.client.Get(ctx, s.key(meterID)).Result()
	if err != nil {
		return nil, err
	}
	var snap meter.Snapshot
	if err := json.Unmarshal([]byte(result), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes cached snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, meterID string) error {
	return s.client.Del(ctx, s.key(meterID)).Err()
}

// Publish implements coordinator.SnapshotPublisher.
func (s *SnapshotStore) Publish(snap meter.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Save(ctx, snap); err != nil {
		s.logger.Warn("failed to cache meter snapshot", zap.String("meter_id", snap.ID), zap.Error(err))
	}
}

// Forget implements coordinator.SnapshotPublisher.
func (s *SnapshotStore) Forget(meterID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Delete(ctx, meterID); err != nil && err != redis.Nil {
		s.logger.Warn("failed to delete meter snapshot", zap.String("meter_id", meterID), zap.Error(err))
	}
}
