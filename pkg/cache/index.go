// Package cache provides a Redis-backed routing index mapping a
// meeting id to the server it lives on. It is a read-through
// accelerator, never the system of record - the registry in
// pkg/store always wins on a miss or disagreement.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

func meetingServerKey(meetingID string) string {
	return "m:" + meetingID + ":server"
}

func meetingLoadKey(meetingID string) string {
	return "m:" + meetingID + ":load"
}

// Index is the meeting-id to server-id routing cache.
type Index struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis using opts. ttl bounds how long a routing
// entry survives without being rewritten by the gateway; zero means
// entries never expire on their own.
func New(opts *redis.Options, ttl time.Duration) *Index {
	return &Index{rdb: redis.NewClient(opts), ttl: ttl}
}

// SetServer records which server a meeting currently lives on.
func (idx *Index) SetServer(ctx context.Context, meetingID, serverID string) error {
	if meetingID == "" {
		return fmt.Errorf("cache: meeting id is empty")
	}
	if serverID == "" {
		return fmt.Errorf("cache: server id is empty")
	}
	return idx.rdb.Set(ctx, meetingServerKey(meetingID), serverID, idx.ttl).Err()
}

// GetServer returns the server id cached for meetingID, or "" if the
// routing index has no entry - callers fall back to the registry.
func (idx *Index) GetServer(ctx context.Context, meetingID string) (string, error) {
	id, err := idx.rdb.Get(ctx, meetingServerKey(meetingID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetLoad caches a meeting's last-known load. Placement does not read
// it; it takes load from the registry's aggregate query.
func (idx *Index) SetLoad(ctx context.Context, meetingID string, load int) error {
	return idx.rdb.Set(ctx, meetingLoadKey(meetingID), load, idx.ttl).Err()
}

// GetLoad returns the cached load for meetingID and whether an entry
// was found at all.
func (idx *Index) GetLoad(ctx context.Context, meetingID string) (int, bool, error) {
	load, err := idx.rdb.Get(ctx, meetingLoadKey(meetingID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return load, true, nil
}

// Delete removes every cached entry for a meeting, called once it has
// ended through the gateway's end endpoint. Panic migration does not
// call it.
func (idx *Index) Delete(ctx context.Context, meetingID string) error {
	err := idx.rdb.Del(ctx, meetingServerKey(meetingID), meetingLoadKey(meetingID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Close releases the underlying Redis connection.
func (idx *Index) Close() error {
	return idx.rdb.Close()
}
