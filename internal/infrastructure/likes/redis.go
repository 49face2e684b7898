// Package likes persists per-user liked-product snapshots. Snapshots are the
// only signal the recommender consumes; nothing here is shared across users.
package likes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cartcompass/backend/internal/domain"
)

// RedisLikes stores snapshots in a per-user redis hash keyed by product ID.
type RedisLikes struct {
	client *redis.Client
}

func NewRedisLikes(client *redis.Client) *RedisLikes {
	return &RedisLikes{client: client}
}

func likesKey(userID string) string {
	return "likes:" + userID
}

// Snapshots returns all liked snapshots for a user. A user with no likes
// gets an empty slice, not an error.
func (r *RedisLikes) Snapshots(ctx context.Context, userID string) ([]domain.LikedSnapshot, error) {
	raw, err := r.client.HGetAll(ctx, likesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load likes for %s: %w", userID, err)
	}

	snapshots := make([]domain.LikedSnapshot, 0, len(raw))
	for _, encoded := range raw {
		var snapshot domain.LikedSnapshot
		if err := json.Unmarshal([]byte(encoded), &snapshot); err != nil {
			// one corrupt field must not hide the rest
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Add upserts a snapshot under the user's hash.
func (r *RedisLikes) Add(ctx context.Context, userID string, snapshot domain.LikedSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("%w: snapshot needs a product id", domain.ErrInvalidInput)
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return r.client.HSet(ctx, likesKey(userID), snapshot.ID, encoded).Err()
}

// Remove deletes one snapshot. Removing an absent snapshot is a no-op.
func (r *RedisLikes) Remove(ctx context.Context, userID string, productID string) error {
	return r.client.HDel(ctx, likesKey(userID), productID).Err()
}
