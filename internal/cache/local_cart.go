package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisLocalCart(client *redis.Client) *RedisLocalCart {
	return &RedisLocalCart{
		client:  client,
		baseTTL: 7 * 24 * time.Hour,
	}
}

// RedisLocalCart keeps the degraded-mode cart of each user.
type RedisLocalCart struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisLocalCart) Load(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return decodeLines(r.client.Get(ctx, localCartKey(userID)))
}

var errCorruptedCart = errors.New("unmarshal local cart failed")

func decodeLines(cmd *redis.StringCmd) ([]domain.CartLine, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.CartLine
	if err2 := json.Unmarshal(data, &lines); err2 != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptedCart, err2)
	}
	return lines, nil
}

const maxAddAttempts = 25

// Add merges line into the stored cart; an existing line for the same product
// has its quantity increased. The read and the write run in one WATCH
// transaction so concurrent adds for a user are not lost. The merged cart is
// returned.
func (r *RedisLocalCart) Add(ctx context.Context, userID string, line domain.CartLine) ([]domain.CartLine, error) {
	key := localCartKey(userID)
	var merged []domain.CartLine

	txf := func(tx *redis.Tx) error {
		lines, err := decodeLines(tx.Get(ctx, key))
		if err != nil {
			return err
		}
		lines = mergeLine(lines, line)

		data, err := json.Marshal(lines)
		if err != nil {
			return fmt.Errorf("marshal local cart failed: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl())
			return nil
		})
		if err == nil {
			merged = lines
		}
		return err
	}

	for i := 0; i < maxAddAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return merged, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, errCorruptedCart) {
			return nil, err
		}
		return nil, fmt.Errorf("redis transaction failed: %w", err)
	}
	return nil, fmt.Errorf("add to local cart of %s: too many concurrent updates", userID)
}

func mergeLine(lines []domain.CartLine, line domain.CartLine) []domain.CartLine {
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Quantity += line.Quantity
			lines[i].Product = line.Product
			return lines
		}
	}
	return append(lines, line)
}

// Save replaces the stored cart with lines.
func (r *RedisLocalCart) Save(ctx context.Context, userID string, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal local cart failed: %w", err)
	}

	if err := r.client.Set(ctx, localCartKey(userID), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisLocalCart) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, localCartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisLocalCart) ttl() time.Duration {
	jitter := time.Duration(rand.Intn(60)) * time.Minute
	return r.baseTTL + jitter
}

func localCartKey(userID string) string {
	return fmt.Sprintf("customer_cart:%s", userID)
}
