package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"horse.fit/news-gatherer/internal/globaltime"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Redis keeps the ledger in one sorted set: member = canonical URL,
// score = first-seen epoch millis. ZADD NX makes upserts insert-if-absent.
type Redis struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		return nil, fmt.Errorf("%w: redis key is empty", ErrLedger)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(opts.Addr),
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, wrap("ping redis", err)
	}
	return &Redis{client: client, key: key, now: globaltime.Now}, nil
}

func (r *Redis) LoadAll(ctx context.Context) (map[string]int64, error) {
	entries, err := r.client.ZRangeWithScores(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, wrap("load", err)
	}
	seen := make(map[string]int64, len(entries))
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		seen[member] = int64(z.Score)
	}
	return seen, nil
}

func (r *Redis) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := cutoffMillis(r.now(), retention)
	removed, err := r.client.ZRemRangeByScore(ctx, r.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, wrap("prune", err)
	}
	return removed, nil
}

func (r *Redis) Upsert(ctx context.Context, canonicalURL string, epochMillis int64) error {
	err := r.client.ZAddNX(ctx, r.key, redis.Z{Score: float64(epochMillis), Member: canonicalURL}).Err()
	if err != nil {
		return wrap("upsert", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
