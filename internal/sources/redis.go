package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

const redisScanCount = 500

func runRedis(ctx context.Context, env *Env, profiles map[string]config.RedisProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanRedis(ctx, env, name, p); err != nil {
			env.fail(models.SourceRedis, name, err)
		}
	}
}

func scanRedis(ctx context.Context, env *Env, profile string, p config.RedisProfile) error {
	if p.Host == "" {
		return fmt.Errorf("host is required")
	}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: p.Password,
		DB:       p.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("redis at %s is not accessible: %w", addr, err)
	}
	env.Defer(func() { rdb.Close() })

	env.Log.WithField("profile", profile).WithField("host", addr).Info("Redis instance is accessible")
	return scanKeys(ctx, env, rdb, profile, addr, p.Match)
}

// scanKeys walks the keyspace with SCAN and submits one task per string
// key. Keys of other types are skipped.
func scanKeys(ctx context.Context, env *Env, rdb redis.Cmdable, profile, host, match string) error {
	log := env.Log.WithField("profile", profile)
	iter := rdb.Scan(ctx, 0, match, redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !env.Pool.Submit(ctx, func(ctx context.Context) []models.Finding {
			val, err := rdb.Get(ctx, key).Result()
			switch {
			case errors.Is(err, redis.Nil):
				return nil
			case err != nil:
				log.WithError(err).WithField("key", key).Debug("Skipping key")
				return nil
			case val == "":
				return nil
			}
			recs := env.Scanner.ScanText(val, models.SourceRedis)
			return findings(recs, profile, func(f *models.Finding) {
				f.Host = host
				f.Key = key
			})
		}) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	return nil
}
