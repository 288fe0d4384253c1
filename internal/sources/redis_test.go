package sources

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func TestScanKeys_MatchesStringValues(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:1", "user ann@corp.com"))
	require.NoError(t, mr.Set("session:2", "anonymous"))
	require.NoError(t, mr.Set("config", "admin bob@corp.com"))
	mr.HSet("profile:1", "email", "eve@corp.com")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	pool := &inlinePool{}
	err := scanKeys(context.Background(), newEnv(t, pool), rdb, "cache", "cache:6379", "*")
	require.NoError(t, err)

	require.Len(t, pool.findings, 2)
	sort.Slice(pool.findings, func(i, j int) bool { return pool.findings[i].Key < pool.findings[j].Key })
	f := pool.findings[1]
	assert.Equal(t, models.SourceRedis, f.DataSource)
	assert.Equal(t, "session:1", f.Key)
	assert.Equal(t, []string{"ann@corp.com"}, f.Matches)
	assert.Equal(t, "cache:6379 > session:1", f.Location())
	assert.Equal(t, "config", pool.findings[0].Key)
}

func TestScanKeys_HonorsMatchPattern(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:1", "ann@corp.com"))
	require.NoError(t, mr.Set("config", "bob@corp.com"))

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	pool := &inlinePool{}
	require.NoError(t, scanKeys(context.Background(), newEnv(t, pool), rdb, "cache", "h", "session:*"))
	require.Len(t, pool.findings, 1)
	assert.Equal(t, "session:1", pool.findings[0].Key)
}

func TestScanRedis_RequiresHost(t *testing.T) {
	err := scanRedis(context.Background(), newEnv(t, &inlinePool{}), "cache", config.RedisProfile{})
	assert.ErrorContains(t, err, "host is required")
}
