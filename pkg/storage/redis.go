package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/types"
)

// RedisStore keeps run records in Redis or Dragonfly. Each run is a hash
// under <prefix>:run:<id>; a sorted set <prefix>:runs indexes them by start
// time. Runs expire after the configured TTL and their index entries are
// pruned on the next save.
type RedisStore struct {
	client *redis.Client
	env    *envelope
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to the server in cfg and checks it is reachable.
func NewRedisStore(cfg config.StorageConfig) (*RedisStore, error) {
	env, err := newEnvelope(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	s := &RedisStore{
		client: client,
		env:    env,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return s, nil
}

func (s *RedisStore) runKey(id string) string {
	return s.prefix + ":run:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":runs"
}

func (s *RedisStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	fields, err := s.env.encode(rec)
	if err != nil {
		return err
	}

	key := s.runKey(rec.ID.String())
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.StartedAt.UnixMilli()),
		Member: rec.ID.String(),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		cutoff := time.Now().Add(-s.ttl).UnixMilli()
		pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return types.ErrStorageError("save run", err)
	}
	return nil
}

func (s *RedisStore) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.runKey(id.String())).Result()
	if err != nil {
		return nil, types.ErrStorageError("get run", err)
	}
	if len(fields) == 0 {
		return nil, types.ErrRunNotFound(id.String())
	}
	return s.env.decode(fields)
}

func (s *RedisStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, types.ErrStorageError("list runs", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.runKey(id), fieldCodec, fieldSummary)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, types.ErrStorageError("list runs", err)
		}
	}

	out := make([]*RunRecord, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		codec, ok1 := vals[0].(string)
		summary, ok2 := vals[1].(string)
		if !ok1 || !ok2 {
			// expired since the index was read
			continue
		}

		rec, err := s.env.decodeSummary(map[string]string{
			fieldCodec:   codec,
			fieldSummary: summary,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return types.NewClusterErrorWithCause(types.ErrCodeStorageTimeout, "redis is not reachable", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NewStore opens the store selected by cfg.Type.
func NewStore(cfg config.StorageConfig) (RunStore, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisStore(cfg)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, types.ErrInvalidConfig("storage.type", fmt.Sprintf("unknown storage %q", cfg.Type))
	}
}
