package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/leela-coach/pkg/coachdto"
)

const (
	redisGamePrefix = "coach:game:"
	redisRecentKey  = "coach:games:recent"
	redisGameTTL    = 30 * 24 * time.Hour
)

// RedisStore archives game records as JSON values with a recency index in a
// sorted set. Records age out with the TTL; the index entry may outlive the
// body briefly and is skipped on read.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis archive requires a redis URL")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) key(id string) string { return redisGamePrefix + strings.TrimSpace(id) }

func (s *RedisStore) SaveGame(ctx context.Context, rec coachdto.GameRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("game record needs an id")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal game record: %w", err)
	}
	created, err := s.rdb.SetNX(ctx, s.key(rec.ID), raw, redisGameTTL).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrDuplicateGame
	}
	if err := s.rdb.ZAdd(ctx, redisRecentKey, redis.Z{
		Score:  float64(rec.EndedAt.UnixMilli()),
		Member: rec.ID,
	}).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, redisRecentKey, redisGameTTL).Err()
}

func (s *RedisStore) GetGame(ctx context.Context, id string) (*coachdto.GameRecord, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec coachdto.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal game record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) RecentGames(ctx context.Context, limit int) ([]coachdto.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.rdb.ZRevRange(ctx, redisRecentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]coachdto.GameRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetGame(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
