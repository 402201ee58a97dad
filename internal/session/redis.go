package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/epitome/examportal/internal/models"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	sessionKeyTpl = "session:%s" // session:${id}
)

// RedisStore keeps each session as a hash with a TTL.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{redis: client}, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf(sessionKeyTpl, id)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (rs *RedisStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	key := sessionKey(s.ID)

	_, err := rs.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"user_type":        string(s.UserType),
			"username":         s.Username,
			"full_name":        s.Profile.FullName,
			"email":            s.Profile.Email,
			"gender":           s.Profile.Gender,
			"subject":          s.Profile.Subject,
			"exam_started":     flag(s.ExamStarted),
			"exam_submitted":   flag(s.ExamSubmitted),
			"created_dttm_utc": s.CreatedAt.UTC().Format(timeFormat),
		})
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (rs *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	values, err := rs.redis.HGetAll(ctx, sessionKey(id)).Result()
	if err == redis.Nil || (err == nil && len(values) == 0) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	createdAt, _ := time.Parse(timeFormat, values["created_dttm_utc"])

	return &Session{
		ID:       id,
		UserType: UserType(values["user_type"]),
		Username: values["username"],
		Profile: models.Profile{
			FullName: values["full_name"],
			Email:    values["email"],
			Gender:   values["gender"],
			Subject:  values["subject"],
		},
		ExamStarted:   values["exam_started"] == "1",
		ExamSubmitted: values["exam_submitted"] == "1",
		CreatedAt:     createdAt,
	}, nil
}

func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	if err := rs.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	if rs.redis != nil {
		return rs.redis.Close()
	}
	return nil
}
