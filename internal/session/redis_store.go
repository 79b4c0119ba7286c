package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/security"
)

// RedisStore keeps the identity server-side; the cookie only holds an opaque id.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   CookieOptions
}

func NewRedisStore(client *redis.Client, opts CookieOptions) *RedisStore {
	return &RedisStore{client: client, prefix: "session:", opts: opts.normalize()}
}

func (s *RedisStore) Options() CookieOptions { return s.opts }

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Load(ctx context.Context, r *http.Request) (domain.Identity, error) {
	sid, ok := s.opts.read(r)
	if !ok {
		return domain.Identity{}, ErrNoSession
	}
	val, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, ErrNoSession
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("session: redis get: %w", err)
	}
	var id domain.Identity
	if err := json.Unmarshal(val, &id); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: corrupt session: %v", ErrNoSession, err)
	}
	return id, nil
}

// Save overwrites the current session in place when the request has one,
// otherwise it opens a new session id.
func (s *RedisStore) Save(ctx context.Context, r *http.Request, id domain.Identity) (*http.Cookie, error) {
	if id.Subject == "" {
		return nil, errors.New("session: identity without subject")
	}
	sid, ok := "", false
	if r != nil {
		sid, ok = s.opts.read(r)
	}
	if !ok {
		var err error
		if sid, err = security.NewID(); err != nil {
			return nil, fmt.Errorf("session: new id: %w", err)
		}
	}
	data, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sid), data, s.opts.TTL).Err(); err != nil {
		return nil, fmt.Errorf("session: redis set: %w", err)
	}
	return s.opts.cookie(sid), nil
}

func (s *RedisStore) Delete(ctx context.Context, r *http.Request) error {
	sid, ok := s.opts.read(r)
	if !ok {
		return nil
	}
	return s.client.Del(ctx, s.key(sid)).Err()
}
