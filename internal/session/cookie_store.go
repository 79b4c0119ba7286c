package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/security"
)

// CookieStore keeps the whole identity in a signed JWT inside the cookie.
// With a KeyManager it signs RS256 with the active kid, otherwise HS256.
type CookieStore struct {
	opts   CookieOptions
	secret string
	keys   *security.KeyManager
}

func NewCookieStore(secret string, keys *security.KeyManager, opts CookieOptions) (*CookieStore, error) {
	if secret == "" && keys == nil {
		return nil, errors.New("session: secret or key manager required")
	}
	return &CookieStore{opts: opts.normalize(), secret: secret, keys: keys}, nil
}

func (s *CookieStore) Options() CookieOptions { return s.opts }

func (s *CookieStore) Load(_ context.Context, r *http.Request) (domain.Identity, error) {
	raw, ok := s.opts.read(r)
	if !ok {
		return domain.Identity{}, ErrNoSession
	}
	var (
		c   *security.SessionClaims
		err error
	)
	if s.keys != nil {
		c, err = security.ParseRS256(s.keys, raw)
	} else {
		c, err = security.ParseHS256(s.secret, raw)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return domain.Identity{
		Subject: c.Subject,
		Name:    c.Name,
		Email:   c.Email,
		Picture: c.Picture,
		Connection: domain.Connection{
			Provider:  c.Provider,
			Federated: c.Federated,
		},
	}, nil
}

func (s *CookieStore) Save(_ context.Context, _ *http.Request, id domain.Identity) (*http.Cookie, error) {
	if id.Subject == "" {
		return nil, errors.New("session: identity without subject")
	}
	c := security.SessionClaims{
		Name:      id.Name,
		Email:     id.Email,
		Picture:   id.Picture,
		Provider:  id.Connection.Provider,
		Federated: id.Connection.Federated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: id.Subject,
		},
	}
	var (
		tok string
		err error
	)
	if s.keys != nil {
		tok, err = security.SignRS256(s.keys, c, s.opts.TTL)
	} else {
		tok, err = security.SignHS256(s.secret, c, s.opts.TTL)
	}
	if err != nil {
		return nil, fmt.Errorf("session: sign: %w", err)
	}
	return s.opts.cookie(tok), nil
}
