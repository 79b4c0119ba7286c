package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/session"
	"github.com/tazhibayda/profile-service/internal/upstream"
)

var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrSessionMissing      = errors.New("no session to refresh")
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
)

// SessionAdapter reads the session identity and refreshes it from the
// management API.
type SessionAdapter struct {
	sessions  session.Store
	mgmt      upstream.ManagementClient
	federated []string
}

func NewSessionAdapter(sessions session.Store, mgmt upstream.ManagementClient, federated []string) *SessionAdapter {
	if len(federated) == 0 {
		federated = DefaultFederatedProviders
	}
	return &SessionAdapter{sessions: sessions, mgmt: mgmt, federated: federated}
}

func (a *SessionAdapter) CookieName() string { return a.sessions.Options().Name }

// GetCurrentSession returns ErrUnauthenticated when there is no valid session.
// Other errors mean the session backend itself failed.
func (a *SessionAdapter) GetCurrentSession(r *http.Request) (domain.Identity, error) {
	id, err := a.sessions.Load(r.Context(), r)
	if errors.Is(err, session.ErrNoSession) {
		return domain.Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return domain.Identity{}, err
	}
	if id.Connection.Provider == "" {
		// сессии, выданные до появления connection-тега
		id.Connection = Classify(id.Subject, a.federated)
	}
	return id, nil
}

// Establish classifies id and writes a fresh session for it.
func (a *SessionAdapter) Establish(ctx context.Context, r *http.Request, id domain.Identity) (*http.Cookie, error) {
	id.Connection = Classify(id.Subject, a.federated)
	return a.sessions.Save(ctx, r, id)
}

// RefreshFromUpstream pulls the canonical identity of the session's subject,
// lays it over the session (non-empty upstream values win) and rewrites the
// session. The returned cookie must be attached to the response by the caller.
func (a *SessionAdapter) RefreshFromUpstream(ctx context.Context, r *http.Request) (domain.Identity, *http.Cookie, error) {
	cur, err := a.sessions.Load(ctx, r)
	if errors.Is(err, session.ErrNoSession) {
		return domain.Identity{}, nil, ErrSessionMissing
	}
	if err != nil {
		return domain.Identity{}, nil, err
	}

	u, err := a.mgmt.GetUser(ctx, cur.Subject)
	if err != nil {
		log.Ctx(ctx, log.Subject(cur.Subject)).Warn("management get user failed", zap.Error(err))
		return domain.Identity{}, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	merged := a.merge(cur, u)
	cookie, err := a.sessions.Save(ctx, r, merged)
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("rewrite session: %w", err)
	}
	return merged, cookie, nil
}

// End drops the server-side session when the store keeps one and returns the
// cookie that clears it in the browser. Signing out of the provider itself is
// not done here.
func (a *SessionAdapter) End(ctx context.Context, r *http.Request) (*http.Cookie, error) {
	if d, ok := a.sessions.(session.Deleter); ok {
		if err := d.Delete(ctx, r); err != nil {
			return nil, fmt.Errorf("end session: %w", err)
		}
	}
	return a.sessions.Options().Clear(), nil
}

func (a *SessionAdapter) merge(cur domain.Identity, u *upstream.User) domain.Identity {
	out := cur
	if u.Name != "" {
		out.Name = u.Name
	}
	if u.Email != "" {
		out.Email = u.Email
	}
	if u.Picture != "" {
		out.Picture = u.Picture
	}
	out.Connection = Classify(cur.Subject, a.federated)
	if len(u.Identities) > 0 && u.Identities[0].IsSocial {
		out.Connection.Federated = true
		if u.Identities[0].Provider != "" {
			out.Connection.Provider = u.Identities[0].Provider
		}
	}
	return out
}
