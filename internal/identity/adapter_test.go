package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/session"
	"github.com/tazhibayda/profile-service/internal/upstream"
	"github.com/tazhibayda/profile-service/internal/upstream/upstreamtest"
)

func newAdapter(t *testing.T) (*identity.SessionAdapter, *session.CookieStore, *upstreamtest.Mock) {
	t.Helper()
	store, err := session.NewCookieStore("s3cret", nil, session.CookieOptions{})
	require.NoError(t, err)
	m := &upstreamtest.Mock{}
	return identity.NewSessionAdapter(store, m, nil), store, m
}

func withSession(t *testing.T, a *identity.SessionAdapter, id domain.Identity) *http.Request {
	t.Helper()
	c, err := a.Establish(context.Background(), nil, id)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/api/auth/refresh", nil)
	r.AddCookie(c)
	return r
}

func TestClassify(t *testing.T) {
	cases := []struct {
		sub       string
		provider  string
		federated bool
	}{
		{"auth0|abc", "auth0", false},
		{"google-oauth2|1", "google-oauth2", true},
		{"github|2", "github", true},
		{"apple|3", "apple", true},
		{"email|4", "email", false},
		{"no-prefix", "", false},
	}
	for _, tc := range cases {
		c := identity.Classify(tc.sub, identity.DefaultFederatedProviders)
		assert.Equal(t, tc.provider, c.Provider, tc.sub)
		assert.Equal(t, tc.federated, c.Federated, tc.sub)
	}
}

func TestGetCurrentSession(t *testing.T) {
	a, _, _ := newAdapter(t)

	_, err := a.GetCurrentSession(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	r := withSession(t, a, domain.Identity{Subject: "github|2", Name: "Octo"})
	id, err := a.GetCurrentSession(r)
	require.NoError(t, err)
	assert.Equal(t, "Octo", id.Name)
	assert.True(t, id.Connection.Federated)
}

func TestRefreshFromUpstream_UpstreamWinsWhenSet(t *testing.T) {
	a, store, m := newAdapter(t)
	r := withSession(t, a, domain.Identity{Subject: "auth0|abc", Name: "Old", Email: "old@example.com", Picture: "p.png"})

	m.On("GetUser", mock.Anything, "auth0|abc").Return(&upstream.User{Name: "New", Email: ""}, nil)

	id, cookie, err := a.RefreshFromUpstream(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, cookie)
	assert.Equal(t, "New", id.Name)
	assert.Equal(t, "old@example.com", id.Email)
	assert.Equal(t, "p.png", id.Picture)

	// the rewritten cookie carries the merged identity
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookie)
	saved, err := store.Load(context.Background(), r2)
	require.NoError(t, err)
	assert.Equal(t, id, saved)
	m.AssertExpectations(t)
}

func TestRefreshFromUpstream_Errors(t *testing.T) {
	a, _, m := newAdapter(t)

	_, _, err := a.RefreshFromUpstream(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, identity.ErrSessionMissing)

	r := withSession(t, a, domain.Identity{Subject: "auth0|abc", Name: "Old"})
	m.On("GetUser", mock.Anything, "auth0|abc").Return(nil, errors.New("connection refused"))
	_, cookie, err := a.RefreshFromUpstream(context.Background(), r)
	assert.ErrorIs(t, err, identity.ErrUpstreamUnavailable)
	assert.Nil(t, cookie)
}

func TestRefreshFromUpstream_SocialIdentityMarksFederated(t *testing.T) {
	a, _, m := newAdapter(t)
	r := withSession(t, a, domain.Identity{Subject: "oidc|corp-7", Name: "Sam"})
	m.On("GetUser", mock.Anything, "oidc|corp-7").Return(&upstream.User{
		Identities: []upstream.UserIdentity{{Provider: "oidc", IsSocial: true}},
	}, nil)

	id, _, err := a.RefreshFromUpstream(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, id.Connection.Federated)
	assert.Equal(t, "Sam", id.Name)
}

type deletingStore struct {
	session.Store
	deleted int
	err     error
}

func (d *deletingStore) Delete(context.Context, *http.Request) error {
	d.deleted++
	return d.err
}

func TestEnd(t *testing.T) {
	a, store, m := newAdapter(t)
	r := withSession(t, a, domain.Identity{Subject: "auth0|abc"})

	c, err := a.End(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, session.DefaultCookieName, c.Name)
	assert.Less(t, c.MaxAge, 0)

	ds := &deletingStore{Store: store}
	withDelete := identity.NewSessionAdapter(ds, m, nil)
	_, err = withDelete.End(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.deleted)

	ds.err = errors.New("redis down")
	_, err = withDelete.End(context.Background(), r)
	assert.Error(t, err)
}
