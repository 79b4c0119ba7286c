package http_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/profile-service/internal/domain"
	api "github.com/tazhibayda/profile-service/internal/http"
	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/profile"
	"github.com/tazhibayda/profile-service/internal/queue"
	"github.com/tazhibayda/profile-service/internal/repo"
	"github.com/tazhibayda/profile-service/internal/session"
	"github.com/tazhibayda/profile-service/internal/upstream/upstreamtest"
)

type testEnv struct {
	T        *testing.T
	Router   *gin.Engine
	Handler  *api.Handler
	Mgmt     *upstreamtest.Mock
	Metadata *repo.MemoryMetadataStore
	Sessions *identity.SessionAdapter
	Events   *queue.Recorder
}

type envOption func(h *api.Handler)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	// init zap logger for tests (dev mode)
	if _, err := log.Init(false); err != nil {
		t.Fatalf("log init: %v", err)
	}

	store, err := session.NewCookieStore("test-secret", nil, session.CookieOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	mgmt := &upstreamtest.Mock{}
	md := repo.NewMemoryMetadataStore()
	events := &queue.Recorder{}

	sessions := identity.NewSessionAdapter(store, mgmt, nil)
	pipeline := profile.NewPipeline(sessions, mgmt, md, events, "profile.events")

	h := api.NewHandler(pipeline, sessions, nil, nil, 1000)
	for _, o := range opts {
		o(h)
	}

	gin.SetMode(gin.TestMode)
	r := api.NewRouter(h)

	return &testEnv{T: t, Router: r, Handler: h, Mgmt: mgmt, Metadata: md, Sessions: sessions, Events: events}
}

func (e *testEnv) login(id domain.Identity) *http.Cookie {
	e.T.Helper()
	c, err := e.Sessions.Establish(context.Background(), nil, id)
	require.NoError(e.T, err)
	return c
}

func (e *testEnv) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	e.Router.ServeHTTP(w, req)
	return w
}

// cookieFrom returns the named cookie set by a response, or nil.
func cookieFrom(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
