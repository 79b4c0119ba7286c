package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/profile-service/internal/domain"
	api "github.com/tazhibayda/profile-service/internal/http"
	"github.com/tazhibayda/profile-service/internal/session"
	"github.com/tazhibayda/profile-service/internal/upstream"
)

var (
	ownedUser  = domain.Identity{Subject: "auth0|abc", Name: "Dana", Email: "dana@example.com"}
	socialUser = domain.Identity{Subject: "github|77", Name: "Octo", Email: "octo@users.noreply.github.com"}
)

type updateBody struct {
	Success            bool            `json:"success"`
	Message            string          `json:"message"`
	User               domain.Identity `json:"user"`
	Metadata           domain.Metadata `json:"metadata"`
	IsSocialConnection bool            `json:"isSocialConnection"`
	AuthUpdateSuccess  bool            `json:"authUpdateSuccess"`
	RequiresReauth     bool            `json:"requiresReauth"`
	Error              string          `json:"error"`
}

func decode(t *testing.T, body []byte) updateBody {
	t.Helper()
	var out updateBody
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v; body=%s", err, body)
	}
	return out
}

func Test_Update_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("PATCH", "/api/user", `{"name":"X"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	assert.Equal(t, "Not authenticated", decode(t, w.Body.Bytes()).Error)
}

func Test_Update_NoSessionBeatsBadPayload(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("PATCH", "/api/user", `{"name":`)
	assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	assert.Equal(t, "Not authenticated", decode(t, w.Body.Bytes()).Error)
}

func Test_Update_BadPayload(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)

	for _, body := range []string{`{"name":`, `{"reminderTime":"soon"}`, `{"reminderTime":45}`, `{"email":"nope"}`} {
		w := env.do("PATCH", "/api/user", body, ck)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	env.Mgmt.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func Test_Update_OwnedIdentityFailureStill200(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)
	env.Mgmt.On("UpdateUser", mock.Anything, ownedUser.Subject, mock.Anything).
		Return(&upstream.APIError{Op: "mgmt.users.update", Status: 503})

	w := env.do("PATCH", "/api/user", `{"name":"Dana S.","specialty":"Neuro","reminderTime":"60","emailNotifications":false}`, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	b := decode(t, w.Body.Bytes())
	assert.True(t, b.Success)
	assert.False(t, b.AuthUpdateSuccess)
	assert.False(t, b.IsSocialConnection)
	assert.Equal(t, "Identity update: Failed/Skipped, Metadata update: Success", b.Message)
	assert.Equal(t, "Neuro", b.Metadata.Specialty)
	assert.Equal(t, domain.ReminderMinutes(60), b.Metadata.ReminderTime)
	assert.False(t, b.Metadata.EmailNotifications)
	assert.Equal(t, "Dana", b.User.Name)
}

func Test_Update_FederatedSkipsCredentials(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(socialUser)

	w := env.do("PATCH", "/api/user", `{"email":"x@y.com","password":"p4ssw0rd!"}`, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	b := decode(t, w.Body.Bytes())
	assert.True(t, b.IsSocialConnection)
	assert.False(t, b.RequiresReauth)
	env.Mgmt.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func Test_Update_FederatedShortPasswordStillWritesName(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(socialUser)
	env.Mgmt.On("UpdateUser", mock.Anything, socialUser.Subject, mock.Anything).Return(nil)

	w := env.do("PATCH", "/api/user", `{"name":"New Name","email":"x@y.com","password":"p"}`, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	b := decode(t, w.Body.Bytes())
	assert.True(t, b.AuthUpdateSuccess)
	assert.Equal(t, "New Name", b.User.Name)

	updates := env.Mgmt.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "New Name", *updates[0].Name)
	assert.Nil(t, updates[0].Email)
	assert.Nil(t, updates[0].Password)
}

func Test_Update_PasswordChangeRequiresReauth(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)
	env.Mgmt.On("UpdateUser", mock.Anything, ownedUser.Subject, mock.Anything).Return(nil)

	w := env.do("PATCH", "/api/user", `{"password":"n3w-secret!"}`, ck)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	b := decode(t, w.Body.Bytes())
	assert.True(t, b.RequiresReauth)
	assert.False(t, b.AuthUpdateSuccess)
}

func Test_Update_MetadataFailureIs500AndDocumentUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)
	env.Mgmt.On("UpdateUser", mock.Anything, ownedUser.Subject, mock.Anything).Return(nil)

	w := env.do("PATCH", "/api/user", `{"specialty":"Ortho"}`, ck)
	require.Equal(t, http.StatusOK, w.Code)

	env.Metadata.SetDown(true)
	w = env.do("PATCH", "/api/user", `{"name":"Dana S.","specialty":"Neuro"}`, ck)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	assert.JSONEq(t, `{"error":"Failed to update user data in database."}`, w.Body.String())
	env.Metadata.SetDown(false)

	w = env.do("GET", "/api/user/metadata", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct{ Metadata domain.Metadata }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Ortho", got.Metadata.Specialty)
}

func Test_Refresh_NoSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/api/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Not authenticated"}`, w.Body.String())
}

func Test_Refresh_RewritesCookie(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)
	env.Mgmt.On("GetUser", mock.Anything, ownedUser.Subject).
		Return(&upstream.User{UserID: ownedUser.Subject, Name: "Dana Upstream", Email: "dana@new.example.com"}, nil)

	w := env.do("GET", "/api/auth/refresh", "", ck)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	fresh := cookieFrom(w, session.DefaultCookieName)
	require.NotNil(t, fresh, "refresh must set the session cookie on its own response")
	assert.True(t, fresh.HttpOnly)

	var body struct {
		Success bool
		User    domain.Identity
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Dana Upstream", body.User.Name)

	w = env.do("GET", "/api/user/me", "", fresh)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User     domain.Identity
		Metadata *domain.Metadata
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "dana@new.example.com", me.User.Email)
	assert.Nil(t, me.Metadata)
}

func Test_Refresh_UpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)
	env.Mgmt.On("GetUser", mock.Anything, ownedUser.Subject).Return(nil, errors.New("dial tcp: timeout"))

	w := env.do("GET", "/api/auth/refresh", "", ck)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Failed to refresh user data"}`, w.Body.String())
	assert.Nil(t, cookieFrom(w, session.DefaultCookieName))
}

func Test_Me_MetadataReadFailureIsSoft(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)
	env.Metadata.SetDown(true)

	w := env.do("GET", "/api/user/me", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"metadataError":true`)

	w = env.do("GET", "/api/user/metadata", "", ck)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func Test_Metadata_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/api/user/metadata", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func Test_RateLimit(t *testing.T) {
	env := newTestEnv(t, func(h *api.Handler) { h.RateLimitPerMin = 2 })
	ck := env.login(ownedUser)

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do("PATCH", "/api/user", `{"specialty":"x"}`, ck).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func Test_RequestID_Echoed(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func Test_DevSession_OnlyWhenEnabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("POST", "/api/auth/dev-session", `{"sub":"auth0|dev"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env = newTestEnv(t, func(h *api.Handler) { h.DevLogin = true })
	w = env.do("POST", "/api/auth/dev-session", `{"sub":"google-oauth2|dev","name":"Dev"}`)
	require.Equal(t, http.StatusOK, w.Code)
	ck := cookieFrom(w, session.DefaultCookieName)
	require.NotNil(t, ck)

	w = env.do("GET", "/api/user/me", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"federated":true`)
}

func Test_Logout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login(ownedUser)

	w := env.do("POST", "/api/auth/logout", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := cookieFrom(w, session.DefaultCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.MaxAge < 0)
}
