// Package apiclient talks to the profile endpoints the way the dashboard does:
// one cookie-carrying session against the API origin.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	httptrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/net/http"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/reconcile"
	"github.com/tazhibayda/profile-service/internal/session"
)

// StatusError is a non-2xx answer. Message is the "error" field of the body when present.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

type Client struct {
	base       *url.URL
	hc         *http.Client
	cookieName string
}

type Option func(*Client)

// WithCookieName sets the session cookie name, session.DefaultCookieName otherwise.
func WithCookieName(name string) Option {
	return func(c *Client) { c.cookieName = name }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q: need scheme and host", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:       u,
		hc:         httptrace.WrapClient(&http.Client{Jar: jar, Timeout: 15 * time.Second}),
		cookieName: session.DefaultCookieName,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Session returns the current session cookie value, "" when signed out.
func (c *Client) Session() string {
	for _, ck := range c.hc.Jar.Cookies(c.base) {
		if ck.Name == c.cookieName {
			return ck.Value
		}
	}
	return ""
}

// SetSession restores a session saved by an earlier run.
func (c *Client) SetSession(value string) {
	c.hc.Jar.SetCookies(c.base, []*http.Cookie{{Name: c.cookieName, Value: value, Path: "/"}})
}

func (c *Client) ClearSession() {
	c.hc.Jar.SetCookies(c.base, []*http.Cookie{{Name: c.cookieName, Value: "", Path: "/", MaxAge: -1}})
}

type meResp struct {
	User          domain.Identity  `json:"user"`
	Metadata      *domain.Metadata `json:"metadata"`
	MetadataError bool             `json:"metadataError"`
}

// Me returns the session identity and settings in one call.
func (c *Client) Me(ctx context.Context) (domain.Identity, *domain.Metadata, error) {
	var out meResp
	if err := c.do(ctx, http.MethodGet, "/api/user/me", nil, &out); err != nil {
		return domain.Identity{}, nil, err
	}
	if out.MetadataError {
		return out.User, nil, reconcile.ErrMetadataReadFailed
	}
	return out.User, out.Metadata, nil
}

// CurrentIdentity implements reconcile.SessionSource.
func (c *Client) CurrentIdentity(ctx context.Context) (domain.Identity, error) {
	id, _, err := c.Me(ctx)
	if errors.Is(err, reconcile.ErrMetadataReadFailed) {
		return id, nil
	}
	return id, err
}

// CurrentSnapshot implements reconcile.SnapshotSource with the one /me call,
// so Initialize does not need a second request for the settings.
func (c *Client) CurrentSnapshot(ctx context.Context) (domain.Identity, *domain.Metadata, error) {
	return c.Me(ctx)
}

// FetchMetadata implements reconcile.MetadataSource. The server resolves the
// subject from the session; subject is only checked against it.
func (c *Client) FetchMetadata(ctx context.Context, subject string) (*domain.Metadata, error) {
	var out struct {
		Metadata *domain.Metadata `json:"metadata"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/metadata", nil, &out); err != nil {
		return nil, err
	}
	if out.Metadata != nil && out.Metadata.UserID != "" && out.Metadata.UserID != domain.Sanitize(subject) {
		return nil, fmt.Errorf("metadata belongs to another account")
	}
	return out.Metadata, nil
}

type UpdateResult struct {
	Success            bool             `json:"success"`
	Message            string           `json:"message"`
	User               domain.Identity  `json:"user"`
	Metadata           *domain.Metadata `json:"metadata"`
	IsSocialConnection bool             `json:"isSocialConnection"`
	AuthUpdateSuccess  bool             `json:"authUpdateSuccess"`
	RequiresReauth     bool             `json:"requiresReauth"`
	IgnoredFields      []string         `json:"ignoredFields"`
}

func (c *Client) UpdateProfile(ctx context.Context, req domain.UpdateRequest) (*UpdateResult, error) {
	var out UpdateResult
	if err := c.do(ctx, http.MethodPatch, "/api/user", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession asks the server to pull the identity from the provider; the
// rewritten cookie lands in the jar.
func (c *Client) RefreshSession(ctx context.Context) (domain.Identity, error) {
	var out struct {
		Success bool            `json:"success"`
		User    domain.Identity `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/refresh", nil, &out); err != nil {
		return domain.Identity{}, err
	}
	return out.User, nil
}

// Logout ends the session on the server and drops the cookie locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.ClearSession()
	return err
}

// DevSession opens a session on servers started with DEV_LOGIN=true.
func (c *Client) DevSession(ctx context.Context, id domain.Identity) error {
	body := map[string]string{"sub": id.Subject, "name": id.Name, "email": id.Email, "picture": id.Picture}
	return c.do(ctx, http.MethodPost, "/api/auth/dev-session", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return reconcile.ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(b, &e)
		return &StatusError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
