package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/profile-service/internal/helper"
)

// User is the management API view of an identity.
type User struct {
	UserID     string         `json:"user_id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Picture    string         `json:"picture"`
	Identities []UserIdentity `json:"identities,omitempty"`
}

type UserIdentity struct {
	Provider   string `json:"provider"`
	Connection string `json:"connection"`
	IsSocial   bool   `json:"isSocial"`
}

// UserUpdate is a partial update. Nil fields are not sent.
type UserUpdate struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Password   *string `json:"password,omitempty"`
	Connection string  `json:"connection,omitempty"`
}

// ManagementClient is the subset of the identity provider's management API we use.
type ManagementClient interface {
	GetUser(ctx context.Context, subject string) (*User, error)
	UpdateUser(ctx context.Context, subject string, u UserUpdate) error
}

// APIError is a non-2xx answer of the management API.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("management: %s %d", e.Op, e.Status)
	}
	return fmt.Sprintf("management: %s %d %s", e.Op, e.Status, e.Message)
}

var ErrNotConfigured = errors.New("management api not configured")

type HTTPClient struct {
	base string
	hc   *http.Client
}

// New returns a client for baseURL (e.g. https://tenant.auth0.com). hc must
// already authenticate requests, see oauth.NewManagementHTTPClient.
func New(baseURL string, hc *http.Client) *HTTPClient {
	return &HTTPClient{base: strings.TrimSuffix(baseURL, "/"), hc: hc}
}

func userPath(subject string) string {
	return "/api/v2/users/" + url.PathEscape(subject)
}

func (c *HTTPClient) GetUser(ctx context.Context, subject string) (*User, error) {
	var u User
	if err := c.doInvoke(ctx, "mgmt.users.get", http.MethodGet, userPath(subject), subject, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) UpdateUser(ctx context.Context, subject string, u UserUpdate) error {
	return c.doInvoke(ctx, "mgmt.users.update", http.MethodPatch, userPath(subject), subject, u, nil)
}

func (c *HTTPClient) doInvoke(ctx context.Context, op, method, path, subject string, param, result interface{}) (err error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, op,
		tracer.ResourceName(method+" /api/v2/users/{id}"),
		tracer.Tag("subject_hash", helper.Hash8(subject)),
	)
	defer func() { sp.Finish(tracer.WithError(err)) }()

	var body io.Reader
	if param != nil {
		b, err := json.Marshal(param)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("management: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if err := parseError(op, resp); err != nil {
		return err
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func parseError(op string, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	e := &APIError{Op: op, Status: resp.StatusCode}
	var body struct {
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		e.Code = body.ErrorCode
		if e.Code == "" {
			e.Code = body.Error
		}
		e.Message = body.Message
	} else {
		e.Message = resp.Status
	}
	return e
}

// Disabled is used when no management credentials are configured: every
// call fails, which the callers treat as an upstream outage.
type Disabled struct{}

func (Disabled) GetUser(context.Context, string) (*User, error) { return nil, ErrNotConfigured }
func (Disabled) UpdateUser(context.Context, string, UserUpdate) error {
	return ErrNotConfigured
}
