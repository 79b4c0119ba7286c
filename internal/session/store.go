package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/tazhibayda/profile-service/internal/domain"
)

// ErrNoSession means the request carries no usable session.
var ErrNoSession = errors.New("no session")

// Store loads and writes the session identity behind the session cookie.
// Save never writes to a response, it hands back the cookie to attach.
type Store interface {
	Load(ctx context.Context, r *http.Request) (domain.Identity, error)
	Save(ctx context.Context, r *http.Request, id domain.Identity) (*http.Cookie, error)
	Options() CookieOptions
}

// Deleter is implemented by stores that keep sessions server-side.
type Deleter interface {
	Delete(ctx context.Context, r *http.Request) error
}
