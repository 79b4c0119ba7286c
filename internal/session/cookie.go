package session

import (
	"net/http"
	"time"
)

const DefaultCookieName = "appSession"

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	return o
}

// cookie builds the session cookie. It is returned to the caller rather than
// written, the handler decides which response carries it.
func (o CookieOptions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		Expires:  time.Now().Add(o.TTL),
		MaxAge:   int(o.TTL / time.Second),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// Clear returns a cookie that removes the session on the client.
func (o CookieOptions) Clear() *http.Cookie {
	o = o.normalize()
	return &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

func (o CookieOptions) read(r *http.Request) (string, bool) {
	c, err := r.Cookie(o.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
