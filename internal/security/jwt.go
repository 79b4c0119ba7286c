package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is the identity carried inside a session cookie.
type SessionClaims struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Provider  string `json:"prv,omitempty"`
	Federated bool   `json:"fed,omitempty"`
	jwt.RegisteredClaims
}

func stamp(c *SessionClaims, ttl time.Duration) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
}

func SignHS256(secret string, c SessionClaims, ttl time.Duration) (string, error) {
	stamp(&c, ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

func SignRS256(km *KeyManager, c SessionClaims, ttl time.Duration) (string, error) {
	stamp(&c, ttl)
	k := km.signer()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	token.Header["kid"] = k.kid
	return token.SignedString(k.priv)
}

func ParseHS256(secret, token string) (*SessionClaims, error) {
	return parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, "HS256")
}

// ParseRS256 accepts tokens signed by any key the manager knows, so cookies
// survive a key rotation.
func ParseRS256(km *KeyManager, token string) (*SessionClaims, error) {
	return parse(token, km.Keyfunc, "RS256")
}

func parse(token string, kf jwt.Keyfunc, alg string) (*SessionClaims, error) {
	t, err := jwt.ParseWithClaims(token, &SessionClaims{}, kf, jwt.WithValidMethods([]string{alg}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*SessionClaims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}
