package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

type signingKey struct {
	kid  string
	priv *rsa.PrivateKey
}

// KeyManager signs session cookies with the active key and verifies with any
// key it has seen: active, next, and keys retired by Promote.
type KeyManager struct {
	mu      sync.RWMutex
	active  signingKey
	next    *signingKey
	retired []signingKey
}

func parsePrivateKeyPEM(b []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("invalid PEM")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if rk, ok := k.(*rsa.PrivateKey); ok {
			return rk, nil
		}
		return nil, errors.New("not RSA key")
	}
	return nil, errors.New("unsupported key type: " + block.Type)
}

func loadKey(kid, path string) (signingKey, error) {
	if kid == "" {
		return signingKey{}, fmt.Errorf("key %s: empty kid", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return signingKey{}, err
	}
	priv, err := parsePrivateKeyPEM(b)
	if err != nil {
		return signingKey{}, fmt.Errorf("key %s: %w", kid, err)
	}
	return signingKey{kid: kid, priv: priv}, nil
}

// NewKeyManager loads the active key and, when nextKid is set, the key that
// Promote will switch to.
func NewKeyManager(activeKid, activePath, nextKid, nextPath string) (*KeyManager, error) {
	act, err := loadKey(activeKid, activePath)
	if err != nil {
		return nil, err
	}
	km := &KeyManager{active: act}
	if nextKid != "" && nextPath != "" {
		nxt, err := loadKey(nextKid, nextPath)
		if err != nil {
			return nil, err
		}
		km.next = &nxt
	}
	return km, nil
}

func (km *KeyManager) ActiveKid() string {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.active.kid
}

func (km *KeyManager) signer() signingKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.active
}

func (km *KeyManager) all() []signingKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	out := []signingKey{km.active}
	if km.next != nil {
		out = append(out, *km.next)
	}
	return append(out, km.retired...)
}

// Keyfunc resolves the verification key from the token's kid header.
func (km *KeyManager) Keyfunc(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	for _, k := range km.all() {
		if k.kid == kid {
			return &k.priv.PublicKey, nil
		}
	}
	return nil, errors.New("unknown kid: " + kid)
}

// Promote makes the next key active. The old active key keeps verifying
// cookies it signed until the process restarts without it.
func (km *KeyManager) Promote() error {
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.next == nil {
		return errors.New("no next key to promote")
	}
	km.retired = append(km.retired, km.active)
	km.active, km.next = *km.next, nil
	return nil
}

// JWK is the RFC 7517 subset needed for RSA verification keys.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS lists every key a cookie may currently be signed with, active first.
func (km *KeyManager) JWKS() JWKSet {
	keys := km.all()
	set := JWKSet{Keys: make([]JWK, 0, len(keys))}
	for _, k := range keys {
		pub := k.priv.PublicKey
		set.Keys = append(set.Keys, JWK{
			Kty: "RSA",
			Kid: k.kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return set
}
