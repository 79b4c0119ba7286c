package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ManagementConfig describes the machine-to-machine application used to call
// the identity provider's management API.
type ManagementConfig struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Audience     string
	TokenURL     string // defaults to https://<Domain>/oauth/token
	Timeout      time.Duration
}

func (c ManagementConfig) Enabled() bool {
	return c.Domain != "" && c.ClientID != "" && c.ClientSecret != ""
}

func (c ManagementConfig) BaseURL() string {
	d := strings.TrimSuffix(c.Domain, "/")
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}

func (c ManagementConfig) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return c.BaseURL() + "/oauth/token"
}

// NewManagementHTTPClient returns a client that fetches and caches a client
// credentials token and attaches it to every request. Tokens are refreshed
// by the oauth2 transport when they expire.
func NewManagementHTTPClient(ctx context.Context, c ManagementConfig) *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cc := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.tokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if c.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {c.Audience}}
	}
	// тот же таймаут и для запроса токена
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	hc := cc.Client(ctx)
	hc.Timeout = timeout
	return hc
}
