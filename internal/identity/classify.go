package identity

import "github.com/tazhibayda/profile-service/internal/domain"

// DefaultFederatedProviders are login providers whose credentials live with a third party.
var DefaultFederatedProviders = []string{
	"google-oauth2", "github", "facebook", "apple", "twitter", "linkedin", "windowslive",
}

// Classify derives the connection tag from a subject id. It runs once when a
// session is written; afterwards callers read Identity.Connection.
func Classify(subject string, federated []string) domain.Connection {
	p := domain.Provider(subject)
	c := domain.Connection{Provider: p}
	for _, f := range federated {
		if p != "" && p == f {
			c.Federated = true
			break
		}
	}
	return c
}
