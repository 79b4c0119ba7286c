package domain

import "strings"

// Connection is the structured login-provider tag carried on every session.
type Connection struct {
	Provider  string `json:"provider" bson:"provider"`   // "auth0", "google-oauth2", ...
	Federated bool   `json:"federated" bson:"federated"` // credentials are managed by a third party
}

// Identity is the identity-provider view of a user.
type Identity struct {
	Subject    string     `json:"sub"`
	Name       string     `json:"name,omitempty"`
	Email      string     `json:"email,omitempty"`
	Picture    string     `json:"picture,omitempty"`
	Connection Connection `json:"connection"`
}

// IdentityOverrides holds locally cached identity fields. A nil field is not overridden.
type IdentityOverrides struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Picture *string `json:"picture,omitempty"`
}

func (o IdentityOverrides) Empty() bool {
	return o.Name == nil && o.Email == nil && o.Picture == nil
}

// Merge returns o with every non-nil field of n written over it.
func (o IdentityOverrides) Merge(n IdentityOverrides) IdentityOverrides {
	out := o
	if n.Name != nil {
		v := *n.Name
		out.Name = &v
	}
	if n.Email != nil {
		v := *n.Email
		out.Email = &v
	}
	if n.Picture != nil {
		v := *n.Picture
		out.Picture = &v
	}
	return out
}

// ApplyTo returns id with the overridden fields replaced. Subject and connection are never touched.
func (o IdentityOverrides) ApplyTo(id Identity) Identity {
	if o.Name != nil {
		id.Name = *o.Name
	}
	if o.Email != nil {
		id.Email = *o.Email
	}
	if o.Picture != nil {
		id.Picture = *o.Picture
	}
	return id
}

// Provider returns the provider prefix of a subject id ("google-oauth2|123" -> "google-oauth2").
func Provider(subject string) string {
	if i := strings.IndexByte(subject, '|'); i > 0 {
		return subject[:i]
	}
	return ""
}
