package queue

import "time"

const KeyProfileUpdated = "profile.updated"

// ProfileUpdated is published after a successful profile update.
// No contact data goes on the wire.
type ProfileUpdated struct {
	SubjectHash   string    `json:"subject_hash"`
	SanitizedID   string    `json:"sanitized_id"`
	FieldsChanged []string  `json:"fields_changed"`
	IdentityOK    bool      `json:"identity_ok"`
	Federated     bool      `json:"federated"`
	At            time.Time `json:"at"`
}
