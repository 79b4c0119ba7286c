package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

var ErrInvalidUpdate = errors.New("invalid update")

const (
	maxNameLen     = 100
	minPasswordLen = 8
)

// UpdateRequest is the body of a profile update. Every key is optional.
type UpdateRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=100"`
	Email    *string `json:"email" binding:"omitempty"`
	Password *string `json:"password" binding:"omitempty"`

	Specialty            *string          `json:"specialty" binding:"omitempty,max=200"`
	EmailNotifications   *bool            `json:"emailNotifications"`
	SMSNotifications     *bool            `json:"smsNotifications"`
	AppointmentReminders *bool            `json:"appointmentReminders"`
	PatientUpdates       *bool            `json:"patientUpdates"`
	ReminderTime         *ReminderMinutes `json:"reminderTime"`
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// Normalize trims identity fields and drops the blank ones: an empty name or
// email means "not provided", never "clear it".
func (r *UpdateRequest) Normalize() {
	r.Name = blankToNil(r.Name)
	r.Email = blankToNil(r.Email)
	if r.Password != nil && *r.Password == "" {
		r.Password = nil
	}
	if r.Specialty != nil {
		v := strings.TrimSpace(*r.Specialty)
		r.Specialty = &v
	}
}

// Validate reports the first offending field wrapped in ErrInvalidUpdate.
func (r *UpdateRequest) Validate() error {
	if r.Name != nil && len([]rune(*r.Name)) > maxNameLen {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidUpdate, maxNameLen)
	}
	if r.Email != nil {
		addr, err := mail.ParseAddress(*r.Email)
		if err != nil || addr.Address != *r.Email {
			return fmt.Errorf("%w: email is not a valid address", ErrInvalidUpdate)
		}
	}
	if r.Password != nil && len(*r.Password) < minPasswordLen {
		return fmt.Errorf("%w: password shorter than %d characters", ErrInvalidUpdate, minPasswordLen)
	}
	if r.ReminderTime != nil && !r.ReminderTime.Valid() {
		return fmt.Errorf("%w: reminderTime must be one of 15, 30, 60, 120", ErrInvalidUpdate)
	}
	return nil
}

// DropCredentials clears email and password and returns the names of the
// fields it cleared. Federated accounts cannot change either.
func (r *UpdateRequest) DropCredentials() []string {
	var dropped []string
	if r.Email != nil {
		dropped = append(dropped, "email")
		r.Email = nil
	}
	if r.Password != nil {
		dropped = append(dropped, "password")
		r.Password = nil
	}
	return dropped
}

func (r UpdateRequest) HasIdentityChanges() bool {
	return r.Name != nil || r.Email != nil || r.Password != nil
}

func (r UpdateRequest) MetadataPatch() MetadataPatch {
	return MetadataPatch{
		Specialty:            r.Specialty,
		EmailNotifications:   r.EmailNotifications,
		SMSNotifications:     r.SMSNotifications,
		AppointmentReminders: r.AppointmentReminders,
		PatientUpdates:       r.PatientUpdates,
		ReminderTime:         r.ReminderTime,
	}
}

// ChangedFields lists the request keys that were set, sorted.
func (r UpdateRequest) ChangedFields() []string {
	var out []string
	if r.Name != nil {
		out = append(out, "name")
	}
	if r.Email != nil {
		out = append(out, "email")
	}
	if r.Password != nil {
		out = append(out, "password")
	}
	for k := range r.MetadataPatch().Fields() {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
