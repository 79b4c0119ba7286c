package domain

import "strings"

// MetadataSchemaVersion is written on every upsert.
const MetadataSchemaVersion = 1

// Metadata is the per-clinician settings document. Field names follow the
// documents already stored in the users collection.
type Metadata struct {
	ID                   string          `bson:"_id" json:"id"`
	UserID               string          `bson:"userId" json:"userId"`
	Specialty            string          `bson:"specialty" json:"specialty"`
	EmailNotifications   bool            `bson:"emailNotifications" json:"emailNotifications"`
	SMSNotifications     bool            `bson:"smsNotifications" json:"smsNotifications"`
	AppointmentReminders bool            `bson:"appointmentReminders" json:"appointmentReminders"`
	PatientUpdates       bool            `bson:"patientUpdates" json:"patientUpdates"`
	ReminderTime         ReminderMinutes `bson:"reminderTime" json:"reminderTime"`
	SchemaVersion        int             `bson:"schemaVersion" json:"schemaVersion"`
	CreatedAt            Timestamp       `bson:"createdAt" json:"createdAt"`
	UpdatedAt            Timestamp       `bson:"updatedAt" json:"updatedAt"`

	// Extra keeps keys this schema does not know about so they survive a rewrite.
	Extra map[string]interface{} `bson:",inline" json:"extra,omitempty"`
}

// DefaultMetadata is the record created on the first write for a subject.
func DefaultMetadata(sanitizedID string, now Timestamp) Metadata {
	return Metadata{
		ID:                   sanitizedID,
		UserID:               sanitizedID,
		EmailNotifications:   true,
		AppointmentReminders: true,
		PatientUpdates:       true,
		ReminderTime:         DefaultReminderMinutes,
		SchemaVersion:        MetadataSchemaVersion,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// MetadataPatch is a partial metadata write. Nil fields are left alone.
type MetadataPatch struct {
	Specialty            *string
	EmailNotifications   *bool
	SMSNotifications     *bool
	AppointmentReminders *bool
	PatientUpdates       *bool
	ReminderTime         *ReminderMinutes
}

// Fields maps the set fields to their stored key.
func (p MetadataPatch) Fields() map[string]interface{} {
	out := map[string]interface{}{}
	if p.Specialty != nil {
		out["specialty"] = *p.Specialty
	}
	if p.EmailNotifications != nil {
		out["emailNotifications"] = *p.EmailNotifications
	}
	if p.SMSNotifications != nil {
		out["smsNotifications"] = *p.SMSNotifications
	}
	if p.AppointmentReminders != nil {
		out["appointmentReminders"] = *p.AppointmentReminders
	}
	if p.PatientUpdates != nil {
		out["patientUpdates"] = *p.PatientUpdates
	}
	if p.ReminderTime != nil {
		out["reminderTime"] = *p.ReminderTime
	}
	return out
}

func (p MetadataPatch) Empty() bool { return len(p.Fields()) == 0 }

// ApplyTo writes the set fields onto m.
func (p MetadataPatch) ApplyTo(m *Metadata) {
	if p.Specialty != nil {
		m.Specialty = *p.Specialty
	}
	if p.EmailNotifications != nil {
		m.EmailNotifications = *p.EmailNotifications
	}
	if p.SMSNotifications != nil {
		m.SMSNotifications = *p.SMSNotifications
	}
	if p.AppointmentReminders != nil {
		m.AppointmentReminders = *p.AppointmentReminders
	}
	if p.PatientUpdates != nil {
		m.PatientUpdates = *p.PatientUpdates
	}
	if p.ReminderTime != nil {
		m.ReminderTime = *p.ReminderTime
	}
}

// Sanitize replaces characters that are not allowed in a document key.
func Sanitize(subject string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '|', '.', '#', '$', '[', ']':
			return '_'
		}
		return r
	}, subject)
}
