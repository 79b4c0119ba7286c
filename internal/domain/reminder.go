package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ReminderMinutes is the lead time of appointment reminders.
// Legacy clients send and store it as a string ("30"), so both forms decode.
type ReminderMinutes int

var AllowedReminderMinutes = []ReminderMinutes{15, 30, 60, 120}

const DefaultReminderMinutes ReminderMinutes = 30

func (m ReminderMinutes) Valid() bool {
	for _, v := range AllowedReminderMinutes {
		if m == v {
			return true
		}
	}
	return false
}

func parseMinutes(s string) (ReminderMinutes, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("reminderTime: %q is not a number of minutes", s)
	}
	return ReminderMinutes(n), nil
}

func (m *ReminderMinutes) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*m = ReminderMinutes(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("reminderTime: expected number or string")
	}
	v, err := parseMinutes(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m ReminderMinutes) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(int32(m))
}

func (m *ReminderMinutes) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: typ, Value: data}
	switch typ {
	case bsontype.Int32:
		*m = ReminderMinutes(rv.Int32())
	case bsontype.Int64:
		*m = ReminderMinutes(rv.Int64())
	case bsontype.Double:
		*m = ReminderMinutes(int(rv.Double()))
	case bsontype.String:
		v, err := parseMinutes(rv.StringValue())
		if err != nil {
			return err
		}
		*m = v
	case bsontype.Null, bsontype.Undefined:
		*m = 0
	default:
		return fmt.Errorf("reminderTime: unsupported bson type %s", typ)
	}
	return nil
}
