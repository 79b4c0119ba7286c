package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Timestamp is a UTC instant stored as a BSON datetime. Older documents carry
// RFC 3339 strings, which are accepted on read and rewritten as datetimes.
type Timestamp struct {
	time.Time
}

// Now returns the current instant truncated to the store's millisecond precision.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.Time.UTC())
}

func (t *Timestamp) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: typ, Value: data}
	switch typ {
	case bsontype.DateTime:
		t.Time = rv.Time().UTC()
	case bsontype.String:
		parsed, err := time.Parse(time.RFC3339Nano, rv.StringValue())
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = parsed.UTC()
	case bsontype.Null, bsontype.Undefined:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("timestamp: unsupported bson type %s", typ)
	}
	return nil
}
