package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/helper"
)

// MetadataStore reads and writes the per-subject settings document.
// Both methods take the raw subject id and sanitize it themselves.
type MetadataStore interface {
	Get(ctx context.Context, subject string) (*domain.Metadata, error)
	Upsert(ctx context.Context, subject string, patch domain.MetadataPatch) (*domain.Metadata, error)
}

type MongoMetadataStore struct {
	col *mongo.Collection
}

func NewMongoMetadataStore(s *Store, collection string) *MongoMetadataStore {
	return &MongoMetadataStore{col: s.DB.Collection(collection)}
}

// EnsureIndexes creates the userId index used by the fallback lookup.
func (m *MongoMetadataStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("user_id"),
	})
	return err
}

func (m *MongoMetadataStore) Get(ctx context.Context, subject string) (*domain.Metadata, error) {
	id := domain.Sanitize(subject)
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.metadata.get",
		tracer.Tag("subject_hash", helper.Hash8(subject)),
	)
	defer sp.Finish()

	md, err := m.findOne(ctx, bson.M{"_id": id})
	if err == nil && md == nil {
		// документ мог быть записан под другим ключом: ищем по userId
		sp.SetTag("fallback", true)
		md, err = m.findOne(ctx, bson.M{"userId": id})
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, wrap("get metadata", err)
	}
	return md, nil
}

func (m *MongoMetadataStore) findOne(ctx context.Context, filter bson.M) (*domain.Metadata, error) {
	var md domain.Metadata
	err := m.col.FindOne(ctx, filter).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// Upsert patches the subject's document, creating it with defaults when it
// does not exist. Creation goes through a single upsert on _id, so two first
// writes for the same subject cannot produce two documents.
func (m *MongoMetadataStore) Upsert(ctx context.Context, subject string, patch domain.MetadataPatch) (*domain.Metadata, error) {
	id := domain.Sanitize(subject)
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.metadata.upsert",
		tracer.Tag("subject_hash", helper.Hash8(subject)),
	)
	defer sp.Finish()

	update := upsertDoc(id, patch, domain.Now())
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	md, err := m.findOneAndUpdate(ctx, bson.M{"_id": id}, update, after)
	if err == nil && md == nil {
		sp.SetTag("fallback", true)
		md, err = m.findOneAndUpdate(ctx, bson.M{"userId": id}, update, after)
	}
	if err == nil && md == nil {
		md, err = m.findOneAndUpdate(ctx, bson.M{"_id": id}, update, options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetUpsert(true))
		if IsDup(err) {
			// параллельный upsert уже создал документ: теперь это обычный update
			md, err = m.findOneAndUpdate(ctx, bson.M{"_id": id}, update, after)
		}
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, wrap("upsert metadata", err)
	}
	if md == nil {
		return nil, fmt.Errorf("upsert metadata: no document returned for %s", helper.Hash8(subject))
	}
	return md, nil
}

func (m *MongoMetadataStore) findOneAndUpdate(ctx context.Context, filter, update bson.M, opts *options.FindOneAndUpdateOptions) (*domain.Metadata, error) {
	var md domain.Metadata
	err := m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// upsertDoc builds one update used for both the patch and the insert path.
// Defaults go to $setOnInsert only for fields the patch does not set, and
// createdAt and updatedAt share the same instant on insert.
func upsertDoc(id string, patch domain.MetadataPatch, now domain.Timestamp) bson.M {
	set := bson.M{
		"updatedAt":     now,
		"schemaVersion": domain.MetadataSchemaVersion,
	}
	for k, v := range patch.Fields() {
		set[k] = v
	}

	def := domain.DefaultMetadata(id, now)
	onInsert := bson.M{
		"userId":    id,
		"createdAt": now,
	}
	defaults := map[string]interface{}{
		"specialty":            def.Specialty,
		"emailNotifications":   def.EmailNotifications,
		"smsNotifications":     def.SMSNotifications,
		"appointmentReminders": def.AppointmentReminders,
		"patientUpdates":       def.PatientUpdates,
		"reminderTime":         def.ReminderTime,
	}
	for k, v := range defaults {
		if _, patched := set[k]; !patched {
			onInsert[k] = v
		}
	}
	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

func wrap(op string, err error) error {
	if unavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
