package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/tazhibayda/profile-service/internal/domain"
)

// MemoryMetadataStore keeps documents in a map. Used for local runs and tests.
type MemoryMetadataStore struct {
	mu   sync.Mutex
	docs map[string]domain.Metadata
	down bool
	now  func() domain.Timestamp
}

func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{docs: map[string]domain.Metadata{}, now: domain.Now}
}

// SetDown makes every call fail with ErrStoreUnavailable until reset.
func (m *MemoryMetadataStore) SetDown(down bool) {
	m.mu.Lock()
	m.down = down
	m.mu.Unlock()
}

// SetClock replaces the time source.
func (m *MemoryMetadataStore) SetClock(now func() domain.Timestamp) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Put stores a document under an explicit key, e.g. a legacy record whose
// key differs from its userId.
func (m *MemoryMetadataStore) Put(key string, md domain.Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md.ID = key
	m.docs[key] = clone(md)
}

func (m *MemoryMetadataStore) Get(_ context.Context, subject string) (*domain.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, fmt.Errorf("get metadata: %w", ErrStoreUnavailable)
	}
	key, ok := m.resolve(domain.Sanitize(subject))
	if !ok {
		return nil, nil
	}
	md := clone(m.docs[key])
	return &md, nil
}

func (m *MemoryMetadataStore) Upsert(_ context.Context, subject string, patch domain.MetadataPatch) (*domain.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, fmt.Errorf("upsert metadata: %w", ErrStoreUnavailable)
	}
	id := domain.Sanitize(subject)
	now := m.now()

	var md domain.Metadata
	key, ok := m.resolve(id)
	if ok {
		md = clone(m.docs[key])
		md.UpdatedAt = now
	} else {
		key = id
		md = domain.DefaultMetadata(id, now)
	}
	patch.ApplyTo(&md)
	md.SchemaVersion = domain.MetadataSchemaVersion
	m.docs[key] = md

	out := clone(md)
	return &out, nil
}

// resolve prefers the direct key over the userId fallback.
func (m *MemoryMetadataStore) resolve(id string) (string, bool) {
	if _, ok := m.docs[id]; ok {
		return id, true
	}
	for k, d := range m.docs {
		if d.UserID == id {
			return k, true
		}
	}
	return "", false
}

func clone(md domain.Metadata) domain.Metadata {
	if md.Extra != nil {
		extra := make(map[string]interface{}, len(md.Extra))
		for k, v := range md.Extra {
			extra[k] = v
		}
		md.Extra = extra
	}
	return md
}
