// Package reconcile builds the client-side "current user": the session
// identity with local overrides on top, joined with the settings document.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tazhibayda/profile-service/internal/domain"
	plog "github.com/tazhibayda/profile-service/internal/log"
)

var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrMetadataReadFailed = errors.New("metadata read failed")
)

// SessionSource returns the signed-in identity or ErrUnauthenticated.
type SessionSource interface {
	CurrentIdentity(ctx context.Context) (domain.Identity, error)
}

// SnapshotSource is a SessionSource that also returns the settings document
// in the same round trip. ErrMetadataReadFailed with a valid identity means
// only the document could not be read.
type SnapshotSource interface {
	CurrentSnapshot(ctx context.Context) (domain.Identity, *domain.Metadata, error)
}

// MetadataSource returns the settings document of subject, nil when none exists.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, subject string) (*domain.Metadata, error)
}

// MergedView is what the UI renders. Metadata is nil until the first fetch
// resolves or when there is no document yet; use Settings for display.
type MergedView struct {
	Authenticated    bool
	User             domain.Identity
	Metadata         *domain.Metadata
	MetadataResolved bool
}

// Settings returns the metadata or the defaults a new account would get.
func (v MergedView) Settings() domain.Metadata {
	if v.Metadata != nil {
		return *v.Metadata
	}
	md := domain.DefaultMetadata(domain.Sanitize(v.User.Subject), domain.Timestamp{})
	return md
}

type Context struct {
	sessions SessionSource
	metadata MetadataSource
	cache    *OverrideCache
	lg       *zap.Logger
	group    singleflight.Group
	wg       sync.WaitGroup

	mu        sync.RWMutex
	gen       uint64
	identity  *domain.Identity
	overrides domain.IdentityOverrides
	md        *domain.Metadata
	resolved  bool
	inflight  int
	pending   domain.MetadataPatch // local metadata edits made while a fetch is in flight
	err       error
}

func NewContext(sessions SessionSource, metadata MetadataSource, cache *OverrideCache, lg *zap.Logger) *Context {
	if lg == nil {
		lg = plog.L()
	}
	return &Context{sessions: sessions, metadata: metadata, cache: cache, lg: lg}
}

// Initialize loads the session identity and applies overrides before it
// returns. Metadata is fetched in the background; see Wait. A SnapshotSource
// that already returned the document saves that fetch.
func (c *Context) Initialize(ctx context.Context) error {
	id, seed, seeded, err := c.current(ctx)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.md = nil
	c.resolved = false
	c.pending = domain.MetadataPatch{}
	if err != nil {
		c.identity = nil
		c.overrides = domain.IdentityOverrides{}
		if errors.Is(err, ErrUnauthenticated) {
			c.err = nil
		} else {
			c.err = fmt.Errorf("load session: %w", err)
		}
		c.mu.Unlock()
		return err
	}
	c.identity = &id
	c.overrides = c.cache.Load(id.Subject)
	c.err = nil
	if seeded {
		if seed != nil {
			md := copyMetadata(*seed)
			c.md = &md
		}
		c.resolved = true
		c.mu.Unlock()
		return nil
	}
	c.inflight++
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.fetch(ctx, gen, id.Subject)
	}()
	return nil
}

func (c *Context) current(ctx context.Context) (domain.Identity, *domain.Metadata, bool, error) {
	snap, ok := c.sessions.(SnapshotSource)
	if !ok {
		id, err := c.sessions.CurrentIdentity(ctx)
		return id, nil, false, err
	}
	id, md, err := snap.CurrentSnapshot(ctx)
	if errors.Is(err, ErrMetadataReadFailed) {
		// документ не прочитался: identity есть, metadata догрузим отдельно
		return id, nil, false, nil
	}
	return id, md, err == nil, err
}

// Refresh re-fetches metadata and re-applies overrides. Concurrent calls
// share one fetch.
func (c *Context) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	gen, sub := c.gen, c.identity.Subject
	c.inflight++
	c.mu.Unlock()

	return c.fetch(ctx, gen, sub)
}

// fetch expects inflight to be already incremented by the caller.
// The shared call is detached from any one caller's context; each caller
// stops waiting when its own ctx is done.
func (c *Context) fetch(ctx context.Context, gen uint64, sub string) error {
	ch := c.group.DoChan(sub, func() (interface{}, error) {
		return c.metadata.FetchMetadata(context.WithoutCancel(ctx), sub)
	})
	var (
		v   interface{}
		err error
	)
	select {
	case r := <-ch:
		v, err = r.Val, r.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	defer func() {
		if c.inflight == 0 {
			c.pending = domain.MetadataPatch{}
		}
	}()

	if gen != c.gen {
		return nil // another subject signed in meanwhile
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err // caller gave up; not a store failure
	}
	if err != nil {
		c.err = fmt.Errorf("%w: %v", ErrMetadataReadFailed, err)
		c.lg.Warn("metadata fetch failed", plog.Subject(sub), zap.Error(err))
		return c.err
	}

	var md *domain.Metadata
	if got, _ := v.(*domain.Metadata); got != nil {
		cp := copyMetadata(*got)
		md = &cp
	}
	if !c.pending.Empty() {
		if md == nil {
			d := domain.DefaultMetadata(domain.Sanitize(sub), domain.Timestamp{})
			md = &d
		}
		c.pending.ApplyTo(md)
	}
	c.md = md
	c.resolved = true
	c.overrides = c.cache.Load(sub)
	c.err = nil
	return nil
}

// ApplyLocalUpdate is called after the server accepted an update. Identity
// fields go to memory and to the override cache; metadata fields go to
// memory only since the server already stored them.
func (c *Context) ApplyLocalUpdate(identityFields domain.IdentityOverrides, metadataFields domain.MetadataPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return ErrUnauthenticated
	}
	sub := c.identity.Subject

	if !metadataFields.Empty() {
		if c.md == nil {
			d := domain.DefaultMetadata(domain.Sanitize(sub), domain.Timestamp{})
			c.md = &d
		}
		metadataFields.ApplyTo(c.md)
		if c.inflight > 0 {
			c.pending = mergePatch(c.pending, metadataFields)
		}
	}

	if identityFields.Empty() {
		return nil
	}
	c.overrides = c.overrides.Merge(identityFields)
	if err := c.cache.Merge(sub, identityFields); err != nil {
		// in-memory view is already updated, only a reload would lose it
		c.lg.Warn("override cache write failed", plog.Subject(sub), zap.Error(err))
		return err
	}
	return nil
}

func (c *Context) View() MergedView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return MergedView{}
	}
	v := MergedView{
		Authenticated:    true,
		User:             c.overrides.ApplyTo(*c.identity),
		MetadataResolved: c.resolved,
	}
	if c.md != nil {
		md := copyMetadata(*c.md)
		v.Metadata = &md
	}
	return v
}

func (c *Context) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// Err is the last adapter failure, cleared by the next successful load.
func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Wait blocks until background fetches started by Initialize finish.
func (c *Context) Wait() { c.wg.Wait() }

func copyMetadata(md domain.Metadata) domain.Metadata {
	if md.Extra != nil {
		extra := make(map[string]interface{}, len(md.Extra))
		for k, v := range md.Extra {
			extra[k] = v
		}
		md.Extra = extra
	}
	return md
}

func mergePatch(a, b domain.MetadataPatch) domain.MetadataPatch {
	if b.Specialty != nil {
		a.Specialty = b.Specialty
	}
	if b.EmailNotifications != nil {
		a.EmailNotifications = b.EmailNotifications
	}
	if b.SMSNotifications != nil {
		a.SMSNotifications = b.SMSNotifications
	}
	if b.AppointmentReminders != nil {
		a.AppointmentReminders = b.AppointmentReminders
	}
	if b.PatientUpdates != nil {
		a.PatientUpdates = b.PatientUpdates
	}
	if b.ReminderTime != nil {
		a.ReminderTime = b.ReminderTime
	}
	return a
}
