package reconcile

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tazhibayda/profile-service/internal/domain"
	plog "github.com/tazhibayda/profile-service/internal/log"
)

// OverrideSlotName is the slot the dashboard has always used for overrides.
const OverrideSlotName = "healthhack_user_overrides"

// OverrideCache holds identity fields the user changed locally, for exactly
// one subject at a time. The stored value is {"sub": ..., "name": ..., ...}.
type OverrideCache struct {
	mu   sync.Mutex
	slot Slot
	lg   *zap.Logger
}

func NewOverrideCache(slot Slot, lg *zap.Logger) *OverrideCache {
	if lg == nil {
		lg = plog.L()
	}
	return &OverrideCache{slot: slot, lg: lg}
}

type storedOverrides struct {
	Sub string `json:"sub"`
	domain.IdentityOverrides
}

// read never fails: an unreadable or unparsable slot is an empty one.
func (c *OverrideCache) read() (storedOverrides, bool) {
	b, err := c.slot.Read()
	if err != nil {
		c.lg.Warn("override slot read failed", zap.Error(err))
		return storedOverrides{}, false
	}
	if len(b) == 0 {
		return storedOverrides{}, false
	}
	var s storedOverrides
	if err := json.Unmarshal(b, &s); err != nil {
		c.lg.Warn("override slot is not valid json, ignoring", zap.Error(err))
		return storedOverrides{}, false
	}
	return s, true
}

// Load returns the overrides stored for sub. Overrides of any other subject
// are a miss.
func (c *OverrideCache) Load(sub string) domain.IdentityOverrides {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.read()
	if !ok || sub == "" || s.Sub != sub {
		return domain.IdentityOverrides{}
	}
	return s.IdentityOverrides
}

// Merge writes fields over the overrides stored for sub. Overrides left by
// another subject are discarded rather than merged.
func (c *OverrideCache) Merge(sub string, fields domain.IdentityOverrides) error {
	if sub == "" {
		return fmt.Errorf("override merge: empty subject")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.read()
	if !ok || cur.Sub != sub {
		cur = storedOverrides{}
	}
	next := storedOverrides{Sub: sub, IdentityOverrides: cur.IdentityOverrides.Merge(fields)}

	b, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := c.slot.Write(b); err != nil {
		return fmt.Errorf("override merge: %w", err)
	}
	return nil
}

// Clear drops whatever is stored.
func (c *OverrideCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot.Delete()
}
