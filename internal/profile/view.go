package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/log"
)

// Current returns the session identity and its metadata document. Metadata is
// nil when the subject has none yet. A metadata read failure is returned as
// ErrMetadataReadFailed next to a valid identity, so callers can fall back to
// defaults instead of failing.
func (p *Pipeline) Current(r *http.Request) (domain.Identity, *domain.Metadata, error) {
	id, err := p.sessions.GetCurrentSession(r)
	if errors.Is(err, identity.ErrUnauthenticated) {
		return domain.Identity{}, nil, ErrUnauthorized
	}
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("load session: %w", err)
	}
	md, err := p.Metadata(r.Context(), id.Subject)
	return id, md, err
}

func (p *Pipeline) Metadata(ctx context.Context, subject string) (*domain.Metadata, error) {
	md, err := p.metadata.Get(ctx, subject)
	if err != nil {
		log.Ctx(ctx, log.Subject(subject)).Warn("metadata read failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrMetadataReadFailed, err)
	}
	return md, nil
}
