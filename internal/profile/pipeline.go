package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/helper"
	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/metrics"
	"github.com/tazhibayda/profile-service/internal/queue"
	"github.com/tazhibayda/profile-service/internal/repo"
	"github.com/tazhibayda/profile-service/internal/upstream"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMetadataWriteFailed = errors.New("failed to update user data in database")
	ErrMetadataReadFailed  = errors.New("failed to read user data from database")
)

// Sessions is the part of the session adapter the pipeline needs.
type Sessions interface {
	GetCurrentSession(r *http.Request) (domain.Identity, error)
}

type Pipeline struct {
	sessions Sessions
	mgmt     upstream.ManagementClient
	metadata repo.MetadataStore
	events   queue.Publisher
	exchange string
}

func NewPipeline(sessions Sessions, mgmt upstream.ManagementClient, metadata repo.MetadataStore, events queue.Publisher, exchange string) *Pipeline {
	if events == nil {
		events = queue.NewNoop()
	}
	return &Pipeline{sessions: sessions, mgmt: mgmt, metadata: metadata, events: events, exchange: exchange}
}

// Result is the composite outcome of one update.
type Result struct {
	// AuthUpdateSuccess is true only when the name/email write went through.
	AuthUpdateSuccess bool
	// PasswordChanged means the new password is live upstream and the user
	// has to sign in again.
	PasswordChanged bool
	Federated       bool
	// Dropped lists identity fields ignored because the account is federated.
	Dropped  []string
	User     domain.Identity
	Metadata *domain.Metadata
}

func (r *Result) Message() string {
	idp := "Failed/Skipped"
	if r.AuthUpdateSuccess {
		idp = "Success"
	}
	return fmt.Sprintf("Identity update: %s, Metadata update: Success", idp)
}

// Update authenticates the request, writes identity fields upstream and the
// metadata document. Identity failures are logged and reported in the result;
// a metadata failure fails the whole update with ErrMetadataWriteFailed.
// The writes are detached from the request context so a client that goes
// away does not cancel them.
func (p *Pipeline) Update(r *http.Request, req domain.UpdateRequest, reqID string) (*Result, error) {
	id, err := p.sessions.GetCurrentSession(r)
	if errors.Is(err, identity.ErrUnauthenticated) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	ctx := context.WithoutCancel(r.Context())
	lg := log.Ctx(ctx, log.Subject(id.Subject), zap.String("request_id", reqID))
	res := &Result{Federated: id.Connection.Federated, User: id}

	req.Normalize()
	if res.Federated {
		// у социальных аккаунтов email и пароль живут у провайдера,
		// поэтому их не валидируем, а просто выкидываем
		res.Dropped = req.DropCredentials()
		if len(res.Dropped) > 0 {
			lg.Info("ignoring credential fields for federated account",
				zap.String("provider", id.Connection.Provider), zap.Strings("dropped", res.Dropped))
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p.writeIdentity(ctx, lg, id, req, res)

	md, err := p.metadata.Upsert(ctx, id.Subject, req.MetadataPatch())
	metrics.MetadataWrites.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		lg.Error("metadata upsert failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrMetadataWriteFailed, err)
	}
	res.Metadata = md

	p.publish(ctx, lg, id, req, res, reqID)
	return res, nil
}

func (p *Pipeline) writeIdentity(ctx context.Context, lg *zap.Logger, id domain.Identity, req domain.UpdateRequest, res *Result) {
	// для federated email и password уже выброшены в Update
	upd := upstream.UserUpdate{Name: req.Name, Email: req.Email}

	if upd.Name != nil || upd.Email != nil {
		err := p.mgmt.UpdateUser(ctx, id.Subject, upd)
		metrics.IdentityWrites.WithLabelValues("profile", metrics.Outcome(err)).Inc()
		if err != nil {
			lg.Warn("identity profile update failed", zap.Error(err))
		} else {
			res.AuthUpdateSuccess = true
			if upd.Name != nil {
				res.User.Name = *upd.Name
			}
			if upd.Email != nil {
				res.User.Email = *upd.Email
				lg.Info("identity email changed", zap.String("email", helper.MaskEmail(*upd.Email)))
			}
		}
	}

	if req.Password != nil {
		err := p.mgmt.UpdateUser(ctx, id.Subject, upstream.UserUpdate{Password: req.Password})
		metrics.IdentityWrites.WithLabelValues("password", metrics.Outcome(err)).Inc()
		if err != nil {
			lg.Warn("identity password update failed", zap.Error(err))
		} else {
			res.PasswordChanged = true
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, lg *zap.Logger, id domain.Identity, req domain.UpdateRequest, res *Result, reqID string) {
	ev := queue.ProfileUpdated{
		SubjectHash:   helper.Hash8(id.Subject),
		SanitizedID:   domain.Sanitize(id.Subject),
		FieldsChanged: req.ChangedFields(),
		IdentityOK:    res.AuthUpdateSuccess,
		Federated:     res.Federated,
		At:            time.Now().UTC(),
	}
	go func() {
		if err := p.events.Publish(ctx, p.exchange, queue.KeyProfileUpdated, ev, reqID); err != nil {
			lg.Warn("publish profile.updated failed", zap.Error(err))
		}
	}()
}
