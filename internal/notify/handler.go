// Package notify turns profile.updated events into account notices.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/profile-service/internal/domain"
	plog "github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/mail"
	"github.com/tazhibayda/profile-service/internal/queue"
)

type MetadataReader interface {
	Get(ctx context.Context, subject string) (*domain.Metadata, error)
}

type Mailer interface {
	Send(ctx context.Context, n mail.Notice) error
}

type Handler struct {
	metadata MetadataReader
	mailer   Mailer
	lg       *zap.Logger
}

func NewHandler(metadata MetadataReader, mailer Mailer, lg *zap.Logger) *Handler {
	if lg == nil {
		lg = plog.L()
	}
	return &Handler{metadata: metadata, mailer: mailer, lg: lg}
}

// Handle is a queue.Consumer callback. Bodies that do not parse are dropped;
// store and mail failures are returned so the message is redelivered.
func (h *Handler) Handle(ctx context.Context, body []byte) (err error) {
	span, ctx := tracer.StartSpanFromContext(ctx, "notify.profile_updated")
	defer func() { span.Finish(tracer.WithError(err)) }()

	var ev queue.ProfileUpdated
	if err := json.Unmarshal(body, &ev); err != nil {
		h.lg.Warn("drop malformed event", zap.Error(err), zap.Int("len", len(body)))
		return fmt.Errorf("%w: %v", queue.ErrDrop, err)
	}
	if ev.SanitizedID == "" {
		h.lg.Warn("drop event without account id", zap.String("subject_hash", ev.SubjectHash))
		return queue.ErrDrop
	}
	lg := plog.WithDD(ctx, h.lg, zap.String("subject_hash", ev.SubjectHash))

	md, err := h.metadata.Get(ctx, ev.SanitizedID)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	if md == nil || !md.EmailNotifications {
		lg.Debug("email notifications off, skip")
		return nil
	}

	n := mail.ProfileChanged(ev.SanitizedID, ev.FieldsChanged, ev.IdentityOK)
	if err := h.mailer.Send(ctx, n); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	lg.Info("profile notice sent", zap.Strings("fields", ev.FieldsChanged))
	return nil
}
