package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	plog "github.com/tazhibayda/profile-service/internal/log"
)

// Notice is a profile-change message addressed to an account, not a mailbox.
// The delivery side resolves the account to an address.
type Notice struct {
	Account string
	Subject string
	Body    string
}

// ProfileChanged builds the notice sent after settings or identity fields change.
func ProfileChanged(account string, fields []string, identityOK bool) Notice {
	fs := append([]string(nil), fields...)
	sort.Strings(fs)

	var b strings.Builder
	fmt.Fprintf(&b, "Your dashboard profile was updated: %s.\n", strings.Join(fs, ", "))
	if !identityOK {
		b.WriteString("Some sign-in details could not be changed. Please try again or contact support.\n")
	}
	b.WriteString("If this was not you, change your password right away.\n")

	return Notice{Account: account, Subject: "Profile updated", Body: b.String()}
}

type Sender struct {
	lg *zap.Logger
}

func NewSender(lg *zap.Logger) *Sender {
	if lg == nil {
		lg = plog.L()
	}
	return &Sender{lg: lg}
}

// Send пока только пишет в лог.
func (s *Sender) Send(ctx context.Context, n Notice) error {
	if n.Account == "" {
		return fmt.Errorf("mail: empty account")
	}
	plog.WithDD(ctx, s.lg).Info("[MAIL]",
		zap.String("account", n.Account),
		zap.String("subj", n.Subject),
		zap.Int("body_len", len(n.Body)),
	)
	return nil
}
