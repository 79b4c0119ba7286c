// Package upstreamtest provides a testify mock of the management API.
package upstreamtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tazhibayda/profile-service/internal/upstream"
)

type Mock struct {
	mock.Mock
}

func (m *Mock) GetUser(ctx context.Context, subject string) (*upstream.User, error) {
	args := m.Called(ctx, subject)
	u, _ := args.Get(0).(*upstream.User)
	return u, args.Error(1)
}

func (m *Mock) UpdateUser(ctx context.Context, subject string, u upstream.UserUpdate) error {
	return m.Called(ctx, subject, u).Error(0)
}

// Updates returns the UserUpdate arguments of every UpdateUser call, in order.
func (m *Mock) Updates() []upstream.UserUpdate {
	var out []upstream.UserUpdate
	for _, c := range m.Calls {
		if c.Method == "UpdateUser" {
			out = append(out, c.Arguments.Get(2).(upstream.UserUpdate))
		}
	}
	return out
}
