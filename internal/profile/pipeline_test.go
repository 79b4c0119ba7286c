package profile_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/profile"
	"github.com/tazhibayda/profile-service/internal/queue"
	"github.com/tazhibayda/profile-service/internal/repo"
	"github.com/tazhibayda/profile-service/internal/upstream"
	"github.com/tazhibayda/profile-service/internal/upstream/upstreamtest"
)

type fixedSession struct {
	id  domain.Identity
	err error
}

func (f fixedSession) GetCurrentSession(*http.Request) (domain.Identity, error) { return f.id, f.err }

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

var (
	owned = domain.Identity{
		Subject: "auth0|abc", Name: "Dana", Email: "dana@example.com",
		Connection: identity.Classify("auth0|abc", identity.DefaultFederatedProviders),
	}
	social = domain.Identity{
		Subject: "google-oauth2|42", Name: "Sam", Email: "sam@gmail.com",
		Connection: identity.Classify("google-oauth2|42", identity.DefaultFederatedProviders),
	}
)

type fixture struct {
	mgmt   *upstreamtest.Mock
	store  *repo.MemoryMetadataStore
	events *queue.Recorder
	p      *profile.Pipeline
}

func newFixture(id domain.Identity) *fixture {
	f := &fixture{
		mgmt:   &upstreamtest.Mock{},
		store:  repo.NewMemoryMetadataStore(),
		events: &queue.Recorder{},
	}
	f.p = profile.NewPipeline(fixedSession{id: id}, f.mgmt, f.store, f.events, "profile.events")
	return f
}

func req() *http.Request {
	return httptest.NewRequest(http.MethodPatch, "/api/user", nil)
}

func TestUpdate_Unauthorized(t *testing.T) {
	p := profile.NewPipeline(fixedSession{err: identity.ErrUnauthenticated}, &upstreamtest.Mock{}, repo.NewMemoryMetadataStore(), nil, "")
	_, err := p.Update(req(), domain.UpdateRequest{Name: strp("x")}, "")
	assert.ErrorIs(t, err, profile.ErrUnauthorized)
}

func TestUpdate_InvalidRequestWritesNothing(t *testing.T) {
	f := newFixture(owned)
	rt := domain.ReminderMinutes(7)
	_, err := f.p.Update(req(), domain.UpdateRequest{Name: strp("x"), ReminderTime: &rt}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidUpdate)
	f.mgmt.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)

	md, err := f.store.Get(context.Background(), owned.Subject)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestUpdate_FederatedSendsNameOnly(t *testing.T) {
	f := newFixture(social)
	f.mgmt.On("UpdateUser", mock.Anything, social.Subject, mock.Anything).Return(nil)

	res, err := f.p.Update(req(), domain.UpdateRequest{
		Name:     strp("New Name"),
		Email:    strp("x@y.com"),
		Password: strp("p"),
	}, "req-1")
	require.NoError(t, err)

	updates := f.mgmt.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "New Name", *updates[0].Name)
	assert.Nil(t, updates[0].Email)
	assert.Nil(t, updates[0].Password)

	assert.True(t, res.Federated)
	assert.True(t, res.AuthUpdateSuccess)
	assert.False(t, res.PasswordChanged)
	assert.ElementsMatch(t, []string{"email", "password"}, res.Dropped)
	assert.Equal(t, "New Name", res.User.Name)
	assert.Equal(t, "sam@gmail.com", res.User.Email)
}

// credentials of a federated account are dropped before validation, so a
// value the provider would never accept does not block the name write
func TestUpdate_FederatedIgnoresInvalidCredentials(t *testing.T) {
	f := newFixture(social)
	f.mgmt.On("UpdateUser", mock.Anything, social.Subject, mock.Anything).Return(nil)

	res, err := f.p.Update(req(), domain.UpdateRequest{
		Name:     strp("New Name"),
		Email:    strp("not an email"),
		Password: strp("p"),
	}, "")
	require.NoError(t, err)

	updates := f.mgmt.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "New Name", *updates[0].Name)
	assert.Nil(t, updates[0].Email)
	assert.ElementsMatch(t, []string{"email", "password"}, res.Dropped)
	assert.True(t, res.AuthUpdateSuccess)
}

func TestUpdate_OwnedShortPasswordRejected(t *testing.T) {
	f := newFixture(owned)
	_, err := f.p.Update(req(), domain.UpdateRequest{Name: strp("Dana"), Password: strp("p")}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidUpdate)
	f.mgmt.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_FederatedCredentialsOnlyMakesNoIdentityWrite(t *testing.T) {
	f := newFixture(social)
	res, err := f.p.Update(req(), domain.UpdateRequest{Email: strp("x@y.com"), Password: strp("p4ssw0rd!")}, "")
	require.NoError(t, err)

	f.mgmt.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, res.AuthUpdateSuccess)
	assert.Equal(t, "Identity update: Failed/Skipped, Metadata update: Success", res.Message())
	require.NotNil(t, res.Metadata)
}

func TestUpdate_OwnedSplitsProfileAndPassword(t *testing.T) {
	f := newFixture(owned)
	f.mgmt.On("UpdateUser", mock.Anything, owned.Subject, mock.Anything).Return(nil)

	res, err := f.p.Update(req(), domain.UpdateRequest{
		Name:     strp("Dana S."),
		Email:    strp("dana.s@example.com"),
		Password: strp("n3w-secret"),
	}, "")
	require.NoError(t, err)

	updates := f.mgmt.Updates()
	require.Len(t, updates, 2)
	assert.Equal(t, "Dana S.", *updates[0].Name)
	assert.Equal(t, "dana.s@example.com", *updates[0].Email)
	assert.Nil(t, updates[0].Password)
	assert.Nil(t, updates[1].Name)
	assert.Equal(t, "n3w-secret", *updates[1].Password)

	assert.True(t, res.AuthUpdateSuccess)
	assert.True(t, res.PasswordChanged)
	assert.Equal(t, "Identity update: Success, Metadata update: Success", res.Message())
}

func TestUpdate_IdentityFailureIsNotFatal(t *testing.T) {
	f := newFixture(owned)
	f.mgmt.On("UpdateUser", mock.Anything, owned.Subject, mock.Anything).Return(errors.New("502 bad gateway"))

	res, err := f.p.Update(req(), domain.UpdateRequest{
		Name:             strp("Dana S."),
		Specialty:        strp("Neuro"),
		SMSNotifications: boolp(true),
	}, "")
	require.NoError(t, err)
	assert.False(t, res.AuthUpdateSuccess)
	assert.Equal(t, "Dana", res.User.Name)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Neuro", res.Metadata.Specialty)
	assert.True(t, res.Metadata.SMSNotifications)
}

func TestUpdate_MetadataFailureIsFatalAndLeavesDocument(t *testing.T) {
	f := newFixture(owned)
	f.mgmt.On("UpdateUser", mock.Anything, owned.Subject, mock.Anything).Return(nil)

	_, err := f.p.Update(req(), domain.UpdateRequest{Specialty: strp("Ortho")}, "")
	require.NoError(t, err)
	before, err := f.store.Get(context.Background(), owned.Subject)
	require.NoError(t, err)

	f.store.SetDown(true)
	_, err = f.p.Update(req(), domain.UpdateRequest{Name: strp("Other"), Specialty: strp("Neuro")}, "")
	assert.ErrorIs(t, err, profile.ErrMetadataWriteFailed)
	f.store.SetDown(false)

	after, err := f.store.Get(context.Background(), owned.Subject)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_AlwaysWritesMetadata(t *testing.T) {
	f := newFixture(owned)
	f.mgmt.On("UpdateUser", mock.Anything, owned.Subject, mock.Anything).Return(nil)

	res, err := f.p.Update(req(), domain.UpdateRequest{Name: strp("Only Name")}, "")
	require.NoError(t, err)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "auth0_abc", res.Metadata.ID)
	assert.Equal(t, res.Metadata.CreatedAt, res.Metadata.UpdatedAt)
}

func TestUpdate_PublishesEvent(t *testing.T) {
	f := newFixture(owned)
	f.mgmt.On("UpdateUser", mock.Anything, owned.Subject, mock.Anything).Return(nil)

	_, err := f.p.Update(req(), domain.UpdateRequest{Name: strp("N"), PatientUpdates: boolp(false)}, "req-9")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.events.All()) == 1 }, time.Second, 10*time.Millisecond)
	ev := f.events.All()[0]
	assert.Equal(t, queue.KeyProfileUpdated, ev.Key)
	assert.Equal(t, "req-9", ev.ReqID)
	pu := ev.Event.(queue.ProfileUpdated)
	assert.Equal(t, "auth0_abc", pu.SanitizedID)
	assert.Equal(t, []string{"name", "patientUpdates"}, pu.FieldsChanged)
	assert.True(t, pu.IdentityOK)
}

func TestUpdate_DetachedFromClientCancellation(t *testing.T) {
	f := newFixture(owned)
	f.mgmt.On("UpdateUser", mock.Anything, owned.Subject, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			assert.NoError(t, args.Get(0).(context.Context).Err())
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := req().WithContext(ctx)
	_, err := f.p.Update(r, domain.UpdateRequest{Name: strp("N")}, "")
	require.NoError(t, err)
}

func TestCurrent(t *testing.T) {
	f := newFixture(owned)
	id, md, err := f.p.Current(req())
	require.NoError(t, err)
	assert.Equal(t, owned, id)
	assert.Nil(t, md)

	f.store.SetDown(true)
	id, md, err = f.p.Current(req())
	assert.ErrorIs(t, err, profile.ErrMetadataReadFailed)
	assert.Equal(t, owned.Subject, id.Subject)
	assert.Nil(t, md)
}

var _ upstream.ManagementClient = (*upstreamtest.Mock)(nil)
