package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/store"
	"storefront/store/memory"
)

type fakeProvider struct {
	session    *models.AuthSession
	signInErr  error
	signOutErr error
	refreshErr error
	signOuts   int
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, fullName string) (*models.AuthSession, error) {
	return f.session, f.signInErr
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.session, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, session *models.AuthSession) error {
	f.signOuts++
	return f.signOutErr
}

func (f *fakeProvider) GetSession(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.session, nil
}

type failingSessions struct {
	store.SessionRepository
}

func (failingSessions) FindActive(ctx context.Context, userID string) (*models.ShoppingSession, error) {
	return nil, store.ErrUnavailable
}

func testSession() *models.AuthSession {
	return &models.AuthSession{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         models.User{ID: "user-1", Email: "ada@example.com"},
	}
}

func nullLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func TestHolderSignInFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		message string
	}{
		{"unreachable", ErrUnreachable, ErrUnreachable, "Unable to connect to authentication service. Please check your internet connection and try again."},
		{"invalid credentials", ErrInvalidCredentials, ErrInvalidCredentials, "Invalid email or password"},
		{"provider message passed through", errors.New("Email not confirmed"), nil, "Email not confirmed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHolder(&fakeProvider{signInErr: tt.err}, memory.New().Backend().Sessions, nullLogger())

			err := h.SignIn(context.Background(), "ada@example.com", "x")
			require.Error(t, err)
			assert.Equal(t, tt.message, Message(err))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				var pe *ProviderError
				assert.ErrorAs(t, err, &pe)
			}
			assert.False(t, h.Identity().Authenticated())
		})
	}
}

func TestHolderSignInStoresIdentity(t *testing.T) {
	h := NewHolder(&fakeProvider{session: testSession()}, memory.New().Backend().Sessions, nullLogger())

	var notified []Identity
	h.Subscribe(func(id Identity) { notified = append(notified, id) })

	require.NoError(t, h.SignIn(context.Background(), "ada@example.com", "x"))
	assert.Equal(t, "user-1", h.UserID())
	require.Len(t, notified, 1)
	assert.True(t, notified[0].Authenticated())
}

func TestHolderSignOutClosesShoppingSession(t *testing.T) {
	ctx := context.Background()
	backend := memory.New().Backend()
	require.NoError(t, backend.Sessions.Create(ctx, &models.ShoppingSession{UserID: "user-1"}))

	h := NewHolder(&fakeProvider{session: testSession()}, backend.Sessions, nullLogger())
	h.Restore(testSession())

	require.NoError(t, h.SignOut(ctx))
	assert.Empty(t, h.UserID())

	_, err := backend.Sessions.FindActive(ctx, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHolderSignOutAlwaysClearsIdentity(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{signOutErr: ErrUnreachable}
	h := NewHolder(provider, failingSessions{}, nullLogger())
	h.Restore(testSession())

	err := h.SignOut(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, MsgSignOutUnreachable, Message(err))
	assert.Equal(t, 1, provider.signOuts)
	assert.False(t, h.Identity().Authenticated())
	assert.Nil(t, h.Identity().Session)
}

func TestHolderRefreshSession(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
		authed  bool
	}{
		{name: "refreshed", authed: true},
		{name: "unreachable", err: ErrUnreachable},
		{name: "dead refresh token", err: ErrInvalidRefreshToken},
		{name: "other failure", err: errors.New("boom"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{session: testSession(), refreshErr: tt.err}
			h := NewHolder(provider, memory.New().Backend().Sessions, nullLogger())
			h.Restore(testSession())

			err := h.RefreshSession(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.authed, h.Identity().Authenticated())
		})
	}
}

func TestHolderRefreshWithoutSession(t *testing.T) {
	h := NewHolder(&fakeProvider{session: testSession()}, memory.New().Backend().Sessions, nullLogger())
	require.NoError(t, h.RefreshSession(context.Background()))
	assert.False(t, h.Identity().Authenticated())
}
