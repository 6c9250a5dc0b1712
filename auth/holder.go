package auth

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"storefront/models"
	"storefront/state"
	"storefront/store"
)

// Identity is the cached user/session pair. Both are nil when signed out.
type Identity struct {
	User    *models.User
	Session *models.AuthSession
}

func (i Identity) Authenticated() bool { return i.User != nil }

// Holder owns the identity of one client. Every operation performs a single
// provider round-trip and replaces the cached identity on success.
type Holder struct {
	provider Provider
	sessions store.SessionRepository
	logger   logrus.FieldLogger
	identity *state.Observable[Identity]
}

func NewHolder(provider Provider, sessions store.SessionRepository, logger logrus.FieldLogger) *Holder {
	return &Holder{
		provider: provider,
		sessions: sessions,
		logger:   logger.WithField("component", "auth"),
		identity: state.New(Identity{}),
	}
}

func (h *Holder) Identity() Identity { return h.identity.Get() }

func (h *Holder) Subscribe(fn func(Identity)) func() { return h.identity.Subscribe(fn) }

// UserID returns the signed-in user's id, or "" when signed out.
func (h *Holder) UserID() string {
	if u := h.identity.Get().User; u != nil {
		return u.ID
	}
	return ""
}

// Restore seeds the holder with a session obtained elsewhere, such as a
// verified bearer token.
func (h *Holder) Restore(session *models.AuthSession) {
	if session == nil {
		h.clear()
		return
	}
	user := session.User
	h.identity.Set(Identity{User: &user, Session: session})
}

func (h *Holder) SignUp(ctx context.Context, email, password, fullName string) error {
	session, err := h.provider.SignUp(ctx, email, password, fullName)
	if err != nil {
		err = classify(err)
		h.logger.WithError(err).Error("Error signing up")
		return err
	}
	h.Restore(session)
	return nil
}

func (h *Holder) SignIn(ctx context.Context, email, password string) error {
	session, err := h.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		err = classify(err)
		h.logger.WithError(err).Error("Error signing in")
		return err
	}
	h.Restore(session)
	return nil
}

// SignOut closes the user's active shopping session, then signs out with the
// provider. Local identity is cleared whatever the outcome.
func (h *Holder) SignOut(ctx context.Context) error {
	defer h.clear()

	current := h.identity.Get()
	if current.User != nil {
		h.closeShoppingSession(ctx, current.User.ID)
	}

	if err := h.provider.SignOut(ctx, current.Session); err != nil {
		err = classify(err)
		if errors.Is(err, ErrUnreachable) {
			err = signOutUnreachable{}
		}
		h.logger.WithError(err).Error("Error signing out")
		return err
	}
	return nil
}

func (h *Holder) closeShoppingSession(ctx context.Context, userID string) {
	session, err := h.sessions.FindActive(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err == nil {
		err = h.sessions.Close(ctx, session.ID)
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("Error cleaning up shopping session")
	}
}

// RefreshSession exchanges the cached refresh token for a new session. An
// unreachable provider or a dead refresh token signs the client out quietly;
// any other failure signs it out and is returned.
func (h *Holder) RefreshSession(ctx context.Context) error {
	current := h.identity.Get()
	if current.Session == nil || current.Session.RefreshToken == "" {
		h.clear()
		return nil
	}

	session, err := h.provider.GetSession(ctx, current.Session.RefreshToken)
	if err != nil {
		h.clear()
		err = classify(err)
		switch {
		case errors.Is(err, ErrUnreachable):
			h.logger.Error("Unable to connect to authentication service")
			return nil
		case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrInvalidCredentials):
			return nil
		}
		h.logger.WithError(err).Error("Error refreshing session")
		return err
	}
	if session == nil {
		h.clear()
		return nil
	}
	h.Restore(session)
	return nil
}

func (h *Holder) clear() { h.identity.Set(Identity{}) }
