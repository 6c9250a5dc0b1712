package handlers

import (
	"errors"
	"net/http"

	"storefront/auth"
	"storefront/models"
	"storefront/store"
	"storefront/validators"
)

func writeAuthError(w http.ResponseWriter, err error) {
	var pe *auth.ProviderError
	switch {
	case errors.Is(err, auth.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", auth.Message(err), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", auth.Message(err), nil)
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", auth.Message(err), nil)
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.As(err, &pe):
		writeError(w, http.StatusBadRequest, "auth_error", pe.Message, nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "authentication failed", nil)
	}
}

func RegisterHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		if !decodeValid(w, r, &creds) {
			return
		}
		if err := validators.ValidateRegistration(validators.Registration{
			FullName:        creds.FullName,
			Email:           creds.Email,
			Password:        creds.Password,
			ConfirmPassword: creds.ConfirmPassword,
		}); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
			return
		}

		holder := d.authHolder(r)
		if err := holder.SignUp(r.Context(), creds.Email, creds.Password, creds.FullName); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, holder.Identity().Session)
	}
}

func LoginHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		if !decodeValid(w, r, &creds) {
			return
		}
		holder := d.authHolder(r)
		if err := holder.SignIn(r.Context(), creds.Email, creds.Password); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, holder.Identity().Session)
	}
}

func RefreshHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RefreshRequest
		if !decodeValid(w, r, &req) {
			return
		}
		holder := d.authHolder(r)
		holder.Restore(&models.AuthSession{RefreshToken: req.RefreshToken})
		if err := holder.RefreshSession(r.Context()); err != nil {
			writeAuthError(w, err)
			return
		}
		identity := holder.Identity()
		if !identity.Authenticated() {
			writeAuthError(w, auth.ErrInvalidRefreshToken)
			return
		}
		writeJSON(w, http.StatusOK, identity.Session)
	}
}

// LogoutHandler closes the caller's shopping session and revokes the refresh
// token sent in the body, if any.
func LogoutHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
			return
		}
		session := *sessionFrom(r)
		session.RefreshToken = req.RefreshToken

		holder := d.authHolder(r)
		holder.Restore(&session)
		if err := holder.SignOut(r.Context()); err != nil {
			writeAuthError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
