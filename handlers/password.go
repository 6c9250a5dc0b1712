package handlers

import (
	"errors"
	"net/http"

	"storefront/auth"
	"storefront/models"
	"storefront/validators"
)

func ChangePasswordHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PasswordChangeRequest
		if !decodeValid(w, r, &req) {
			return
		}
		if validators.PasswordStrength(req.NewPassword).Score < validators.StrengthGood {
			writeError(w, http.StatusBadRequest, "invalid_input", validators.ErrWeakPassword.Error(), nil)
			return
		}
		err := d.Auth.ChangePassword(r.Context(), currentUser(r).ID, req.OldPassword, req.NewPassword)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Old password is incorrect", nil)
			return
		}
		if err != nil {
			writeStoreError(w, err, "failed to change password")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
