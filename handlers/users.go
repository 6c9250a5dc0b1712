package handlers

import (
	"net/http"
)

func MeHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := d.Backend.Users.GetByID(r.Context(), currentUser(r).ID)
		if err != nil {
			writeStoreError(w, err, "failed to load user")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
