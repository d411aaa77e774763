package api

import (
	"net/http"

	"github.com/MrWong99/soundwatch/internal/store"
)

const userNotFound = "User not found"

type userUpdateRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Img  string `json:"img"`
	Role string `json:"role"`
}

type userUpdateResponse struct {
	Message string     `json:"message"`
	User    store.User `json:"user"`
}

// userDelete removes the user addressed by the id (email) and role query
// parameters and returns the remaining users.
func (s *Server) userDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, role := q.Get("id"), q.Get("role")
	if id == "" || role == "" {
		writeError(w, http.StatusUnprocessableEntity, "id and role are required")
		return
	}
	users, err := s.cfg.Store.DeleteUser(r.Context(), id, role)
	if err != nil {
		writeStoreError(w, r, err, userNotFound)
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) userUpdate(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.cfg.Store.UpdateUser(r.Context(), req.ID, req.Role, req.Name, req.Img)
	if err != nil {
		writeStoreError(w, r, err, userNotFound)
		return
	}
	writeJSON(w, http.StatusOK, userUpdateResponse{Message: "User updated successfully", User: u})
}
