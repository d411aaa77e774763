package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/MrWong99/soundwatch/internal/push"
	"github.com/MrWong99/soundwatch/internal/store"
)

type insertTokenRequest struct {
	UUID       string `json:"uuid"`
	FCMToken   string `json:"fcmToken"`
	Permission string `json:"permission"`
}

type insertTokenResponse struct {
	Message string          `json:"message"`
	Data    store.PushToken `json:"data"`
}

var upsertMessages = map[store.UpsertOutcome]string{
	store.TokenCreated:   "New user created and token inserted successfully",
	store.TokenMoved:     "User update uuid",
	store.TokenUnchanged: "User already exists with the same uuid and token",
}

type sendPushRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type uuidRequest struct {
	UUID string `json:"uuid"`
}

type permissionResponse struct {
	HasPermission bool `json:"has_permission"`
}

type updatePermissionRequest struct {
	UUID       string `json:"uuid"`
	Permission string `json:"permission"`
}

type updatePermissionResponse struct {
	Status      string `json:"status"`
	UpdatedRows int64  `json:"updated_rows"`
}

// insertToken registers a device's FCM token. A token already registered
// under another uuid moves to this one.
func (s *Server) insertToken(w http.ResponseWriter, r *http.Request) {
	var req insertTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FCMToken == "" {
		writeError(w, http.StatusBadRequest, "No tokens available")
		return
	}
	if req.Permission == "" {
		req.Permission = store.PermissionYes
	}
	res, err := s.cfg.Store.UpsertToken(r.Context(), store.PushToken{
		UUID:       req.UUID,
		Token:      req.FCMToken,
		Permission: req.Permission,
	})
	if err != nil {
		writeStoreError(w, r, err, "token not found")
		return
	}
	writeJSON(w, http.StatusOK, insertTokenResponse{Message: upsertMessages[res.Outcome], Data: res.Token})
}

// sendPushNotification sends a custom notification to every registered
// token regardless of permission.
func (s *Server) sendPushNotification(w http.ResponseWriter, r *http.Request) {
	var req sendPushRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if s.cfg.Push == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	err := s.broadcast(r.Context(), "custom", push.Everyone, push.Notification{Title: req.Title, Body: req.Body})
	var delivery *push.DeliveryError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Push notifications sent successfully"})
	case errors.Is(err, push.ErrNoTokens):
		writeError(w, http.StatusNotFound, "No tokens found in the database")
	case errors.As(err, &delivery):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Failed to send notification to tokens: [%s]", strings.Join(delivery.Failed, ", ")))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) getPermission(w http.ResponseWriter, r *http.Request) {
	var req uuidRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	perms, err := s.cfg.Store.Permissions(r.Context(), req.UUID)
	if err != nil {
		writeStoreError(w, r, err, "No permission data found for this UUID")
		return
	}
	writeJSON(w, http.StatusOK, permissionResponse{HasPermission: slices.Contains(perms, store.PermissionYes)})
}

func (s *Server) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Permission != store.PermissionYes && req.Permission != store.PermissionNo {
		writeError(w, http.StatusBadRequest, "Invalid permission value")
		return
	}
	n, err := s.cfg.Store.SetPermission(r.Context(), req.UUID, req.Permission)
	if err != nil {
		writeStoreError(w, r, err, "No matching data found for this UUID")
		return
	}
	writeJSON(w, http.StatusOK, updatePermissionResponse{Status: "success", UpdatedRows: n})
}
