package httpapi

import (
	"net/http"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/middleware"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())

	var req struct {
		RecipientID string `json:"recipient_id"`
		Title       string `json:"title"`
		Body        string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	notification, err := s.store.CreateNotification(r.Context(), req.RecipientID, req.Title, req.Body, res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, notification)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	notifications, err := s.store.ListNotificationsForUser(r.Context(), res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if notifications == nil {
		notifications = []sqlite.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	if err := s.store.MarkNotificationRead(r.Context(), r.PathValue("id"), res.UserID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
