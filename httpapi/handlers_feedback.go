package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/middleware"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	var req struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		Category string `json:"category"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	feedback, err := s.store.CreateFeedback(r.Context(), res.UserID, req.Title, req.Body, req.Category)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feedback)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	authorID := ""
	if res.Role == kogu.RoleResident {
		authorID = res.UserID
	}

	entries, err := s.store.ListFeedback(r.Context(), authorID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []sqlite.Feedback{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())

	var req struct {
		Status   string `json:"status"`
		Response string `json:"response"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	feedback, err := s.store.UpdateFeedbackStatus(r.Context(), r.PathValue("id"), req.Status, req.Response)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Let the author know their report moved.
	if _, notifyErr := s.store.CreateNotification(r.Context(), feedback.AuthorID,
		"Feedback update: "+feedback.Title,
		"Status is now "+feedback.Status+".",
		res.UserID,
	); notifyErr != nil {
		s.logger.Warn("feedback notification failed", zap.Error(notifyErr))
	}

	writeJSON(w, http.StatusOK, feedback)
}
