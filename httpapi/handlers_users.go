package httpapi

import (
	"net/http"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

func (s *Server) handleListResidents(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsersByRole(r.Context(), kogu.RoleResident)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	profiles := make([]kogu.UserProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Profile())
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	status, ok := parseAccountStatus(req.Status)
	if !ok {
		badRequest(w, "unknown account status")
		return
	}

	if err := s.engine.SetAccountStatus(r.Context(), r.PathValue("id"), status); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseAccountStatus(value string) (kogu.AccountStatus, bool) {
	switch value {
	case "active":
		return kogu.AccountActive, true
	case "disabled":
		return kogu.AccountDisabled, true
	case "locked":
		return kogu.AccountLocked, true
	case "deleted":
		return kogu.AccountDeleted, true
	}
	return 0, false
}

func (s *Server) handleCreateApartment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unit   string  `json:"unit"`
		Floor  int     `json:"floor"`
		AreaM2 float64 `json:"area_m2"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	apartment, err := s.store.CreateApartment(r.Context(), req.Unit, req.Floor, req.AreaM2)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apartment)
}

func (s *Server) handleListApartments(w http.ResponseWriter, r *http.Request) {
	apartments, err := s.store.ListApartments(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if apartments == nil {
		apartments = []sqlite.Apartment{}
	}
	writeJSON(w, http.StatusOK, apartments)
}

func (s *Server) handleAssignResident(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResidentID string `json:"resident_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := s.store.AssignResident(r.Context(), r.PathValue("id"), req.ResidentID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
