package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/middleware"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

type createInvoiceRequest struct {
	ApartmentID string `json:"apartment_id"`
	Period      string `json:"period"`
	DueAt       string `json:"due_at"`
	Items       []struct {
		Label       string `json:"label"`
		AmountCents int64  `json:"amount_cents"`
	} `json:"items"`
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())

	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		badRequest(w, "due_at must be RFC 3339")
		return
	}

	apartment, err := s.store.GetApartment(r.Context(), req.ApartmentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if apartment.ResidentID == "" {
		badRequest(w, "apartment has no resident assigned")
		return
	}

	items := make([]sqlite.InvoiceItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = sqlite.InvoiceItem{Label: item.Label, AmountCents: item.AmountCents}
	}

	invoice, err := s.store.CreateInvoice(r.Context(), apartment.ID, apartment.ResidentID, req.Period, dueAt, items)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Tell the resident a new invoice exists. Best effort; the invoice is
	// already committed.
	title := fmt.Sprintf("New invoice for %s", invoice.Period)
	if _, notifyErr := s.store.CreateNotification(r.Context(), apartment.ResidentID, title,
		fmt.Sprintf("An invoice for unit %s is due %s.", apartment.Unit, invoice.DueAt.Format("2006-01-02")),
		res.UserID,
	); notifyErr != nil {
		s.logger.Warn("invoice notification failed", zap.Error(notifyErr))
	}

	writeJSON(w, http.StatusCreated, invoice)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	filter := sqlite.InvoiceFilter{
		Status: r.URL.Query().Get("status"),
		Period: r.URL.Query().Get("period"),
	}
	// Residents only ever see their own invoices.
	if res.Role == kogu.RoleResident {
		filter.ResidentID = res.UserID
	}

	invoices, err := s.store.ListInvoices(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if invoices == nil {
		invoices = []sqlite.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	invoice, err := s.store.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if res.Role == kogu.RoleResident && invoice.ResidentID != res.UserID {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (s *Server) handleMarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	invoice, err := s.store.MarkInvoicePaid(r.Context(), r.PathValue("id"), time.Now().UTC())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}
