package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"YieldSentinel/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrPoolNotFound), errors.Is(err, model.ErrInvestmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.scheduler.Status()})
}

func (s *Server) handleTriggerDistribution(w http.ResponseWriter, _ *http.Request) {
	sum, err := s.scheduler.TriggerDistributionNow()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTriggerSettlement(w http.ResponseWriter, _ *http.Request) {
	sum, err := s.scheduler.TriggerSettlementNow()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := s.store.ListAuditLog(limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "offset": offset})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")

	// Opportunistic status refresh on the read path; idempotent, writes only
	// on change.
	if _, err := s.refresher.RefreshStatus(poolID); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := s.store.GetPool(poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	av, err := s.admission.CheckAvailability(chi.URLParam(r, "poolID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

type investRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	inv, err := s.admission.Invest(r.Context(), req.UserID, chi.URLParam(r, "poolID"), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}
