package httpserver

import (
	"errors"
	"net/http"
	"time"

	stepuperrors "warden/contexts/identity-access/stepup-service/domain/errors"
	stepuphttp "warden/contexts/identity-access/stepup-service/transport/http"
)

func writeStepUpDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stepuperrors.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, stepuperrors.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, stepuperrors.ErrSessionExpired):
		writeError(w, http.StatusGone, "session_expired", err.Error())
	case errors.Is(err, stepuperrors.ErrCodeMismatch):
		writeError(w, http.StatusUnauthorized, "code_mismatch", err.Error())
	case errors.Is(err, stepuperrors.ErrSessionLocked):
		writeError(w, http.StatusLocked, "session_locked", err.Error())
	case errors.Is(err, stepuperrors.ErrSessionVerified):
		writeError(w, http.StatusConflict, "session_already_verified", err.Error())
	case errors.Is(err, stepuperrors.ErrSessionNotVerified):
		writeError(w, http.StatusConflict, "session_not_verified", err.Error())
	case errors.Is(err, stepuperrors.ErrSessionUsed):
		writeError(w, http.StatusConflict, "session_used", err.Error())
	case errors.Is(err, stepuperrors.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "token_invalid", err.Error())
	case errors.Is(err, stepuperrors.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired", err.Error())
	case errors.Is(err, stepuperrors.ErrScopeNotGranted):
		writeError(w, http.StatusForbidden, "scope_not_granted", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateStepUp(w http.ResponseWriter, r *http.Request) {
	var req stepuphttp.CreateSessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.stepup.Handler.CreateSessionHandler(r.Context(), req)
	if err != nil {
		writeStepUpDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleVerifyStepUp(w http.ResponseWriter, r *http.Request) {
	var req stepuphttp.VerifyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.stepup.Handler.VerifyHandler(r.Context(), r.PathValue("stepup_id"), req)
	if err != nil {
		writeStepUpDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type consumeStepUpRequest struct {
	Token string `json:"stepup_token"`
	Scope string `json:"scope"`
}

type consumeStepUpResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		StepUpID string `json:"stepup_id"`
		Scope    string `json:"scope"`
	} `json:"data"`
}

func (s *Server) handleConsumeStepUp(w http.ResponseWriter, r *http.Request) {
	var req consumeStepUpRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	claims, err := s.stepup.Service.Consume(r.Context(), req.Token, req.Scope)
	if err != nil {
		writeStepUpDomainError(w, err)
		return
	}
	resp := consumeStepUpResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.StepUpID = claims.StepUpID
	resp.Data.Scope = req.Scope
	writeJSON(w, http.StatusOK, resp)
}
