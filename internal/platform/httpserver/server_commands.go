package httpserver

import (
	"errors"
	"net/http"

	commanderrors "warden/contexts/device-control/command-service/domain/errors"
	commandhttp "warden/contexts/device-control/command-service/transport/http"
	keyerrors "warden/contexts/device-control/key-registry-service/domain/errors"
)

func writeCommandDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commanderrors.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, "invalid_command", err.Error())
	case errors.Is(err, commanderrors.ErrCommandNotFound):
		writeError(w, http.StatusNotFound, "command_not_found", err.Error())
	case errors.Is(err, keyerrors.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device_not_found", err.Error())
	case errors.Is(err, commanderrors.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, commanderrors.ErrNonceConflict):
		writeError(w, http.StatusConflict, "nonce_conflict", err.Error())
	case errors.Is(err, commanderrors.ErrSignatureMismatch):
		writeError(w, http.StatusUnprocessableEntity, "signature_mismatch", err.Error())
	case errors.Is(err, commanderrors.ErrCommandExpired):
		writeError(w, http.StatusGone, "command_expired", err.Error())
	case errors.Is(err, commanderrors.ErrNonceReplayed):
		writeError(w, http.StatusConflict, "nonce_replayed", err.Error())
	case errors.Is(err, commanderrors.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleIssueCommand(w http.ResponseWriter, r *http.Request) {
	var req commandhttp.IssueCommandRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.commands.Handler.IssueHandler(r.Context(), req)
	if err != nil {
		writeCommandDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleReportCommandStatus(w http.ResponseWriter, r *http.Request) {
	var req commandhttp.ReportStatusRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.commands.Handler.ReportStatusHandler(r.Context(), r.PathValue("command_id"), req)
	if err != nil {
		writeCommandDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCommandStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.commands.Handler.StatusHandler(r.Context(), r.PathValue("command_id"))
	if err != nil {
		writeCommandDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
