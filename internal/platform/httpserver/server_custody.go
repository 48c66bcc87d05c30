package httpserver

import (
	"errors"
	"net/http"
	"time"

	evidenceapp "warden/contexts/custody/evidence-export-service/application"
	evidenceentities "warden/contexts/custody/evidence-export-service/domain/entities"
	evidenceerrors "warden/contexts/custody/evidence-export-service/domain/errors"
	ledgererrors "warden/contexts/custody/ledger-service/domain/errors"
)

func writeCustodyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
	case errors.Is(err, ledgererrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrChainContention):
		writeError(w, http.StatusConflict, "chain_contention", err.Error())
	case errors.Is(err, ledgererrors.ErrChainBroken):
		writeError(w, http.StatusConflict, "chain_broken", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleListCustodyEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.ledger.Handler.ListEventsHandler(
		r.Context(),
		r.PathValue("family_id"),
		query.Get("from"),
		query.Get("to"),
		query.Get("limit"),
	)
	if err != nil {
		writeCustodyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyCustodyChain(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.VerifyChainHandler(r.Context(), r.PathValue("family_id"))
	if err != nil {
		writeCustodyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type exportRequest struct {
	FamilyID    string `json:"family_id"`
	Requester   string `json:"requester"`
	From        string `json:"from"`
	To          string `json:"to"`
	DeviceID    string `json:"device_id,omitempty"`
	IncidentID  string `json:"incident_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type exportAcceptedResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		JobID string `json:"job_id"`
	} `json:"data"`
}

// handleRequestExport persists an export job for the worker process.
// The package is assembled off the request path; the job row carries
// the outcome, so the queue survives the api/worker process split.
func (s *Server) handleRequestExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.FamilyID == "" || req.Requester == "" || req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "invalid_export_request", "family_id, requester, from, and to are required")
		return
	}
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_export_request", "from must be an RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_export_request", "to must be an RFC3339 timestamp")
		return
	}

	job, err := s.exports.Service.Enqueue(r.Context(), evidenceapp.ExportInput{
		FamilyID:  req.FamilyID,
		Requester: req.Requester,
		Filters: evidenceentities.ExportFilters{
			From:        from,
			To:          to,
			DeviceID:    req.DeviceID,
			IncidentID:  req.IncidentID,
			ContentType: req.ContentType,
		},
	})
	if err != nil {
		if errors.Is(err, evidenceerrors.ErrInvalidExportRequest) {
			writeError(w, http.StatusBadRequest, "invalid_export_request", err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "export_queue_unavailable", err.Error())
		return
	}

	resp := exportAcceptedResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.JobID = job.JobID
	writeJSON(w, http.StatusAccepted, resp)
}
