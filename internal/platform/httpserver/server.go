package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	evidenceexportservice "warden/contexts/custody/evidence-export-service"
	ledgerservice "warden/contexts/custody/ledger-service"
	commandservice "warden/contexts/device-control/command-service"
	stepupservice "warden/contexts/identity-access/stepup-service"
	geofenceservice "warden/contexts/location-safety/geofence-service"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	ledger   ledgerservice.Module
	commands commandservice.Module
	stepup   stepupservice.Module
	geofence geofenceservice.Module
	exports  evidenceexportservice.Module
}

func New(
	ledger ledgerservice.Module,
	commands commandservice.Module,
	stepup stepupservice.Module,
	geofence geofenceservice.Module,
	exports evidenceexportservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		ledger:   ledger,
		commands: commands,
		stepup:   stepup,
		geofence: geofence,
		exports:  exports,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/commands", s.handleIssueCommand)
	s.mux.HandleFunc("GET /v1/commands/{command_id}", s.handleCommandStatus)
	s.mux.HandleFunc("POST /v1/commands/{command_id}/status", s.handleReportCommandStatus)

	s.mux.HandleFunc("POST /v1/stepup", s.handleCreateStepUp)
	s.mux.HandleFunc("POST /v1/stepup/{stepup_id}/verify", s.handleVerifyStepUp)
	s.mux.HandleFunc("POST /v1/stepup/consume", s.handleConsumeStepUp)

	s.mux.HandleFunc("POST /v1/geofence/samples", s.handleGeofenceSample)
	s.mux.HandleFunc("POST /v1/geofence/zones", s.handleUpsertZone)
	s.mux.HandleFunc("GET /v1/geofence/zones", s.handleListZones)

	s.mux.HandleFunc("GET /v1/custody/families/{family_id}/events", s.handleListCustodyEvents)
	s.mux.HandleFunc("GET /v1/custody/families/{family_id}/verify", s.handleVerifyCustodyChain)

	s.mux.HandleFunc("POST /v1/exports", s.handleRequestExport)
}

type errorBody struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorBody{
		Status:    "error",
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}
