package httpserver

import (
	"errors"
	"net/http"

	geofenceerrors "warden/contexts/location-safety/geofence-service/domain/errors"
	geofencehttp "warden/contexts/location-safety/geofence-service/transport/http"
)

func writeGeofenceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, geofenceerrors.ErrInvalidSample):
		writeError(w, http.StatusBadRequest, "invalid_sample", err.Error())
	case errors.Is(err, geofenceerrors.ErrInvalidZone):
		writeError(w, http.StatusBadRequest, "invalid_zone", err.Error())
	case errors.Is(err, geofenceerrors.ErrZoneNotFound):
		writeError(w, http.StatusNotFound, "zone_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleGeofenceSample(w http.ResponseWriter, r *http.Request) {
	var req geofencehttp.SampleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.geofence.Handler.SampleHandler(r.Context(), req)
	if err != nil {
		writeGeofenceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsertZone(w http.ResponseWriter, r *http.Request) {
	var req geofencehttp.UpsertZoneRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.geofence.Handler.UpsertZoneHandler(r.Context(), req)
	if err != nil {
		writeGeofenceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	resp, err := s.geofence.Handler.ListZonesHandler(r.Context(), r.URL.Query().Get("family_id"))
	if err != nil {
		writeGeofenceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
