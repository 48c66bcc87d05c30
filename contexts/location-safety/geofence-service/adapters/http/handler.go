package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"warden/contexts/location-safety/geofence-service/application"
	"warden/contexts/location-safety/geofence-service/domain/entities"
	httptransport "warden/contexts/location-safety/geofence-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) SampleHandler(ctx context.Context, req httptransport.SampleRequest) (httptransport.SampleResponse, error) {
	outcomes, err := h.Service.ProcessSample(ctx, application.SampleInput{
		FamilyID: req.FamilyID,
		DeviceID: req.DeviceID,
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		return httptransport.SampleResponse{}, err
	}

	resp := httptransport.SampleResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.Outcomes = make([]httptransport.ZoneOutcomeDTO, 0, len(outcomes))
	for _, outcome := range outcomes {
		resp.Data.Outcomes = append(resp.Data.Outcomes, httptransport.ZoneOutcomeDTO{
			ZoneID:     outcome.ZoneID,
			ZoneName:   outcome.ZoneName,
			Transition: string(outcome.Transition),
			DistanceM:  outcome.DistanceM,
			CommandID:  outcome.CommandID,
		})
	}
	return resp, nil
}

func (h Handler) UpsertZoneHandler(ctx context.Context, req httptransport.UpsertZoneRequest) (httptransport.ZoneResponse, error) {
	zone, err := h.Service.UpsertZone(ctx, entities.Zone{
		ZoneID:            req.ZoneID,
		FamilyID:          req.FamilyID,
		Name:              req.Name,
		CenterLat:         req.CenterLat,
		CenterLng:         req.CenterLng,
		RadiusM:           req.RadiusM,
		NotifyOnEnter:     req.NotifyOnEnter,
		NotifyOnExit:      req.NotifyOnExit,
		AutoDefenseOnExit: req.AutoDefenseOnExit,
		Severity:          req.Severity,
	})
	if err != nil {
		return httptransport.ZoneResponse{}, err
	}
	return httptransport.ZoneResponse{
		Status:    "success",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      toZoneDTO(zone),
	}, nil
}

func (h Handler) ListZonesHandler(ctx context.Context, familyID string) (httptransport.ZoneListResponse, error) {
	zones, err := h.Service.ListZones(ctx, familyID)
	if err != nil {
		return httptransport.ZoneListResponse{}, err
	}
	resp := httptransport.ZoneListResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.Zones = make([]httptransport.ZoneDTO, 0, len(zones))
	for _, zone := range zones {
		resp.Data.Zones = append(resp.Data.Zones, toZoneDTO(zone))
	}
	return resp, nil
}

func toZoneDTO(zone entities.Zone) httptransport.ZoneDTO {
	return httptransport.ZoneDTO{
		ZoneID:            zone.ZoneID,
		FamilyID:          zone.FamilyID,
		Name:              zone.Name,
		CenterLat:         zone.CenterLat,
		CenterLng:         zone.CenterLng,
		RadiusM:           zone.RadiusM,
		NotifyOnEnter:     zone.NotifyOnEnter,
		NotifyOnExit:      zone.NotifyOnExit,
		AutoDefenseOnExit: zone.AutoDefenseOnExit,
		Severity:          zone.Severity,
	}
}
