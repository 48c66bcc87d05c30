package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/device-control/command-service/application"
	domainerrors "warden/contexts/device-control/command-service/domain/errors"
	httptransport "warden/contexts/device-control/command-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) IssueHandler(ctx context.Context, req httptransport.IssueCommandRequest) (httptransport.IssueCommandResponse, error) {
	result, err := h.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    strings.TrimSpace(req.FamilyID),
		DeviceID:    strings.TrimSpace(req.DeviceID),
		CommandType: strings.TrimSpace(req.CommandType),
		Payload:     req.Payload,
		IncidentID:  strings.TrimSpace(req.IncidentID),
		TTLSeconds:  req.TTLSeconds,
		Actor:       "operator-api",
	})
	if err != nil {
		return httptransport.IssueCommandResponse{}, err
	}

	resp := httptransport.IssueCommandResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.CommandID = result.Command.CommandID
	resp.Data.State = string(result.Command.Status)
	resp.Data.Signature = result.Signature
	resp.Data.ExpiresAt = result.Command.ExpiresAt.UTC().Format(time.RFC3339)
	resp.Data.Envelope = httptransport.EnvelopeDTO{
		CommandID:   result.Envelope.CommandID,
		CommandType: result.Envelope.CommandType,
		DeviceID:    result.Envelope.DeviceID,
		ExpiresAt:   result.Envelope.ExpiresAt,
		IncidentID:  result.Envelope.IncidentID,
		IssuedAt:    result.Envelope.IssuedAt,
		Nonce:       result.Envelope.Nonce,
		Payload:     result.Envelope.Payload,
		Version:     result.Envelope.Version,
	}
	return resp, nil
}

func (h Handler) ReportStatusHandler(ctx context.Context, commandID string, req httptransport.ReportStatusRequest) (httptransport.CommandStatusResponse, error) {
	var err error
	switch strings.ToUpper(strings.TrimSpace(req.Status)) {
	case "SENT":
		_, err = h.Service.MarkSent(ctx, commandID)
	case "DELIVERED":
		_, err = h.Service.MarkDelivered(ctx, commandID)
	case "ACKED":
		_, err = h.Service.MarkAcked(ctx, commandID)
	case "FAILED":
		_, err = h.Service.MarkFailed(ctx, commandID, strings.TrimSpace(req.Reason))
	default:
		err = domainerrors.ErrInvalidCommand
	}
	if err != nil {
		return httptransport.CommandStatusResponse{}, err
	}
	return h.StatusHandler(ctx, commandID)
}

func (h Handler) StatusHandler(ctx context.Context, commandID string) (httptransport.CommandStatusResponse, error) {
	view, err := h.Service.CommandStatus(ctx, commandID)
	if err != nil {
		return httptransport.CommandStatusResponse{}, err
	}
	resp := httptransport.CommandStatusResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.CommandID = view.CommandID
	resp.Data.DeviceID = view.DeviceID
	resp.Data.State = string(view.Status)
	resp.Data.RetryCount = view.RetryCount
	resp.Data.IssuedAt = view.IssuedAt.UTC().Format(time.RFC3339)
	resp.Data.ExpiresAt = view.ExpiresAt.UTC().Format(time.RFC3339)
	resp.Data.UpdatedAt = view.UpdatedAt.UTC().Format(time.RFC3339)
	return resp, nil
}
