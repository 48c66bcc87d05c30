package httpadapter

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"warden/contexts/custody/ledger-service/application"
	"warden/contexts/custody/ledger-service/ports"
	httptransport "warden/contexts/custody/ledger-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ListEventsHandler(ctx context.Context, familyID string, fromRaw string, toRaw string, limitRaw string) (httptransport.EventsResponse, error) {
	filter := ports.EventFilter{FamilyID: strings.TrimSpace(familyID)}
	if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(fromRaw)); err == nil {
		filter.From = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(toRaw)); err == nil {
		filter.To = parsed
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(limitRaw)); err == nil {
		filter.Limit = parsed
	}

	events, err := h.Service.ListEvents(ctx, filter)
	if err != nil {
		return httptransport.EventsResponse{}, err
	}

	resp := httptransport.EventsResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.Events = make([]httptransport.EventItem, 0, len(events))
	for _, event := range events {
		resp.Data.Events = append(resp.Data.Events, httptransport.EventItem{
			EventID:     event.EventID,
			FamilyID:    event.FamilyID,
			DeviceID:    event.DeviceID,
			UserID:      event.UserID,
			Actor:       event.Actor,
			EventKey:    event.EventKey,
			EventAt:     event.EventAt.UTC().Format(time.RFC3339Nano),
			EventJSON:   event.EventJSON,
			PrevHashHex: event.PrevHashHex,
			HashHex:     event.HashHex,
			ChainSeq:    event.ChainSeq,
		})
	}
	return resp, nil
}

func (h Handler) VerifyChainHandler(ctx context.Context, familyID string) (httptransport.ChainVerificationResponse, error) {
	report, err := h.Service.VerifyChain(ctx, strings.TrimSpace(familyID))
	if err != nil {
		return httptransport.ChainVerificationResponse{}, err
	}
	resp := httptransport.ChainVerificationResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.FamilyID = report.FamilyID
	resp.Data.EventCount = report.EventCount
	resp.Data.Valid = report.Valid
	resp.Data.BrokenEventID = report.BrokenEventID
	resp.Data.BrokenSeq = report.BrokenSeq
	resp.Data.Reason = report.Reason
	return resp, nil
}
