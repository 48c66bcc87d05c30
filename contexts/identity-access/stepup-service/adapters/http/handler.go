package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"warden/contexts/identity-access/stepup-service/application"
	httptransport "warden/contexts/identity-access/stepup-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// CreateSessionHandler starts a challenge. The one-time code is handed
// to the out-of-band delivery path, never to the HTTP response.
func (h Handler) CreateSessionHandler(ctx context.Context, req httptransport.CreateSessionRequest) (httptransport.CreateSessionResponse, error) {
	result, err := h.Service.CreateSession(ctx, application.CreateInput{
		FamilyID: req.FamilyID,
		UserID:   req.UserID,
		Purpose:  req.Purpose,
		Scopes:   req.Scopes,
	})
	if err != nil {
		return httptransport.CreateSessionResponse{}, err
	}

	resp := httptransport.CreateSessionResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.StepUpID = result.StepUpID
	resp.Data.ExpiresAt = result.ExpiresAt.UTC().Format(time.RFC3339)
	return resp, nil
}

func (h Handler) VerifyHandler(ctx context.Context, stepupID string, req httptransport.VerifyRequest) (httptransport.VerifyResponse, error) {
	result, err := h.Service.Verify(ctx, stepupID, req.Code)
	if err != nil {
		return httptransport.VerifyResponse{}, err
	}

	resp := httptransport.VerifyResponse{Status: "success", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	resp.Data.Token = result.Token
	resp.Data.ExpiresAt = result.ExpiresAt.UTC().Format(time.RFC3339)
	return resp, nil
}
