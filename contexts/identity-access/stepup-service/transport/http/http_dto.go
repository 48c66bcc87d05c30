package httptransport

type CreateSessionRequest struct {
	FamilyID string   `json:"family_id"`
	UserID   string   `json:"user_id"`
	Purpose  string   `json:"purpose"`
	Scopes   []string `json:"scopes"`
}

type CreateSessionResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		StepUpID  string `json:"stepup_id"`
		ExpiresAt string `json:"expires_at"`
	} `json:"data"`
}

type VerifyRequest struct {
	Code string `json:"code"`
}

type VerifyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Token     string `json:"stepup_token"`
		ExpiresAt string `json:"expires_at"`
	} `json:"data"`
}
