package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"missionrace/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// voiceService is configured once in InitModule from the runtime
// environment. A nil service rejects every token request.
var voiceService *app.VoiceService

type VoiceTokenRequest struct {
	Action  string `json:"action"`
	MatchID string `json:"match_id"`
}

type VoiceTokenResponse struct {
	Token string `json:"token"`
}

// RpcGetVoiceToken signs a voice access token for the calling user. Login
// tokens authenticate the user with the voice backend; join tokens admit
// them to their match's channel.
func RpcGetVoiceToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", runtime.NewError("no user ID in context", 3)
	}

	var request VoiceTokenRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid voice token request", 3)
		}
	}

	action := request.Action
	if action == "" {
		action = app.VoiceTokenActionLogin
	}

	channel := ""
	if action == app.VoiceTokenActionJoin {
		if request.MatchID == "" {
			return "", runtime.NewError("match_id is required for join tokens", 3)
		}
		channel = app.ChannelForMatch(request.MatchID)
	}

	token, err := voiceService.GenerateToken(userID, action, channel)
	if err != nil {
		logger.Error("RpcGetVoiceToken: Failed to generate token for %s: %v", userID, err)
		return "", runtime.NewError("failed to generate voice token", 13)
	}

	resp := VoiceTokenResponse{Token: token}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
