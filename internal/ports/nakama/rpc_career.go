package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

type CareerStatsRequest struct {
	// UserID is optional; empty means the caller's own record.
	UserID string `json:"user_id"`
}

type CareerStatsResponse struct {
	UserID string            `json:"user_id"`
	Stats  ports.CareerStats `json:"stats"`
}

func rpcCareerStats(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	callerID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var request CareerStatsRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid career stats request", 3)
		}
	}

	userID := request.UserID
	if userID == "" {
		userID = callerID
	}
	if userID == "" {
		return "", runtime.NewError("no user ID in context", 3)
	}

	stats, err := NewNakamaStatsAdapter(nk).Career(ctx, userID)
	if err != nil {
		logger.Error("RpcCareerStats: Failed to read stats for %s: %v", userID, err)
		return "", runtime.NewError("failed to read career stats", 13)
	}

	resp := CareerStatsResponse{UserID: userID, Stats: stats}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
