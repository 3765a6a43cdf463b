package nakama

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/heroiclabs/nakama-common/runtime"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultJoinURL = "https://play.missionrace.example/join"
	inviteQRSize   = 320
)

type RaceInviteRequest struct {
	MatchID string `json:"match_id"`
}

type RaceInviteResponse struct {
	MatchID     string `json:"match_id"`
	JoinURL     string `json:"join_url"`
	QRPNGBase64 string `json:"qr_png_base64"`
}

// rpcRaceInvite turns a live match into something a friend can scan: a
// join link plus a QR code rendering of it.
func rpcRaceInvite(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var request RaceInviteRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid invite request", 3)
		}
	}
	if request.MatchID == "" {
		return "", runtime.NewError("match_id is required", 3)
	}

	match, err := nk.MatchGet(ctx, request.MatchID)
	if err != nil || match == nil {
		return "", runtime.NewError("match not found", 5)
	}

	base := defaultJoinURL
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if val, exists := env["missionrace_join_url"]; exists && val != "" {
			base = val
		}
	}
	joinURL := fmt.Sprintf("%s?match=%s", base, url.QueryEscape(request.MatchID))

	png, err := qrcode.Encode(joinURL, qrcode.Medium, inviteQRSize)
	if err != nil {
		logger.Error("RpcRaceInvite: Failed to encode QR for %s: %v", request.MatchID, err)
		return "", runtime.NewError("failed to encode invite", 13)
	}

	resp := RaceInviteResponse{
		MatchID:     request.MatchID,
		JoinURL:     joinURL,
		QRPNGBase64: base64.StdEncoding.EncodeToString(png),
	}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
