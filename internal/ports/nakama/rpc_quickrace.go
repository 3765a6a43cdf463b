package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"missionrace/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// QuickRaceRequest optionally pins the race to one track. Empty means any
// open lobby will do.
type QuickRaceRequest struct {
	Track string `json:"track"`
}

// QuickRaceResponse is the payload returned to clients when requesting a
// lobby-capable match.
type QuickRaceResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	for id, fn := range map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcQuickRace:        rpcQuickRace,
		RpcCreateTournament: rpcCreateTournament,
		RpcListTournaments:  rpcListTournaments,
		RpcTournamentRace:   rpcTournamentRace,
		RpcTrackLeaderboard: rpcTrackLeaderboard,
		RpcCareerStats:      rpcCareerStats,
		RpcRaceInvite:       rpcRaceInvite,
		RpcVoiceToken:       RpcGetVoiceToken,
	} {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func rpcQuickRace(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var request QuickRaceRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid quick race request", 3)
		}
	}
	if request.Track != "" {
		if _, known := config.GetTrack(request.Track); !known {
			return "", runtime.NewError("unknown track: "+request.Track, 3)
		}
	}

	// Find any quick-race lobby with a seat a human could take.
	query := fmt.Sprintf("+label.mode:%s +label.state:%s +label.%s:>=1", labelModeQuick, labelStateLobby, MatchLabelKey_OpenSeats)
	if request.Track != "" {
		query += " +label.track:" + request.Track
	}

	limit := 10
	authoritative := true
	minSize := 0
	maxSize := raceSeatCount - 1

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("RpcQuickRace [User:%s]: Failed to list matches: %v", userId, err)
		return "", runtime.NewError("failed to list matches", 13)
	}

	if len(matches) > 0 {
		matchId := matches[0].MatchId
		logger.Info("RpcQuickRace [User:%s]: Found existing match %s", userId, matchId)
		resp := QuickRaceResponse{MatchID: matchId, IsNew: false}
		b, _ := json.Marshal(resp)
		return string(b), nil
	}

	// Create new match; seat/owner assignment happens in MatchJoin
	// (server-authoritative).
	params := map[string]interface{}{}
	if request.Track != "" {
		params["track"] = request.Track
	}
	matchId, err := nk.MatchCreate(ctx, MatchNameRace, params)
	if err != nil {
		logger.Error("RpcQuickRace [User:%s]: Failed to create match: %v", userId, err)
		return "", runtime.NewError("failed to create match", 13)
	}

	logger.Info("RpcQuickRace [User:%s]: Created new match %s", userId, matchId)
	resp := QuickRaceResponse{MatchID: matchId, IsNew: true}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
