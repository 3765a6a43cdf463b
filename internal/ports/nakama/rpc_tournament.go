package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"missionrace/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
	uuid "github.com/satori/go.uuid"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	tournamentIDPrefix = "race-tour-"
	tournamentCategory = 1

	defaultTournamentTitle       = "Time Attack"
	defaultTournamentDurationSec = 24 * 60 * 60
	defaultTournamentMaxSize     = 100
)

// CreateTournamentRequest configures a time-boxed best-time competition
// raced on a single track.
type CreateTournamentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Track       string `json:"track"`
	DurationSec int    `json:"duration_sec"`
	MaxSize     int    `json:"max_size"`
}

type CreateTournamentResponse struct {
	TournamentID string `json:"tournament_id"`
	Track        string `json:"track"`
}

func rpcCreateTournament(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var request CreateTournamentRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid tournament request", 3)
		}
	}

	track := request.Track
	if track == "" {
		track = config.GetDefaultTrack()
	}
	if _, known := config.GetTrack(track); !known {
		return "", runtime.NewError("unknown track: "+track, 3)
	}

	title := request.Title
	if title == "" {
		title = defaultTournamentTitle
	}
	duration := request.DurationSec
	if duration <= 0 {
		duration = defaultTournamentDurationSec
	}
	maxSize := request.MaxSize
	if maxSize <= 0 {
		maxSize = defaultTournamentMaxSize
	}

	id := tournamentIDPrefix + uuid.NewV4().String()
	metadata := map[string]interface{}{"track": track}

	// Ascending best: the board keeps each racer's fastest total time.
	// Authoritative means only this module may submit scores.
	err := nk.TournamentCreate(ctx, id, true, "asc", "best", "", metadata,
		title, request.Description, tournamentCategory, 0, 0, duration, maxSize, 0, true, true)
	if err != nil {
		logger.Error("RpcCreateTournament [User:%s]: Failed to create: %v", userId, err)
		return "", runtime.NewError("failed to create tournament", 13)
	}

	logger.Info("RpcCreateTournament [User:%s]: Created tournament %s on %s", userId, id, track)
	resp := CreateTournamentResponse{TournamentID: id, Track: track}
	b, _ := json.Marshal(resp)
	return string(b), nil
}

type ListTournamentsRequest struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

func rpcListTournaments(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var request ListTournamentsRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid list request", 3)
		}
	}
	limit := request.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	list, err := nk.TournamentList(ctx, tournamentCategory, tournamentCategory, 0, 0, limit, request.Cursor)
	if err != nil {
		logger.Error("RpcListTournaments: Failed to list: %v", err)
		return "", runtime.NewError("failed to list tournaments", 13)
	}

	b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(list)
	if err != nil {
		return "", runtime.NewError("failed to marshal tournaments", 13)
	}
	return string(b), nil
}

type TournamentRaceRequest struct {
	TournamentID string `json:"tournament_id"`
}

type TournamentRaceResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
	Track   string `json:"track"`
}

// rpcTournamentRace joins the caller into a tournament and returns a
// match scoring into it, creating one when none is open.
func rpcTournamentRace(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	username, _ := ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string)

	var request TournamentRaceRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid tournament race request", 3)
		}
	}
	if request.TournamentID == "" {
		return "", runtime.NewError("tournament_id is required", 3)
	}

	tournaments, err := nk.TournamentsGetId(ctx, []string{request.TournamentID})
	if err != nil {
		logger.Error("RpcTournamentRace [User:%s]: Lookup failed: %v", userId, err)
		return "", runtime.NewError("failed to look up tournament", 13)
	}
	if len(tournaments) == 0 {
		return "", runtime.NewError("tournament not found", 5)
	}

	track := config.GetDefaultTrack()
	if md := tournaments[0].Metadata; md != "" {
		var meta struct {
			Track string `json:"track"`
		}
		if err := json.Unmarshal([]byte(md), &meta); err == nil && meta.Track != "" {
			if _, known := config.GetTrack(meta.Track); known {
				track = meta.Track
			}
		}
	}

	if err := nk.TournamentJoin(ctx, request.TournamentID, userId, username); err != nil {
		logger.Error("RpcTournamentRace [User:%s]: Join failed: %v", userId, err)
		return "", runtime.NewError("failed to join tournament", 13)
	}

	query := fmt.Sprintf("+label.mode:%s +label.state:%s +label.tournament_id:%q +label.%s:>=1",
		labelModeTournament, labelStateLobby, request.TournamentID, MatchLabelKey_OpenSeats)

	limit := 10
	authoritative := true
	minSize := 0
	maxSize := raceSeatCount - 1

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("RpcTournamentRace [User:%s]: Failed to list matches: %v", userId, err)
		return "", runtime.NewError("failed to list matches", 13)
	}

	if len(matches) > 0 {
		resp := TournamentRaceResponse{MatchID: matches[0].MatchId, IsNew: false, Track: track}
		b, _ := json.Marshal(resp)
		return string(b), nil
	}

	matchId, err := nk.MatchCreate(ctx, MatchNameRace, map[string]interface{}{
		"tournament_id": request.TournamentID,
		"track":         track,
	})
	if err != nil {
		logger.Error("RpcTournamentRace [User:%s]: Failed to create match: %v", userId, err)
		return "", runtime.NewError("failed to create match", 13)
	}

	logger.Info("RpcTournamentRace [User:%s]: Created tournament match %s", userId, matchId)
	resp := TournamentRaceResponse{MatchID: matchId, IsNew: true, Track: track}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
