package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"missionrace/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
)

type TrackLeaderboardRequest struct {
	Track  string `json:"track"`
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

type TrackLeaderboardResponse struct {
	Track      string            `json:"track"`
	Records    []json.RawMessage `json:"records"`
	NextCursor string            `json:"next_cursor"`
	PrevCursor string            `json:"prev_cursor"`
}

// rpcTrackLeaderboard pages one track's best-time board. Records pass
// through in Nakama's own record encoding so clients see rank, score and
// metadata exactly as the platform stores them.
func rpcTrackLeaderboard(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var request TrackLeaderboardRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			return "", runtime.NewError("invalid leaderboard request", 3)
		}
	}

	track := request.Track
	if track == "" {
		track = config.GetDefaultTrack()
	}
	if _, known := config.GetTrack(track); !known {
		return "", runtime.NewError("unknown track: "+track, 3)
	}

	limit := request.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	records, _, nextCursor, prevCursor, err := nk.LeaderboardRecordsList(ctx, trackLeaderboardID(track), nil, limit, request.Cursor, 0)
	if err != nil {
		logger.Error("RpcTrackLeaderboard: Failed to list records for %s: %v", track, err)
		return "", runtime.NewError("failed to list leaderboard records", 13)
	}

	marshaler := protojson.MarshalOptions{UseProtoNames: true}
	wireRecords := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		b, err := marshaler.Marshal(record)
		if err != nil {
			return "", runtime.NewError("failed to marshal leaderboard record", 13)
		}
		wireRecords = append(wireRecords, json.RawMessage(b))
	}

	resp := TrackLeaderboardResponse{
		Track:      track,
		Records:    wireRecords,
		NextCursor: nextCursor,
		PrevCursor: prevCursor,
	}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
