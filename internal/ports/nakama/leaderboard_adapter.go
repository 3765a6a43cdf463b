package nakama

import (
	"context"
	"fmt"

	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaLeaderboardAdapter implements ports.LeaderboardPort on Nakama's
// leaderboard and tournament records. Boards are ascending best-time, so
// the score is the race time in milliseconds.
type NakamaLeaderboardAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaLeaderboardAdapter creates a new leaderboard adapter.
func NewNakamaLeaderboardAdapter(nk runtime.NakamaModule) *NakamaLeaderboardAdapter {
	return &NakamaLeaderboardAdapter{nk: nk}
}

func (a *NakamaLeaderboardAdapter) SubmitTrackTime(ctx context.Context, track, userID, displayName string, timeMs int64) error {
	_, err := a.nk.LeaderboardRecordWrite(ctx, trackLeaderboardID(track), userID, displayName, timeMs, 0, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to write leaderboard record: %w", err)
	}
	return nil
}

func (a *NakamaLeaderboardAdapter) SubmitTournamentTime(ctx context.Context, tournamentID, userID, displayName string, timeMs int64) error {
	_, err := a.nk.TournamentRecordWrite(ctx, tournamentID, userID, displayName, timeMs, 0, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to write tournament record: %w", err)
	}
	return nil
}

var _ ports.LeaderboardPort = (*NakamaLeaderboardAdapter)(nil)
