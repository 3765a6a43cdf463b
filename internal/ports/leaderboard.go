package ports

import "context"

// LeaderboardPort submits race times to the hosted ranking service.
type LeaderboardPort interface {
	// SubmitTrackTime records a finisher's total race time, in
	// milliseconds, on the per-track best-time board.
	SubmitTrackTime(ctx context.Context, track, userID, displayName string, timeMs int64) error

	// SubmitTournamentTime records the same time against an active
	// tournament.
	SubmitTournamentTime(ctx context.Context, tournamentID, userID, displayName string, timeMs int64) error
}
