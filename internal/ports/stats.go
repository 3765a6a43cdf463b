package ports

import "context"

// CareerStats is the lifetime racing record kept per user.
type CareerStats struct {
	Races     int   `json:"races"`
	Wins      int   `json:"wins"`
	Podiums   int   `json:"podiums"`
	Laps      int   `json:"laps"`
	BestLapMs int64 `json:"best_lap_ms"`
}

// StatsPort persists and reads career stats.
type StatsPort interface {
	// RecordResult folds one race classification into the user's career
	// record. placement is 1-based, 0 for a DNF. bestLapMs is 0 when the
	// racer never completed a lap.
	RecordResult(ctx context.Context, userID string, placement, laps int, bestLapMs int64) error

	// Career returns the user's current record, zero-valued when the
	// user has never raced.
	Career(ctx context.Context, userID string) (CareerStats, error)
}
