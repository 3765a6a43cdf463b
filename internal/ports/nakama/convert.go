package nakama

import (
	"missionrace/internal/config"
	"missionrace/internal/domain"
)

// trackFromConfig builds the immutable domain track from its catalog
// entry. Geometry problems surface as domain validation errors.
func trackFromConfig(tc *config.TrackConfig) (*domain.Track, error) {
	checkpoints := make([]domain.Checkpoint, len(tc.Checkpoints))
	for i, c := range tc.Checkpoints {
		checkpoints[i] = domain.Checkpoint{
			Index:  i,
			Pos:    domain.Vec2{X: c.X, Y: c.Y},
			Radius: c.Radius,
		}
	}

	spawns := make([]domain.Spawn, len(tc.Spawns))
	for i, s := range tc.Spawns {
		spawns[i] = domain.Spawn{
			Pos:     domain.Vec2{X: s.X, Y: s.Y},
			Heading: s.Heading,
		}
	}

	obstacles := make([]domain.Obstacle, len(tc.Obstacles))
	for i, o := range tc.Obstacles {
		obstacles[i] = domain.Obstacle{
			Pos:    domain.Vec2{X: o.X, Y: o.Y},
			Radius: o.Radius,
		}
	}

	return domain.NewTrack(tc.Name, checkpoints, spawns, obstacles)
}

// rulesFromConfig assembles session rules from the loaded race config,
// falling back to the stock handling model when tuning is absent.
func rulesFromConfig() domain.Rules {
	tuning := domain.DefaultTuning()
	if tc := config.GetTuning(); tc != nil {
		tuning = domain.Tuning{
			MaxSpeed:     tc.MaxSpeed,
			Acceleration: tc.Acceleration,
			Braking:      tc.Braking,
			TurnRate:     tc.TurnRate,
			Drag:         tc.Drag,
		}
	}
	return domain.Rules{
		LapTarget:   config.GetLapTarget(),
		Countdown:   config.GetCountdownSeconds(),
		FinishGrace: config.GetFinishGraceSeconds(),
		Tuning:      tuning,
	}
}

// resultsToWire converts the final classification for broadcast.
func resultsToWire(results []domain.Result) []wireResult {
	out := make([]wireResult, len(results))
	for i, r := range results {
		out[i] = wireResult{
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Bot:         r.Bot,
			Placement:   r.Placement,
			Laps:        r.Laps,
			Elapsed:     r.Elapsed,
			BestLap:     r.BestLap,
			DNF:         r.DNF,
		}
	}
	return out
}
