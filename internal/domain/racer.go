package domain

// Input is the directional control state reported by a client for one
// tick. Flags may be combined freely; the control model keeps any
// combination under the speed cap.
type Input struct {
	TurnLeft   bool
	TurnRight  bool
	Accelerate bool
	Brake      bool
}

// Entrant identifies a participant joining a race session.
type Entrant struct {
	UserID      string
	DisplayName string
	Bot         bool
}

// Racer holds the per-participant state inside a session.
type Racer struct {
	UserID      string
	DisplayName string
	Bot         bool
	Seat        int // spawn slot index, 0-based

	Pos     Vec2
	Heading float64
	Vel     Vec2
	Input   Input

	// NextCheckpoint is the only gate whose entry advances this racer.
	// Always in [0, checkpoint count).
	NextCheckpoint int
	Lap            int
	Finished       bool
	FinishedAt     float64 // race clock seconds at the finish line
	Placement      int     // 1-based finish order, 0 until assigned
	BestLap        float64 // fastest lap in seconds, 0 until a lap completes

	lapStartedAt float64
	// inside tracks region occupancy per checkpoint so progression is
	// edge-triggered: only a leave-then-enter of the expected gate counts.
	inside []bool
	// Bot steering recorded between ticks and applied by the next
	// physics step.
	steerHeading float64
	steerSpeed   float64
}

// Progress returns a single comparable score for live standings: laps,
// then gates passed within the lap.
func (r *Racer) Progress(checkpointCount int) int {
	return r.Lap*checkpointCount + r.NextCheckpoint
}
