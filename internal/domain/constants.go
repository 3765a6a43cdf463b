package domain

// Phase represents the lifecycle stage of a race session.
type Phase string

const (
	// PhasePending is the countdown window between session creation and
	// the green light.
	PhasePending Phase = "pending"
	// PhaseRacing is the active state in which racers move and progress.
	PhaseRacing Phase = "racing"
	// PhaseFinished is the terminal state after results are fixed.
	PhaseFinished Phase = "finished"
)

const (
	// DefaultLapTarget is the lap count used when the session rules do
	// not override it.
	DefaultLapTarget = 3

	// DefaultCountdown is the pre-race delay in seconds.
	DefaultCountdown = 3.0

	// DefaultFinishGrace is how long, in seconds, the rest of the field
	// may keep racing after the first finisher crosses the line.
	DefaultFinishGrace = 30.0

	// RacerRadius is the collision radius of a racer in world units.
	RacerRadius = 14.0
)

// Tuning carries the handling parameters shared by every racer in a
// session. Values come from server config and are fixed at creation.
type Tuning struct {
	// MaxSpeed caps velocity magnitude in world units per second.
	MaxSpeed float64
	// Acceleration is thrust applied along the heading per second.
	Acceleration float64
	// Braking is reverse thrust per second, weaker than Acceleration.
	Braking float64
	// TurnRate is heading change in radians per second.
	TurnRate float64
	// Drag is the ambient velocity decay fraction per second.
	Drag float64
}

// DefaultTuning returns the stock handling model.
func DefaultTuning() Tuning {
	return Tuning{
		MaxSpeed:     420,
		Acceleration: 260,
		Braking:      180,
		TurnRate:     2.6,
		Drag:         0.6,
	}
}

// Validate reports whether the tuning values form a usable handling
// model.
func (t Tuning) Validate() error {
	if t.MaxSpeed <= 0 || t.Acceleration <= 0 || t.TurnRate <= 0 {
		return ErrTuning
	}
	if t.Braking < 0 || t.Drag < 0 {
		return ErrTuning
	}
	return nil
}
