package bot

import (
	"missionrace/internal/domain"
)

// Agent is an autonomous racer. It chases whatever gate the session says
// it should visit next and holds a fixed speed.
type Agent struct {
	ID          string
	Name        string
	BaseSpeed   float64
	SpeedOffset float64
}

// Steer returns the bearing from the agent's position to the target gate
// center and the speed to hold along it. Memoryless pure pursuit: no
// path planning, no avoidance; contacts are the physics step's problem.
func (a *Agent) Steer(from, target domain.Vec2) (heading, speed float64) {
	heading = target.Sub(from).Angle()
	speed = a.BaseSpeed + a.SpeedOffset
	return heading, speed
}
