package domain

import "math"

// collisionRestitution is the bounce factor for racer and obstacle
// contacts.
const collisionRestitution = 0.4

// StepRacer advances one racer's movement by dt seconds.
//
// Human racers follow the control model: turn flags rotate the heading
// by TurnRate*dt, accelerate thrusts along the heading, brake thrusts
// against it at the weaker Braking magnitude, ambient drag decays
// velocity, and the result is clamped so no input combination exceeds
// MaxSpeed. With no input, velocity changes only by drag.
//
// Bot racers apply their recorded steering directly: heading is set to
// the steer bearing and velocity to the steer speed along it, capped at
// MaxSpeed. Drag does not apply to the fixed bot speed.
func StepRacer(r *Racer, dt float64, tn Tuning) {
	if r.Bot {
		r.Heading = r.steerHeading
		speed := math.Min(r.steerSpeed, tn.MaxSpeed)
		r.Vel = FromHeading(r.Heading).Scale(speed)
	} else {
		if r.Input.TurnLeft {
			r.Heading -= tn.TurnRate * dt
		}
		if r.Input.TurnRight {
			r.Heading += tn.TurnRate * dt
		}
		if r.Input.Accelerate {
			r.Vel = r.Vel.Add(FromHeading(r.Heading).Scale(tn.Acceleration * dt))
		}
		if r.Input.Brake {
			r.Vel = r.Vel.Add(FromHeading(r.Heading).Scale(-tn.Braking * dt))
		}
		decay := 1 - tn.Drag*dt
		if decay < 0 {
			decay = 0
		}
		r.Vel = r.Vel.Scale(decay).Limit(tn.MaxSpeed)
	}
	r.Pos = r.Pos.Add(r.Vel.Scale(dt))
}

// collideRacers separates two overlapping racers and exchanges an
// impulse along the contact normal.
func collideRacers(a, b *Racer) {
	delta := b.Pos.Sub(a.Pos)
	dist := delta.Length()
	minDist := RacerRadius * 2
	if dist >= minDist {
		return
	}

	normal := Vec2{X: 1}
	if dist > 0 {
		normal = delta.Scale(1 / dist)
	}

	overlap := minDist - dist
	a.Pos = a.Pos.Sub(normal.Scale(overlap / 2))
	b.Pos = b.Pos.Add(normal.Scale(overlap / 2))

	approach := b.Vel.Sub(a.Vel).Dot(normal)
	if approach >= 0 {
		return
	}
	impulse := -(1 + collisionRestitution) * approach / 2
	a.Vel = a.Vel.Sub(normal.Scale(impulse))
	b.Vel = b.Vel.Add(normal.Scale(impulse))
}

// collideObstacle pushes a racer out of a static obstacle and reflects
// the inbound velocity component.
func collideObstacle(r *Racer, o *Obstacle) {
	delta := r.Pos.Sub(o.Pos)
	dist := delta.Length()
	minDist := o.Radius + RacerRadius
	if dist >= minDist {
		return
	}

	normal := Vec2{X: 1}
	if dist > 0 {
		normal = delta.Scale(1 / dist)
	}

	r.Pos = o.Pos.Add(normal.Scale(minDist))
	inbound := r.Vel.Dot(normal)
	if inbound < 0 {
		r.Vel = r.Vel.Sub(normal.Scale((1 + collisionRestitution) * inbound))
	}
}
