package domain

import (
	"errors"
	"sort"
)

var (
	// ErrNoTrack indicates a session created without a track.
	ErrNoTrack = errors.New("race needs a track")
	// ErrLapTarget indicates a non-positive lap target.
	ErrLapTarget = errors.New("lap target must be at least one")
	// ErrCountdown indicates a negative countdown.
	ErrCountdown = errors.New("countdown cannot be negative")
	// ErrFinishGrace indicates a negative finish grace window.
	ErrFinishGrace = errors.New("finish grace cannot be negative")
	// ErrTuning indicates handling values outside the usable range.
	ErrTuning = errors.New("tuning values out of range")
	// ErrNoEntrants indicates a session created with nobody in it.
	ErrNoEntrants = errors.New("race needs at least one entrant")
	// ErrDuplicateEntrant indicates the same user id entered twice.
	ErrDuplicateEntrant = errors.New("duplicate entrant user id")
	// ErrSpawnCapacity indicates more entrants than spawn slots.
	ErrSpawnCapacity = errors.New("track has fewer spawn slots than entrants")
	// ErrUnknownRacer indicates a user id that is not in the session.
	ErrUnknownRacer = errors.New("racer not in session")
	// ErrAlreadyPaused indicates a pause while already paused.
	ErrAlreadyPaused = errors.New("race already paused")
	// ErrNotPaused indicates a resume while not paused.
	ErrNotPaused = errors.New("race not paused")
	// ErrRaceOver indicates an operation on a finished session.
	ErrRaceOver = errors.New("race already finished")
)

// Rules fixes the parameters of one race session at creation time.
type Rules struct {
	LapTarget int
	// Countdown is the pending-phase delay in seconds before racing
	// begins.
	Countdown float64
	// FinishGrace is how long the rest of the field may keep racing
	// after the first finisher, in seconds. Zero closes the race at the
	// first finish.
	FinishGrace float64
	Tuning      Tuning
}

// CheckpointPass reports one racer advancing through their expected gate.
type CheckpointPass struct {
	UserID string
	Index  int // the gate just passed
	Lap    int // lap the racer is on while passing it
}

// LapComplete reports a full cycle through the checkpoint loop.
type LapComplete struct {
	UserID  string
	Lap     int     // laps completed so far
	LapTime float64 // seconds spent on this lap
	BestLap float64 // fastest lap so far
	Elapsed float64 // race clock at completion
}

// Finish is the race-result record for one racer crossing the line.
type Finish struct {
	UserID    string
	Placement int
	Laps      int
	Elapsed   float64
	BestLap   float64
}

// Result is the final classification of one racer when the session
// closes. Racers still on track when the race closes are marked DNF and
// ranked by progress behind every finisher.
type Result struct {
	UserID      string
	DisplayName string
	Bot         bool
	Placement   int
	Laps        int
	Elapsed     float64
	BestLap     float64
	DNF         bool
}

// TickOutcome reports everything that happened inside one Advance call,
// in the order it happened.
type TickOutcome struct {
	// Started is set on the single tick that flips pending to racing.
	Started           bool
	CheckpointsPassed []CheckpointPass
	LapsCompleted     []LapComplete
	Finishes          []Finish
	// RaceFinished is set on the single tick the session closes, with
	// Results carrying the full classification.
	RaceFinished bool
	Results      []Result
}

// RaceSession is the authoritative state of one race. It is an explicit
// object with no package-level state, so any number of sessions can run
// side by side and tests need no global reset. All mutation happens
// inside Advance and the setter methods, which the match loop calls from
// a single goroutine.
type RaceSession struct {
	Track     *Track
	Rules     Rules
	Phase     Phase
	Racers    map[string]*Racer
	Order     []string // join order, fixes integration and ranking ties
	Countdown float64
	Elapsed   float64
	Paused    bool

	FinishOrder []string
	Results     []Result

	graceDeadline float64
}

// NewRaceSession validates the configuration and places entrants on the
// spawn grid. Configuration problems are rejected here, never tolerated
// at tick time.
func NewRaceSession(track *Track, entrants []Entrant, rules Rules) (*RaceSession, error) {
	if track == nil {
		return nil, ErrNoTrack
	}
	if rules.LapTarget < 1 {
		return nil, ErrLapTarget
	}
	if rules.Countdown < 0 {
		return nil, ErrCountdown
	}
	if rules.FinishGrace < 0 {
		return nil, ErrFinishGrace
	}
	if err := rules.Tuning.Validate(); err != nil {
		return nil, err
	}
	if len(entrants) == 0 {
		return nil, ErrNoEntrants
	}
	if len(entrants) > len(track.Spawns) {
		return nil, ErrSpawnCapacity
	}

	s := &RaceSession{
		Track:     track,
		Rules:     rules,
		Phase:     PhasePending,
		Racers:    make(map[string]*Racer, len(entrants)),
		Order:     make([]string, 0, len(entrants)),
		Countdown: rules.Countdown,
	}

	for i, e := range entrants {
		if _, taken := s.Racers[e.UserID]; taken {
			return nil, ErrDuplicateEntrant
		}
		spawn := track.Spawns[i]
		r := &Racer{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Bot:         e.Bot,
			Seat:        i,
			Pos:         spawn.Pos,
			Heading:     spawn.Heading,
			inside:      make([]bool, track.CheckpointCount()),
		}
		// Seed occupancy from the spawn position: a racer standing in a
		// gate at the start must leave and re-enter for it to count.
		for _, idx := range track.CheckpointsContaining(r.Pos) {
			r.inside[idx] = true
		}
		s.Racers[e.UserID] = r
		s.Order = append(s.Order, e.UserID)
	}

	return s, nil
}

// SetInput records a human racer's control flags for the next tick.
func (s *RaceSession) SetInput(userID string, in Input) error {
	r, ok := s.Racers[userID]
	if !ok {
		return ErrUnknownRacer
	}
	r.Input = in
	return nil
}

// SetSteering records a bot racer's bearing and speed. The values take
// effect in the next Advance, so steering a paused session changes
// nothing until it resumes.
func (s *RaceSession) SetSteering(userID string, heading, speed float64) error {
	r, ok := s.Racers[userID]
	if !ok {
		return ErrUnknownRacer
	}
	r.steerHeading = heading
	r.steerSpeed = speed
	return nil
}

// Pause gates ticking. Opcodes keep draining while paused so a resume
// can still arrive; Advance simply does nothing.
func (s *RaceSession) Pause() error {
	if s.Phase == PhaseFinished {
		return ErrRaceOver
	}
	if s.Paused {
		return ErrAlreadyPaused
	}
	s.Paused = true
	return nil
}

// Resume lifts the pause gate.
func (s *RaceSession) Resume() error {
	if s.Phase == PhaseFinished {
		return ErrRaceOver
	}
	if !s.Paused {
		return ErrNotPaused
	}
	s.Paused = false
	return nil
}

// RemoveRacer drops a participant who left the match. Their results are
// kept if they already finished, otherwise they simply vanish from the
// field.
func (s *RaceSession) RemoveRacer(userID string) error {
	if _, ok := s.Racers[userID]; !ok {
		return ErrUnknownRacer
	}
	delete(s.Racers, userID)
	for i, id := range s.Order {
		if id == userID {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
	return nil
}

// Advance runs one tick of dt seconds and reports what happened. While
// paused or after the finish, nothing moves and the clock is frozen.
func (s *RaceSession) Advance(dt float64) TickOutcome {
	var out TickOutcome
	if dt <= 0 || s.Paused || s.Phase == PhaseFinished {
		return out
	}

	if s.Phase == PhasePending {
		s.Countdown -= dt
		if s.Countdown <= 0 {
			s.Countdown = 0
			s.Phase = PhaseRacing
			out.Started = true
		}
		return out
	}

	s.Elapsed += dt

	for _, id := range s.Order {
		r := s.Racers[id]
		if r.Finished {
			continue
		}
		StepRacer(r, dt, s.Rules.Tuning)
	}

	// Finished racers are ghosts: they no longer collide or progress.
	for i := 0; i < len(s.Order); i++ {
		a := s.Racers[s.Order[i]]
		if a.Finished {
			continue
		}
		for j := i + 1; j < len(s.Order); j++ {
			b := s.Racers[s.Order[j]]
			if b.Finished {
				continue
			}
			collideRacers(a, b)
		}
		for _, o := range s.Track.ObstaclesNear(a.Pos, RacerRadius) {
			collideObstacle(a, o)
		}
	}

	for _, id := range s.Order {
		r := s.Racers[id]
		if r.Finished {
			continue
		}
		s.progressRacer(r, &out)
	}

	s.maybeClose(&out)
	return out
}

// progressRacer updates edge-triggered gate occupancy for one racer and
// advances their expected index on a fresh entry into the expected gate.
// Entering any other gate, or staying inside one, never changes state.
func (s *RaceSession) progressRacer(r *Racer, out *TickOutcome) {
	hits := s.Track.CheckpointsContaining(r.Pos)
	now := make([]bool, len(r.inside))
	for _, idx := range hits {
		now[idx] = true
	}
	for idx := range now {
		if now[idx] && !r.inside[idx] && !r.Finished && idx == r.NextCheckpoint {
			s.advanceRacer(r, out)
		}
		r.inside[idx] = now[idx]
	}
}

// advanceRacer moves a racer's expected index forward by one, modulo the
// gate count, crediting laps on the wrap and the finish on the last lap.
func (s *RaceSession) advanceRacer(r *Racer, out *TickOutcome) {
	passed := r.NextCheckpoint
	r.NextCheckpoint++
	out.CheckpointsPassed = append(out.CheckpointsPassed, CheckpointPass{
		UserID: r.UserID,
		Index:  passed,
		Lap:    r.Lap,
	})
	if r.NextCheckpoint < s.Track.CheckpointCount() {
		return
	}

	r.NextCheckpoint = 0
	r.Lap++
	lapTime := s.Elapsed - r.lapStartedAt
	r.lapStartedAt = s.Elapsed
	if r.BestLap == 0 || lapTime < r.BestLap {
		r.BestLap = lapTime
	}
	out.LapsCompleted = append(out.LapsCompleted, LapComplete{
		UserID:  r.UserID,
		Lap:     r.Lap,
		LapTime: lapTime,
		BestLap: r.BestLap,
		Elapsed: s.Elapsed,
	})

	if r.Lap < s.Rules.LapTarget {
		return
	}

	r.Finished = true
	r.FinishedAt = s.Elapsed
	r.Vel = Vec2{}
	r.Placement = len(s.FinishOrder) + 1
	s.FinishOrder = append(s.FinishOrder, r.UserID)
	// Record the result now so a finisher who disconnects before the
	// session closes keeps their classification.
	s.Results = append(s.Results, Result{
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Bot:         r.Bot,
		Placement:   r.Placement,
		Laps:        r.Lap,
		Elapsed:     r.FinishedAt,
		BestLap:     r.BestLap,
	})
	if len(s.FinishOrder) == 1 {
		s.graceDeadline = s.Elapsed + s.Rules.FinishGrace
	}
	out.Finishes = append(out.Finishes, Finish{
		UserID:    r.UserID,
		Placement: r.Placement,
		Laps:      r.Lap,
		Elapsed:   r.FinishedAt,
		BestLap:   r.BestLap,
	})
}

// maybeClose flips the session to finished once every racer is done, or
// once the grace window after the first finisher runs out. It fires at
// most once.
func (s *RaceSession) maybeClose(out *TickOutcome) {
	if s.Phase != PhaseRacing || len(s.FinishOrder) == 0 {
		return
	}
	allDone := true
	for _, r := range s.Racers {
		if !r.Finished {
			allDone = false
			break
		}
	}
	if !allDone && s.Elapsed < s.graceDeadline {
		return
	}

	s.Phase = PhaseFinished
	s.rankStragglers()
	out.RaceFinished = true
	out.Results = s.Results
}

// rankStragglers classifies everyone still on track when the session
// closes: DNF, placed behind every finisher by progress, closest to
// their next gate first.
func (s *RaceSession) rankStragglers() {
	var rest []*Racer
	for _, id := range s.Order {
		r := s.Racers[id]
		if !r.Finished {
			rest = append(rest, r)
		}
	}
	n := s.Track.CheckpointCount()
	sort.SliceStable(rest, func(i, j int) bool {
		pi, pj := rest[i].Progress(n), rest[j].Progress(n)
		if pi != pj {
			return pi > pj
		}
		di := rest[i].Pos.DistanceTo(s.Track.Checkpoints[rest[i].NextCheckpoint].Pos)
		dj := rest[j].Pos.DistanceTo(s.Track.Checkpoints[rest[j].NextCheckpoint].Pos)
		return di < dj
	})
	for _, r := range rest {
		r.Placement = len(s.Results) + 1
		s.Results = append(s.Results, Result{
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Bot:         r.Bot,
			Placement:   r.Placement,
			Laps:        r.Lap,
			Elapsed:     s.Elapsed,
			BestLap:     r.BestLap,
			DNF:         true,
		})
	}
}

// Standings returns the live ordering of the field: finishers first in
// finish order, then active racers by progress.
func (s *RaceSession) Standings() []*Racer {
	ranked := make([]*Racer, 0, len(s.Racers))
	for _, id := range s.FinishOrder {
		if r, ok := s.Racers[id]; ok {
			ranked = append(ranked, r)
		}
	}
	var active []*Racer
	for _, id := range s.Order {
		r := s.Racers[id]
		if !r.Finished {
			active = append(active, r)
		}
	}
	n := s.Track.CheckpointCount()
	sort.SliceStable(active, func(i, j int) bool {
		pi, pj := active[i].Progress(n), active[j].Progress(n)
		if pi != pj {
			return pi > pj
		}
		di := active[i].Pos.DistanceTo(s.Track.Checkpoints[active[i].NextCheckpoint].Pos)
		dj := active[j].Pos.DistanceTo(s.Track.Checkpoints[active[j].NextCheckpoint].Pos)
		return di < dj
	})
	return append(ranked, active...)
}
