package app

import (
	"errors"

	"missionrace/internal/domain"
)

// Service contains the race use-cases operating on domain sessions. It
// holds no state of its own; every method works on the session it is
// handed, so one Service can drive any number of matches.
type Service struct{}

// NewService constructs the race use-case service.
func NewService() *Service {
	return &Service{}
}

var (
	ErrNotOwner     = errors.New("actor is not match owner")
	ErrNoRace       = errors.New("no race session in progress")
	ErrRaceAlready  = errors.New("race session already exists")
	ErrTooFewRacers = errors.New("not enough racers to start")
)

// StartRace builds the race session for the given grid and emits the
// countdown event. Configuration problems surface here, at creation
// time, as domain errors.
func (s *Service) StartRace(track *domain.Track, entrants []domain.Entrant, rules domain.Rules) (*domain.RaceSession, []Event, error) {
	if len(entrants) < MinRacersToStart {
		return nil, nil, ErrTooFewRacers
	}

	session, err := domain.NewRaceSession(track, entrants, rules)
	if err != nil {
		return nil, nil, err
	}

	grid := make([]GridSlot, 0, len(session.Order))
	for _, userID := range session.Order {
		r := session.Racers[userID]
		grid = append(grid, GridSlot{
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Seat:        r.Seat,
			Bot:         r.Bot,
		})
	}

	events := []Event{{
		Kind: EventRaceCountdown,
		Payload: RaceCountdownPayload{
			Track:     track.Name,
			LapTarget: rules.LapTarget,
			Countdown: rules.Countdown,
			Grid:      grid,
		},
	}}

	return session, events, nil
}

// ApplyInput records a racer's control flags for the next tick.
func (s *Service) ApplyInput(session *domain.RaceSession, userID string, in domain.Input) error {
	if session == nil {
		return ErrNoRace
	}
	return session.SetInput(userID, in)
}

// Pause freezes the session. Only the match owner may pause.
func (s *Service) Pause(session *domain.RaceSession, actorUserID, ownerUserID string) ([]Event, error) {
	if session == nil {
		return nil, ErrNoRace
	}
	if actorUserID != ownerUserID {
		return nil, ErrNotOwner
	}
	if err := session.Pause(); err != nil {
		return nil, err
	}
	return []Event{{
		Kind:    EventRacePaused,
		Payload: RacePausedPayload{ByUserID: actorUserID},
	}}, nil
}

// Resume lifts the pause gate. Only the match owner may resume.
func (s *Service) Resume(session *domain.RaceSession, actorUserID, ownerUserID string) ([]Event, error) {
	if session == nil {
		return nil, ErrNoRace
	}
	if actorUserID != ownerUserID {
		return nil, ErrNotOwner
	}
	if err := session.Resume(); err != nil {
		return nil, err
	}
	return []Event{{
		Kind:    EventRaceResumed,
		Payload: RaceResumedPayload{ByUserID: actorUserID},
	}}, nil
}

// Leave drops a racer who left the match mid-session.
func (s *Service) Leave(session *domain.RaceSession, userID string) ([]Event, error) {
	if session == nil {
		return nil, ErrNoRace
	}
	if err := session.RemoveRacer(userID); err != nil {
		return nil, err
	}
	return []Event{{
		Kind:    EventRacerLeft,
		Payload: RacerLeftPayload{UserID: userID},
	}}, nil
}

// Tick advances the session one step and converts the outcome into
// dispatchable events, in the order the session produced them.
func (s *Service) Tick(session *domain.RaceSession, dt float64) []Event {
	if session == nil {
		return nil
	}
	outcome := session.Advance(dt)

	var events []Event
	if outcome.Started {
		events = append(events, Event{
			Kind:    EventRaceStarted,
			Payload: RaceStartedPayload{Phase: session.Phase},
		})
	}
	for _, pass := range outcome.CheckpointsPassed {
		next := 0
		if r, ok := session.Racers[pass.UserID]; ok {
			next = r.NextCheckpoint
		}
		events = append(events, Event{
			Kind: EventCheckpointPassed,
			Payload: CheckpointPassedPayload{
				UserID:    pass.UserID,
				Index:     pass.Index,
				Lap:       pass.Lap,
				NextIndex: next,
			},
		})
	}
	for _, lap := range outcome.LapsCompleted {
		events = append(events, Event{
			Kind: EventLapCompleted,
			Payload: LapCompletedPayload{
				UserID:  lap.UserID,
				Lap:     lap.Lap,
				LapTime: lap.LapTime,
				BestLap: lap.BestLap,
				Elapsed: lap.Elapsed,
			},
		})
	}
	for _, fin := range outcome.Finishes {
		events = append(events, Event{
			Kind: EventRacerFinished,
			Payload: RacerFinishedPayload{
				UserID:    fin.UserID,
				Placement: fin.Placement,
				Laps:      fin.Laps,
				Elapsed:   fin.Elapsed,
				BestLap:   fin.BestLap,
			},
		})
	}
	if outcome.RaceFinished {
		events = append(events, Event{
			Kind:    EventRaceFinished,
			Payload: RaceFinishedPayload{Results: outcome.Results},
		})
	}
	return events
}
