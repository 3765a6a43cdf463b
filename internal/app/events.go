package app

import "missionrace/internal/domain"

// EventKind identifies emitted race events for Nakama dispatch.
type EventKind string

const (
	EventRacerJoined      EventKind = "racer_joined"
	EventRacerLeft        EventKind = "racer_left"
	EventRaceCountdown    EventKind = "race_countdown"
	EventRaceStarted      EventKind = "race_started"
	EventCheckpointPassed EventKind = "checkpoint_passed"
	EventLapCompleted     EventKind = "lap_completed"
	EventRacerFinished    EventKind = "racer_finished"
	EventRaceFinished     EventKind = "race_finished"
	EventRacePaused       EventKind = "race_paused"
	EventRaceResumed      EventKind = "race_resumed"
)

// Event is a race event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type RacerJoinedPayload struct {
	UserID      string
	DisplayName string
	Seat        int
	Owner       bool
	Bot         bool
}

type RacerLeftPayload struct {
	UserID string
}

// GridSlot describes one occupied grid position in countdown payloads.
type GridSlot struct {
	UserID      string
	DisplayName string
	Seat        int
	Bot         bool
}

type RaceCountdownPayload struct {
	Track     string
	LapTarget int
	Countdown float64
	Grid      []GridSlot
}

type RaceStartedPayload struct {
	Phase domain.Phase
}

type CheckpointPassedPayload struct {
	UserID    string
	Index     int
	Lap       int
	NextIndex int
}

type LapCompletedPayload struct {
	UserID  string
	Lap     int
	LapTime float64
	BestLap float64
	Elapsed float64
}

type RacerFinishedPayload struct {
	UserID    string
	Placement int
	Laps      int
	Elapsed   float64
	BestLap   float64
}

type RaceFinishedPayload struct {
	Results []domain.Result
}

type RacePausedPayload struct {
	ByUserID string
}

type RaceResumedPayload struct {
	ByUserID string
}
