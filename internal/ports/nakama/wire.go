package nakama

// Wire payloads exchanged with clients over match data messages. The
// domain and app layers stay transport-agnostic; every JSON tag in the
// protocol lives here.

// matchLabel is the JSON document queryable through Nakama match listing.
type matchLabel struct {
	Open         int    `json:"open"`
	State        string `json:"state"`
	Track        string `json:"track"`
	Mode         string `json:"mode"`
	TournamentID string `json:"tournament_id,omitempty"`
}

// Label state and mode values.
const (
	labelStateLobby  = "lobby"
	labelStateRacing = "racing"

	labelModeQuick      = "quick"
	labelModeTournament = "tournament"
)

// startRaceRequest is the OpStartRace payload. Track is optional; the
// match keeps its current course when it is empty.
type startRaceRequest struct {
	Track string `json:"track"`
}

// inputRequest is the OpInput payload, sent every client frame.
type inputRequest struct {
	TurnLeft   bool `json:"turn_left"`
	TurnRight  bool `json:"turn_right"`
	Accelerate bool `json:"accelerate"`
	Brake      bool `json:"brake"`
}

type wireRosterSlot struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
	Owner       bool   `json:"owner"`
	Bot         bool   `json:"bot"`
	Balance     int64  `json:"balance"`
}

// wireLobbyState is the OpLobbyState payload: the full seat roster.
type wireLobbyState struct {
	OwnerSeat int              `json:"owner_seat"`
	Roster    []wireRosterSlot `json:"roster"`
}

type wireRacerJoined struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
	Owner       bool   `json:"owner"`
	Bot         bool   `json:"bot"`
}

type wireRacerLeft struct {
	UserID string `json:"user_id"`
}

type wireGridSlot struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
	Bot         bool   `json:"bot"`
}

type wireRaceCountdown struct {
	Track     string         `json:"track"`
	LapTarget int            `json:"lap_target"`
	Countdown float64        `json:"countdown"`
	Grid      []wireGridSlot `json:"grid"`
}

type wireRaceStarted struct {
	Phase string `json:"phase"`
}

type wireCheckpointPassed struct {
	UserID    string `json:"user_id"`
	Index     int    `json:"index"`
	Lap       int    `json:"lap"`
	NextIndex int    `json:"next_index"`
}

type wireLapCompleted struct {
	UserID  string  `json:"user_id"`
	Lap     int     `json:"lap"`
	LapTime float64 `json:"lap_time"`
	BestLap float64 `json:"best_lap"`
	Elapsed float64 `json:"elapsed"`
}

type wireRacerFinished struct {
	UserID    string  `json:"user_id"`
	Placement int     `json:"placement"`
	Laps      int     `json:"laps"`
	Elapsed   float64 `json:"elapsed"`
	BestLap   float64 `json:"best_lap"`
}

type wireResult struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Bot         bool    `json:"bot"`
	Placement   int     `json:"placement"`
	Laps        int     `json:"laps"`
	Elapsed     float64 `json:"elapsed"`
	BestLap     float64 `json:"best_lap"`
	DNF         bool    `json:"dnf"`
}

type wireRaceFinished struct {
	Results []wireResult `json:"results"`
}

type wireRacePaused struct {
	ByUserID string `json:"by_user_id"`
}

type wireRaceResumed struct {
	ByUserID string `json:"by_user_id"`
}

// wireRacerState is one racer inside the per-tick snapshot.
type wireRacerState struct {
	UserID         string  `json:"user_id"`
	DisplayName    string  `json:"display_name"`
	Seat           int     `json:"seat"`
	Bot            bool    `json:"bot"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Heading        float64 `json:"heading"`
	VX             float64 `json:"vx"`
	VY             float64 `json:"vy"`
	Lap            int     `json:"lap"`
	NextCheckpoint int     `json:"next_checkpoint"`
	Finished       bool    `json:"finished"`
	Placement      int     `json:"placement"`
}

// wireSnapshot is the OpRaceSnapshot payload broadcast every tick while a
// session exists.
type wireSnapshot struct {
	Tick      int64            `json:"tick"`
	Phase     string           `json:"phase"`
	Countdown float64          `json:"countdown"`
	Elapsed   float64          `json:"elapsed"`
	Paused    bool             `json:"paused"`
	Racers    []wireRacerState `json:"racers"`
}

// wireError is the OpRaceError payload sent to the offending client only.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
