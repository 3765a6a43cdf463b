package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"missionrace/internal/app"
	"missionrace/internal/bot"
	"missionrace/internal/config"
	"missionrace/internal/domain"
	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcastCount int
	labelUpdates   int
	lastOpCode     int64
	lastData       []byte
	lastLabel      string
	history        map[int64][][]byte
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcastCount++
	md.lastOpCode = opCode
	md.lastData = append([]byte(nil), data...)
	if md.history == nil {
		md.history = make(map[int64][][]byte)
	}
	md.history[opCode] = append(md.history[opCode], md.lastData)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

func (md *mockDispatcher) messages(opCode int64) [][]byte {
	return md.history[opCode]
}

type mockEconomy struct {
	balances map[string]int64
	calls    map[string]int
	updates  []ports.WalletUpdate
}

func (me *mockEconomy) GetBalance(ctx context.Context, userID string) (int64, error) {
	if me.calls == nil {
		me.calls = make(map[string]int)
	}
	me.calls[userID]++
	if balance, ok := me.balances[userID]; ok {
		return balance, nil
	}
	return 0, errors.New("balance not found")
}

func (me *mockEconomy) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	me.updates = append(me.updates, updates...)
	return nil
}

type boardSubmit struct {
	board       string
	userID      string
	displayName string
	timeMs      int64
}

type fakeLeaderboard struct {
	trackSubmits      []boardSubmit
	tournamentSubmits []boardSubmit
}

func (fl *fakeLeaderboard) SubmitTrackTime(ctx context.Context, track, userID, displayName string, timeMs int64) error {
	fl.trackSubmits = append(fl.trackSubmits, boardSubmit{track, userID, displayName, timeMs})
	return nil
}

func (fl *fakeLeaderboard) SubmitTournamentTime(ctx context.Context, tournamentID, userID, displayName string, timeMs int64) error {
	fl.tournamentSubmits = append(fl.tournamentSubmits, boardSubmit{tournamentID, userID, displayName, timeMs})
	return nil
}

type notice struct {
	userIDs []string
	title   string
}

type fakeNotifier struct {
	notices []notice
}

func (fn *fakeNotifier) Notify(ctx context.Context, userIDs []string, title, description string, data map[string]interface{}) error {
	fn.notices = append(fn.notices, notice{userIDs: append([]string(nil), userIDs...), title: title})
	return nil
}

type statRecord struct {
	userID    string
	placement int
	laps      int
	bestLapMs int64
}

type fakeStats struct {
	records []statRecord
}

func (fs *fakeStats) RecordResult(ctx context.Context, userID string, placement, laps int, bestLapMs int64) error {
	fs.records = append(fs.records, statRecord{userID, placement, laps, bestLapMs})
	return nil
}

func (fs *fakeStats) Career(ctx context.Context, userID string) (ports.CareerStats, error) {
	return ports.CareerStats{}, nil
}

func init() {
	// Load fixtures for the whole test binary.
	if err := bot.LoadIdentities("testdata/bot_identities.json"); err != nil {
		panic("Failed to load bot identities for tests: " + err.Error())
	}
	if err := config.LoadRaceConfig("testdata/race_config.json"); err != nil {
		panic("Failed to load race config for tests: " + err.Error())
	}
	if err := config.LoadTracks("testdata/tracks.json"); err != nil {
		panic("Failed to load track catalog for tests: " + err.Error())
	}
}

func newLobbyState(seats [raceSeatCount]string, ownerSeat int) *MatchState {
	return &MatchState{
		Seats:       seats,
		OwnerSeat:   ownerSeat,
		TrackName:   "test-loop",
		BotsEnabled: true,
		Presences:   make(map[string]runtime.Presence),
		App:         app.NewService(),
		Bots:        make(map[string]*bot.Agent),
	}
}

func TestFindFirstHumanSeat(t *testing.T) {
	bot1 := bot.GetBotIdentity(0).UserID
	bot2 := bot.GetBotIdentity(1).UserID

	tests := []struct {
		name  string
		seats []string
		want  int
	}{
		{
			name:  "FirstHumanAfterBot",
			seats: []string{bot1, "user-1", "", "", "", ""},
			want:  1,
		},
		{
			name:  "AllBots",
			seats: []string{bot1, bot2, "", "", "", ""},
			want:  -1,
		},
		{
			name:  "AllEmpty",
			seats: []string{"", "", "", "", "", ""},
			want:  -1,
		},
		{
			name:  "FirstHumanIsSeatZero",
			seats: []string{"user-1", bot1, "user-2", "", "", ""},
			want:  0,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if got := findFirstHumanSeat(test.seats); got != test.want {
				t.Fatalf("findFirstHumanSeat() = %d, want %d", got, test.want)
			}
		})
	}
}

func TestShouldTerminateNoHumans(t *testing.T) {
	bot1 := bot.GetBotIdentity(0).UserID
	bot2 := bot.GetBotIdentity(1).UserID
	bot3 := bot.GetBotIdentity(2).UserID
	bot4 := bot.GetBotIdentity(3).UserID

	tests := []struct {
		name  string
		seats []string
		want  bool
	}{
		{
			name:  "BotsOnly",
			seats: []string{bot1, bot2, bot3, bot4, "", ""},
			want:  true,
		},
		{
			name:  "BotsAndEmpty",
			seats: []string{bot1, "", bot3, "", "", ""},
			want:  true,
		},
		{
			name:  "HumansPresent",
			seats: []string{bot1, "user-1", "", "", "", ""},
			want:  false,
		},
		{
			name:  "AllEmpty",
			seats: []string{"", "", "", "", "", ""},
			want:  true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if got := shouldTerminateNoHumans(test.seats); got != test.want {
				t.Fatalf("shouldTerminateNoHumans() = %t, want %t", got, test.want)
			}
		})
	}
}

func TestBuildLabel(t *testing.T) {
	bot1 := bot.GetBotIdentity(1).UserID
	bot2 := bot.GetBotIdentity(2).UserID

	tests := []struct {
		name     string
		state    *MatchState
		expected string
	}{
		{
			name:     "LobbySoloHuman",
			state:    newLobbyState([raceSeatCount]string{"user-1"}, 0),
			expected: `{"open":5,"state":"lobby","track":"test-loop","mode":"quick"}`,
		},
		{
			name:     "LobbyBotSeatsCountAsOpen",
			state:    newLobbyState([raceSeatCount]string{"user-1", "user-2", bot1, bot2}, 0),
			expected: `{"open":4,"state":"lobby","track":"test-loop","mode":"quick"}`,
		},
		{
			name: "RacingFullGrid",
			state: func() *MatchState {
				s := newLobbyState([raceSeatCount]string{"user-1", bot1, bot2, "user-2", "user-3", "user-4"}, 0)
				s.Session = &domain.RaceSession{}
				return s
			}(),
			expected: `{"open":0,"state":"racing","track":"test-loop","mode":"quick"}`,
		},
		{
			name: "TournamentMode",
			state: func() *MatchState {
				s := newLobbyState([raceSeatCount]string{"user-1"}, 0)
				s.TournamentID = "race-tour-1"
				return s
			}(),
			expected: `{"open":5,"state":"lobby","track":"test-loop","mode":"tournament","tournament_id":"race-tour-1"}`,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got, err := buildLabel(test.state)
			if err != nil {
				t.Fatalf("buildLabel error: %v", err)
			}
			if string(got) != test.expected {
				t.Errorf("Got %s, want %s", got, test.expected)
			}
		})
	}
}

func TestProcessBots_FillsGridAfterDelay(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	economy := &mockEconomy{balances: map[string]int64{"user-1": 1200}}
	state := newLobbyState([raceSeatCount]string{"user-1"}, 0)
	state.Economy = economy
	state.BotAutoFillDelayTicks = 20
	state.Tick = 10

	// First pass arms the timer, nothing fills yet.
	handler.processBots(state, dispatcher, noopLogger{})
	if len(state.Bots) != 0 {
		t.Fatalf("Expected no bots before the delay, got %d", len(state.Bots))
	}
	if state.AutoFillStartTick != 10 {
		t.Fatalf("Expected auto-fill timer armed at tick 10, got %d", state.AutoFillStartTick)
	}

	// Delay elapsed: every empty seat fills.
	state.Tick = 30
	handler.processBots(state, dispatcher, noopLogger{})

	botCount := 0
	for _, seat := range state.Seats {
		if isBotUserId(seat) {
			botCount++
		}
	}
	if botCount != 5 {
		t.Fatalf("Expected 5 bots, got %d", botCount)
	}
	if state.GetOpenSeatsCount() != 0 {
		t.Fatalf("Expected 0 open seats after auto-fill, got %d", state.GetOpenSeatsCount())
	}
	if state.AutoFillStartTick != 0 {
		t.Fatalf("Expected auto-fill timer reset, got %d", state.AutoFillStartTick)
	}
	if dispatcher.labelUpdates == 0 {
		t.Fatalf("Expected label update after auto-fill")
	}

	lobbyMsgs := dispatcher.messages(OpLobbyState)
	if len(lobbyMsgs) == 0 {
		t.Fatalf("Expected lobby state broadcast after auto-fill")
	}
	var lobby wireLobbyState
	if err := json.Unmarshal(lobbyMsgs[len(lobbyMsgs)-1], &lobby); err != nil {
		t.Fatalf("Failed to unmarshal lobby state: %v", err)
	}
	if len(lobby.Roster) != raceSeatCount {
		t.Fatalf("Expected full roster, got %d slots", len(lobby.Roster))
	}
	for _, slot := range lobby.Roster {
		if slot.UserID == "user-1" {
			if slot.Balance != 1200 {
				t.Errorf("Expected human balance 1200, got %d", slot.Balance)
			}
			if !slot.Owner {
				t.Errorf("Expected seat 0 human to be owner")
			}
		} else if !slot.Bot {
			t.Errorf("Expected every other slot to be a bot, got %s", slot.UserID)
		} else if slot.Balance != 0 {
			t.Errorf("Expected bot balance 0, got %d", slot.Balance)
		}
	}

	// Balances are looked up for humans only.
	if economy.calls["user-1"] != 1 {
		t.Fatalf("Expected one balance lookup for human, got %d", economy.calls["user-1"])
	}
	for _, seat := range state.Seats {
		if isBotUserId(seat) && economy.calls[seat] != 0 {
			t.Fatalf("Expected no balance lookup for bot %s", seat)
		}
	}
}

func TestProcessBots_NoFillWithoutHumans(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	state := newLobbyState([raceSeatCount]string{}, -1)
	state.BotAutoFillDelayTicks = 0
	state.Tick = 50

	handler.processBots(state, dispatcher, noopLogger{})

	if len(state.Bots) != 0 {
		t.Fatalf("Expected no bots in an empty lobby, got %d", len(state.Bots))
	}
	if state.AutoFillStartTick != 0 {
		t.Fatalf("Expected auto-fill timer idle, got %d", state.AutoFillStartTick)
	}
}

func TestStartRace_RequiresOwner(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	state := newLobbyState([raceSeatCount]string{"user-1", "user-2"}, 0)

	handler.startRace(context.Background(), state, dispatcher, noopLogger{}, "user-2", "")

	if state.Session != nil {
		t.Fatal("Expected no session when a non-owner starts the race")
	}
	if len(dispatcher.messages(OpRaceCountdown)) != 0 {
		t.Fatal("Expected no countdown broadcast")
	}
}

func TestStartRace_UnknownTrack(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	state := newLobbyState([raceSeatCount]string{"user-1"}, 0)

	handler.startRace(context.Background(), state, dispatcher, noopLogger{}, "user-1", "no-such-track")

	if state.Session != nil {
		t.Fatal("Expected no session for an unknown track")
	}
}

func TestStartRace_RejectedWhileRacing(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	state := newLobbyState([raceSeatCount]string{"user-1"}, 0)
	state.Session = &domain.RaceSession{}

	handler.startRace(context.Background(), state, dispatcher, noopLogger{}, "user-1", "")

	if len(dispatcher.messages(OpRaceCountdown)) != 0 {
		t.Fatal("Expected no countdown broadcast while a race is running")
	}
}

// TestBotRace_RunsToCompletion drives a full race the way MatchLoop does:
// one idle human owner, five auto-filled bots, ticking until the session
// closes. The bots navigate the gate loop themselves; the human never
// moves and is classified DNF behind every finisher.
func TestBotRace_RunsToCompletion(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	economy := &mockEconomy{balances: map[string]int64{"user-1": 1200}}
	leaderboards := &fakeLeaderboard{}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}

	state := newLobbyState([raceSeatCount]string{"user-1"}, 0)
	state.Economy = economy
	state.Leaderboards = leaderboards
	state.Notifier = notifier
	state.Stats = stats
	state.BotAutoFillDelayTicks = 0
	state.Tick = 1

	ctx := context.Background()

	handler.processBots(state, dispatcher, noopLogger{})
	if len(state.Bots) != 5 {
		t.Fatalf("Expected 5 bots after auto-fill, got %d", len(state.Bots))
	}

	handler.startRace(ctx, state, dispatcher, noopLogger{}, "user-1", "")
	if state.Session == nil {
		t.Fatal("Expected a race session after the owner starts")
	}

	for i := 0; i < 1200 && state.Session != nil; i++ {
		state.Tick++
		handler.processBots(state, dispatcher, noopLogger{})
		handler.advanceRace(ctx, state, dispatcher, noopLogger{})
	}
	if state.Session != nil {
		t.Fatal("Race did not finish within the simulated window")
	}

	if got := len(dispatcher.messages(OpRaceCountdown)); got != 1 {
		t.Fatalf("Expected 1 countdown broadcast, got %d", got)
	}
	if got := len(dispatcher.messages(OpRaceStarted)); got != 1 {
		t.Fatalf("Expected 1 race started broadcast, got %d", got)
	}
	// 5 bots, 4 gates, 2 laps.
	if got := len(dispatcher.messages(OpCheckpointPassed)); got != 40 {
		t.Fatalf("Expected 40 checkpoint broadcasts, got %d", got)
	}
	if got := len(dispatcher.messages(OpLapCompleted)); got != 10 {
		t.Fatalf("Expected 10 lap broadcasts, got %d", got)
	}
	if got := len(dispatcher.messages(OpRacerFinished)); got != 5 {
		t.Fatalf("Expected 5 finish broadcasts, got %d", got)
	}
	if got := len(dispatcher.messages(OpRaceSnapshot)); got == 0 {
		t.Fatal("Expected movement snapshots during the race")
	}

	finished := dispatcher.messages(OpRaceFinished)
	if len(finished) != 1 {
		t.Fatalf("Expected 1 race finished broadcast, got %d", len(finished))
	}
	var classification wireRaceFinished
	if err := json.Unmarshal(finished[0], &classification); err != nil {
		t.Fatalf("Failed to unmarshal results: %v", err)
	}
	if len(classification.Results) != 6 {
		t.Fatalf("Expected 6 results, got %d", len(classification.Results))
	}
	for i, res := range classification.Results {
		if res.Placement != i+1 {
			t.Errorf("Result %d placement = %d, want %d", i, res.Placement, i+1)
		}
	}
	for _, res := range classification.Results[:5] {
		if !res.Bot || res.DNF || res.Laps != 2 {
			t.Errorf("Expected bot finisher with 2 laps, got %+v", res)
		}
	}
	last := classification.Results[5]
	if last.UserID != "user-1" || !last.DNF || last.Laps != 0 || last.Placement != 6 {
		t.Errorf("Expected idle human DNF in P6, got %+v", last)
	}

	// Platform side effects: DNF human earns no board entry, no payout,
	// no congratulation, but the race still lands in their career record.
	if len(leaderboards.trackSubmits) != 0 || len(leaderboards.tournamentSubmits) != 0 {
		t.Fatalf("Expected no leaderboard submits for bot finishers, got %d/%d",
			len(leaderboards.trackSubmits), len(leaderboards.tournamentSubmits))
	}
	if len(notifier.notices) != 0 {
		t.Fatalf("Expected no notifications for bot finishers, got %d", len(notifier.notices))
	}
	if len(economy.updates) != 0 {
		t.Fatalf("Expected no payouts for an all-bot podium, got %d", len(economy.updates))
	}
	if len(stats.records) != 1 {
		t.Fatalf("Expected 1 career record, got %d", len(stats.records))
	}
	rec := stats.records[0]
	if rec.userID != "user-1" || rec.placement != 0 || rec.laps != 0 || rec.bestLapMs != 0 {
		t.Fatalf("Expected DNF career record for user-1, got %+v", rec)
	}

	// Back to an open lobby with the same grid.
	var label matchLabel
	if err := json.Unmarshal([]byte(dispatcher.lastLabel), &label); err != nil {
		t.Fatalf("Failed to unmarshal final label: %v", err)
	}
	if label.State != labelStateLobby {
		t.Fatalf("Expected lobby label after the race, got %s", label.State)
	}
	if label.Open != 5 {
		t.Fatalf("Expected 5 joinable seats after the race, got %d", label.Open)
	}
}

func TestBroadcastEvent_RacerFinishedSideEffects(t *testing.T) {
	handler := &matchHandler{}
	ctx := context.Background()

	t.Run("HumanSubmitsAndGetsNotified", func(t *testing.T) {
		dispatcher := &mockDispatcher{}
		leaderboards := &fakeLeaderboard{}
		notifier := &fakeNotifier{}
		state := newLobbyState([raceSeatCount]string{"user-1"}, 0)
		state.TournamentID = "race-tour-9"
		state.Leaderboards = leaderboards
		state.Notifier = notifier

		handler.broadcastEvent(ctx, state, dispatcher, noopLogger{}, app.Event{
			Kind: app.EventRacerFinished,
			Payload: app.RacerFinishedPayload{
				UserID: "user-1", Placement: 2, Laps: 2, Elapsed: 72.25, BestLap: 35.5,
			},
		})

		if len(dispatcher.messages(OpRacerFinished)) != 1 {
			t.Fatal("Expected finish broadcast")
		}
		if len(leaderboards.trackSubmits) != 1 {
			t.Fatalf("Expected 1 track submit, got %d", len(leaderboards.trackSubmits))
		}
		submit := leaderboards.trackSubmits[0]
		if submit.board != "test-loop" || submit.userID != "user-1" || submit.timeMs != 72250 {
			t.Fatalf("Unexpected track submit: %+v", submit)
		}
		if len(leaderboards.tournamentSubmits) != 1 {
			t.Fatalf("Expected 1 tournament submit, got %d", len(leaderboards.tournamentSubmits))
		}
		if leaderboards.tournamentSubmits[0].board != "race-tour-9" {
			t.Fatalf("Unexpected tournament submit: %+v", leaderboards.tournamentSubmits[0])
		}
		if len(notifier.notices) != 1 {
			t.Fatalf("Expected 1 notification, got %d", len(notifier.notices))
		}
		if got := notifier.notices[0].userIDs; len(got) != 1 || got[0] != "user-1" {
			t.Fatalf("Expected notification to user-1, got %v", got)
		}
	})

	t.Run("BotSubmitsNothing", func(t *testing.T) {
		dispatcher := &mockDispatcher{}
		leaderboards := &fakeLeaderboard{}
		notifier := &fakeNotifier{}
		botID := bot.GetBotIdentity(0).UserID
		state := newLobbyState([raceSeatCount]string{"user-1", botID}, 0)
		state.Leaderboards = leaderboards
		state.Notifier = notifier

		handler.broadcastEvent(ctx, state, dispatcher, noopLogger{}, app.Event{
			Kind: app.EventRacerFinished,
			Payload: app.RacerFinishedPayload{
				UserID: botID, Placement: 1, Laps: 2, Elapsed: 68.1, BestLap: 33.0,
			},
		})

		if len(dispatcher.messages(OpRacerFinished)) != 1 {
			t.Fatal("Expected finish broadcast for the bot")
		}
		if len(leaderboards.trackSubmits) != 0 || len(notifier.notices) != 0 {
			t.Fatal("Expected no board submits or notifications for a bot")
		}
	})
}

func TestBroadcastEvent_LapCompletedNotifies(t *testing.T) {
	handler := &matchHandler{}
	ctx := context.Background()

	t.Run("HumanGetsLapNote", func(t *testing.T) {
		dispatcher := &mockDispatcher{}
		notifier := &fakeNotifier{}
		state := newLobbyState([raceSeatCount]string{"user-1"}, 0)
		state.Notifier = notifier

		handler.broadcastEvent(ctx, state, dispatcher, noopLogger{}, app.Event{
			Kind: app.EventLapCompleted,
			Payload: app.LapCompletedPayload{
				UserID: "user-1", Lap: 2, LapTime: 34.2, BestLap: 33.9, Elapsed: 68.4,
			},
		})

		if len(dispatcher.messages(OpLapCompleted)) != 1 {
			t.Fatal("Expected lap broadcast")
		}
		if len(notifier.notices) != 1 {
			t.Fatalf("Expected 1 notification, got %d", len(notifier.notices))
		}
		got := notifier.notices[0]
		if len(got.userIDs) != 1 || got.userIDs[0] != "user-1" {
			t.Fatalf("Expected notification to user-1, got %v", got.userIDs)
		}
		if got.title != "Lap 2 complete" {
			t.Fatalf("Unexpected title: %q", got.title)
		}
	})

	t.Run("BotLapStaysQuiet", func(t *testing.T) {
		dispatcher := &mockDispatcher{}
		notifier := &fakeNotifier{}
		botID := bot.GetBotIdentity(3).UserID
		state := newLobbyState([raceSeatCount]string{"user-1", botID}, 0)
		state.Notifier = notifier

		handler.broadcastEvent(ctx, state, dispatcher, noopLogger{}, app.Event{
			Kind: app.EventLapCompleted,
			Payload: app.LapCompletedPayload{
				UserID: botID, Lap: 1, LapTime: 31.7, BestLap: 31.7, Elapsed: 31.7,
			},
		})

		if len(dispatcher.messages(OpLapCompleted)) != 1 {
			t.Fatal("Expected lap broadcast for the bot")
		}
		if len(notifier.notices) != 0 {
			t.Fatal("Expected no notification for a bot lap")
		}
	})
}

func TestBroadcastEvent_RaceFinishedSettles(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	economy := &mockEconomy{}
	stats := &fakeStats{}
	botID := bot.GetBotIdentity(1).UserID

	state := newLobbyState([raceSeatCount]string{"user-1", botID, "user-2", "user-3"}, 0)
	state.Session = &domain.RaceSession{}
	state.Economy = economy
	state.Stats = stats

	results := []domain.Result{
		{UserID: "user-1", Placement: 1, Laps: 2, Elapsed: 70.0, BestLap: 34.2},
		{UserID: botID, Bot: true, Placement: 2, Laps: 2, Elapsed: 71.0, BestLap: 35.0},
		{UserID: "user-2", Placement: 3, Laps: 2, Elapsed: 74.0, BestLap: 36.1},
		{UserID: "user-3", Placement: 4, Laps: 1, Elapsed: 76.0, BestLap: 38.9, DNF: true},
	}

	handler.broadcastEvent(context.Background(), state, dispatcher, noopLogger{}, app.Event{
		Kind:    app.EventRaceFinished,
		Payload: app.RaceFinishedPayload{Results: results},
	})

	if state.Session != nil {
		t.Fatal("Expected session cleared after the race finished event")
	}
	if len(dispatcher.messages(OpRaceFinished)) != 1 {
		t.Fatal("Expected race finished broadcast")
	}
	if dispatcher.labelUpdates == 0 {
		t.Fatal("Expected label update back to lobby")
	}

	// Podium payouts: P1 human 3x purse, P3 human 1x purse. The bot in
	// P2 and the DNF earn nothing.
	paid := make(map[string]int64)
	for _, update := range economy.updates {
		paid[update.UserID] += update.Amount
	}
	if len(paid) != 2 {
		t.Fatalf("Expected 2 payout recipients, got %d", len(paid))
	}
	if paid["user-1"] != 300 {
		t.Errorf("Expected user-1 payout 300, got %d", paid["user-1"])
	}
	if paid["user-2"] != 100 {
		t.Errorf("Expected user-2 payout 100, got %d", paid["user-2"])
	}

	// Career records for humans only, DNF recorded as placement 0.
	want := []statRecord{
		{userID: "user-1", placement: 1, laps: 2, bestLapMs: 34200},
		{userID: "user-2", placement: 3, laps: 2, bestLapMs: 36100},
		{userID: "user-3", placement: 0, laps: 1, bestLapMs: 38900},
	}
	if len(stats.records) != len(want) {
		t.Fatalf("Expected %d career records, got %d", len(want), len(stats.records))
	}
	for i, rec := range stats.records {
		if rec != want[i] {
			t.Errorf("Career record %d = %+v, want %+v", i, rec, want[i])
		}
	}
}

func TestMatchLeave_FreesSeatAndReassignsOwner(t *testing.T) {
	handler := &matchHandler{}
	dispatcher := &mockDispatcher{}
	state := newLobbyState([raceSeatCount]string{"user-1", "user-2"}, 0)

	// Simulate the seat bookkeeping MatchLeave performs for user-1.
	delete(state.Presences, "user-1")
	state.Seats[0] = ""
	if newOwner := findFirstHumanSeat(state.Seats[:]); newOwner != state.OwnerSeat {
		state.OwnerSeat = newOwner
	}

	if state.OwnerSeat != 1 {
		t.Fatalf("Expected ownership to pass to seat 1, got %d", state.OwnerSeat)
	}
	if shouldTerminateNoHumans(state.Seats[:]) {
		t.Fatal("Expected match to continue with a human present")
	}

	// The remaining human can now start a race.
	handler.startRace(context.Background(), state, dispatcher, noopLogger{}, "user-2", "")
	if state.Session == nil {
		t.Fatal("Expected new owner to be able to start the race")
	}
}
