package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"missionrace/internal/app"
	"missionrace/internal/bot"
	"missionrace/internal/config"
	"missionrace/internal/domain"
	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	// matchTickRate is how many times per second Nakama calls MatchLoop.
	// The race simulation steps by its inverse.
	matchTickRate = 20
	tickInterval  = 1.0 / matchTickRate

	// raceSeatCount is the grid capacity of one match.
	raceSeatCount = 6
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Seats        [raceSeatCount]string `json:"seats"`         // Array of user IDs, empty string means seat is empty
	OwnerSeat    int                   `json:"owner_seat"`    // Seat index of the match owner
	Tick         int64                 `json:"tick"`          // Current match loop tick
	TrackName    string                `json:"track_name"`    // Course raced by this match
	TournamentID string                `json:"tournament_id"` // Tournament this match scores into, empty for quick races

	BotsEnabled           bool  `json:"bots_enabled"`              // Whether AI racers are allowed
	BotAutoFillDelayTicks int64 `json:"bot_auto_fill_delay_ticks"` // Ticks to wait before auto-filling the grid
	AutoFillStartTick     int64 `json:"auto_fill_start_tick"`      // Tick when the short-grid wait began, 0 when idle

	Presences    map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	App          *app.Service                `json:"-"` // Race use-cases
	Session      *domain.RaceSession         `json:"-"` // Current race session (nil in lobby)
	Bots         map[string]*bot.Agent       `json:"-"` // Active bot agents by user ID
	Economy      ports.EconomyPort           `json:"-"` // Interface to Nakama wallet
	Leaderboards ports.LeaderboardPort       `json:"-"` // Interface to Nakama leaderboards
	Notifier     ports.NotifierPort          `json:"-"` // Interface to Nakama notifications
	Stats        ports.StatsPort             `json:"-"` // Interface to career stats storage
}

func (ms *MatchState) GetOpenSeatsCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat == "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetOccupiedSeatCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetHumanPlayerCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" && !isBotUserId(seat) {
			count++
		}
	}
	return count
}

// hasSeat reports whether the user already occupies a grid slot.
func (ms *MatchState) hasSeat(userId string) bool {
	for _, seat := range ms.Seats {
		if seat == userId {
			return true
		}
	}
	return false
}

// isBotUserId reports whether the given user id represents a bot seat.
func isBotUserId(userId string) bool {
	return bot.IsBot(userId)
}

// isHumanSeat reports whether the seat index belongs to a human player.
func isHumanSeat(seats []string, seatIndex int) bool {
	if seatIndex < 0 || seatIndex >= len(seats) {
		return false
	}
	userId := seats[seatIndex]
	return userId != "" && !isBotUserId(userId)
}

// findFirstHumanSeat returns the first seat index with a human occupant or -1 if none exist.
func findFirstHumanSeat(seats []string) int {
	for i, userId := range seats {
		if userId != "" && !isBotUserId(userId) {
			return i
		}
	}
	return -1
}

// seatOf returns the seat index occupied by the user, or -1.
func seatOf(seats []string, userId string) int {
	for i, seatUserId := range seats {
		if seatUserId == userId {
			return i
		}
	}
	return -1
}

// shouldTerminateNoHumans returns true when there are no humans in the match.
func shouldTerminateNoHumans(seats []string) bool {
	return findFirstHumanSeat(seats) == -1
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	// The loaders are once-guarded; these are no-ops when InitModule
	// already ran them.
	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}
	if err := config.LoadRaceConfig("data/race_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load race config: %v", err)
	}
	if err := config.LoadTracks("data/tracks.json"); err != nil {
		logger.Warn("MatchInit: Could not load track catalog: %v", err)
	}

	state := &MatchState{
		OwnerSeat:    -1,
		TrackName:    config.GetDefaultTrack(),
		BotsEnabled:  true,
		Presences:    make(map[string]runtime.Presence),
		App:          app.NewService(),
		Bots:         make(map[string]*bot.Agent),
		Economy:      NewNakamaEconomyAdapter(nk),
		Leaderboards: NewNakamaLeaderboardAdapter(nk),
		Notifier:     NewNakamaNotifierAdapter(nk),
		Stats:        NewNakamaStatsAdapter(nk),
	}

	if val, ok := params["track"].(string); ok && val != "" {
		if _, known := config.GetTrack(val); known {
			state.TrackName = val
		} else {
			logger.Warn("MatchInit: Unknown track %q requested, using %s.", val, state.TrackName)
		}
	}
	if val, ok := params["tournament_id"].(string); ok {
		state.TournamentID = val
	}

	autoFillDelaySec := config.GetBotAutoFillDelaySeconds()

	// Environment overrides for bot behaviour.
	env := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if val, ok := env["missionrace_bots_enabled"]; ok {
		state.BotsEnabled = val == "true"
	}
	if val, ok := env["missionrace_bot_auto_fill_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			autoFillDelaySec = i
		}
	}
	state.BotAutoFillDelayTicks = int64(autoFillDelaySec * matchTickRate)

	labelBytes, err := buildLabel(state)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	return state, matchTickRate, string(labelBytes)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// Allow join if there is an empty seat OR a bot to replace (only while
	// no race is running).
	if matchState.GetOpenSeatsCount() <= 0 {
		hasBot := false
		if matchState.Session == nil {
			for _, seat := range matchState.Seats {
				if isBotUserId(seat) {
					hasBot = true
					break
				}
			}
		}
		if !hasBot {
			return state, false, "Match full"
		}
	}

	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	joinedSeats := make(map[string]int)
	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p

		// Assign seat: try empty seats first, then bots (lobby only).
		assigned := -1
		for i, seatUserId := range matchState.Seats {
			if seatUserId == "" {
				matchState.Seats[i] = p.GetUserId()
				assigned = i
				break
			}
		}

		if assigned < 0 && matchState.Session == nil {
			for i, seatUserId := range matchState.Seats {
				if isBotUserId(seatUserId) {
					logger.Info("MatchJoin: Replacing bot %s with human %s in seat %d", seatUserId, p.GetUserId(), i)
					delete(matchState.Bots, seatUserId)
					matchState.Seats[i] = p.GetUserId()
					assigned = i
					break
				}
			}
		}

		if assigned < 0 {
			logger.Warn("MatchJoin: User %s joined but no seat (empty or bot) was available.", p.GetUserId())
			continue
		}
		joinedSeats[p.GetUserId()] = assigned
	}

	// Ensure owner seat is assigned to a human player only.
	if !isHumanSeat(matchState.Seats[:], matchState.OwnerSeat) {
		matchState.OwnerSeat = findFirstHumanSeat(matchState.Seats[:])
		if matchState.OwnerSeat >= 0 {
			logger.Debug("MatchJoin: Owner set to human seat %d.", matchState.OwnerSeat)
		}
	}

	for userId, seat := range joinedSeats {
		mh.broadcastEvent(ctx, matchState, dispatcher, logger, app.Event{
			Kind: app.EventRacerJoined,
			Payload: app.RacerJoinedPayload{
				UserID:      userId,
				DisplayName: displayNameFor(matchState, userId),
				Seat:        seat,
				Owner:       seat == matchState.OwnerSeat,
				Bot:         false,
			},
		})
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastLobbyState(ctx, matchState, dispatcher, logger)

	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	ownerLeft := false
	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		for i, seatUserId := range matchState.Seats {
			if seatUserId == p.GetUserId() {
				matchState.Seats[i] = ""
				logger.Debug("MatchLeave: User %s left, seat %d freed.", p.GetUserId(), i)

				if matchState.OwnerSeat == i {
					ownerLeft = true
				}
				break
			}
		}

		// Drop the racer from a running session. Finishers keep their
		// recorded result.
		if matchState.Session != nil {
			events, err := matchState.App.Leave(matchState.Session, p.GetUserId())
			if err != nil {
				logger.Debug("MatchLeave: User %s was not in the race session: %v", p.GetUserId(), err)
				continue
			}
			for _, ev := range events {
				mh.broadcastEvent(ctx, matchState, dispatcher, logger, ev)
			}
		}
	}

	newOwnerSeat := findFirstHumanSeat(matchState.Seats[:])
	if newOwnerSeat != matchState.OwnerSeat {
		matchState.OwnerSeat = newOwnerSeat
		if newOwnerSeat >= 0 {
			logger.Debug("MatchLeave: Owner set to human seat %d.", newOwnerSeat)
		} else if ownerLeft {
			logger.Debug("MatchLeave: Owner left and no human owner is available.")
		}
	}

	if shouldTerminateNoHumans(matchState.Seats[:]) {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastLobbyState(ctx, matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpStartRace:
			mh.handleStartRace(ctx, matchState, dispatcher, logger, msg)
		case OpInput:
			mh.handleInput(matchState, logger, msg)
		case OpPauseRace:
			mh.handlePause(ctx, matchState, dispatcher, logger, msg)
		case OpResumeRace:
			mh.handleResume(ctx, matchState, dispatcher, logger, msg)
		case OpRematch:
			mh.handleRematch(ctx, matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	if matchState.BotsEnabled {
		mh.processBots(matchState, dispatcher, logger)
	}

	mh.advanceRace(ctx, matchState, dispatcher, logger)

	return matchState
}

// processBots fills short lobbies after the configured delay and steers
// active bot racers toward their next gate.
func (mh *matchHandler) processBots(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	// 1. Auto-fill the grid when humans are waiting in the lobby.
	if state.Session == nil {
		if state.GetHumanPlayerCount() >= 1 && state.GetOpenSeatsCount() > 0 {
			if state.AutoFillStartTick == 0 {
				state.AutoFillStartTick = state.Tick
				logger.Debug("processBots: Short grid detected, starting auto-fill timer.")
			}

			if state.Tick-state.AutoFillStartTick >= state.BotAutoFillDelayTicks {
				added := false
				for i, seat := range state.Seats {
					if seat != "" {
						continue
					}
					identity := bot.GetBotIdentity(i)
					if state.hasSeat(identity.UserID) {
						continue
					}

					agent := bot.NewAgent(identity, config.GetBotBaseSpeed(), config.GetBotSpeedOffsetStep())
					state.Seats[i] = identity.UserID
					state.Bots[identity.UserID] = agent

					logger.Info("processBots: Added bot %s (%s) to seat %d", identity.DisplayName, identity.UserID, i)
					added = true
				}
				if added {
					mh.updateLabel(state, dispatcher, logger)
					mh.broadcastLobbyState(context.Background(), state, dispatcher, logger)
				}
				state.AutoFillStartTick = 0
			}
		} else {
			state.AutoFillStartTick = 0
		}
	}

	// 2. Steer bot racers. Each agent chases the gate the session expects
	// it to visit next; the steering lands in the following physics step.
	if state.Session != nil && !state.Session.Paused && state.Session.Phase != domain.PhaseFinished {
		for botID, agent := range state.Bots {
			r, ok := state.Session.Racers[botID]
			if !ok || r.Finished {
				continue
			}
			gate := state.Session.Track.Checkpoints[r.NextCheckpoint]
			heading, speed := agent.Steer(r.Pos, gate.Pos)
			if err := state.Session.SetSteering(botID, heading, speed); err != nil {
				logger.Error("processBots: Failed to steer bot %s: %v", botID, err)
			}
		}
	}
}

// advanceRace steps the session by one tick, dispatches whatever the step
// produced, then broadcasts the movement snapshot.
func (mh *matchHandler) advanceRace(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.Session == nil {
		return
	}

	events := state.App.Tick(state.Session, tickInterval)
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}

	// The race-finished event clears the session; no snapshot follows the
	// final classification.
	if state.Session != nil {
		mh.broadcastSnapshot(state, dispatcher, logger)
	}
}

func (mh *matchHandler) handleStartRace(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	var request startRaceRequest
	if len(msg.GetData()) > 0 {
		if err := json.Unmarshal(msg.GetData(), &request); err != nil {
			logger.Warn("StartRace: Invalid request from %s: %v", msg.GetUserId(), err)
			mh.sendError(state, dispatcher, logger, msg.GetUserId(), 400, "invalid start request")
			return
		}
	}
	mh.startRace(ctx, state, dispatcher, logger, msg.GetUserId(), request.Track)
}

// startRace validates the request, builds the session and announces the
// countdown. Rematches funnel through here as well.
func (mh *matchHandler) startRace(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, senderID, trackName string) {
	senderSeat := seatOf(state.Seats[:], senderID)
	logger.Info("StartRace: Request received from %s (seat=%d, owner_seat=%d, occupied=%d)", senderID, senderSeat, state.OwnerSeat, state.GetOccupiedSeatCount())

	if senderSeat < 0 || senderSeat != state.OwnerSeat {
		logger.Warn("StartRace: User %s tried to start a race but is not owner (owner_seat=%d)", senderID, state.OwnerSeat)
		mh.sendError(state, dispatcher, logger, senderID, 403, app.ErrNotOwner.Error())
		return
	}

	if state.Session != nil {
		logger.Warn("StartRace: User %s tried to start while a race is running.", senderID)
		mh.sendError(state, dispatcher, logger, senderID, 400, app.ErrRaceAlready.Error())
		return
	}

	name := trackName
	if name == "" {
		name = state.TrackName
	}
	trackCfg, known := config.GetTrack(name)
	if !known {
		logger.Warn("StartRace: Unknown track %q requested by %s.", name, senderID)
		mh.sendError(state, dispatcher, logger, senderID, 400, "unknown track: "+name)
		return
	}

	track, err := trackFromConfig(trackCfg)
	if err != nil {
		logger.Error("StartRace: Track %q failed validation: %v", name, err)
		mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
		return
	}

	entrants := buildEntrants(state)
	session, events, err := state.App.StartRace(track, entrants, rulesFromConfig())
	if err != nil {
		logger.Warn("StartRace: Failed to start race: %v", err)
		mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
		return
	}

	state.Session = session
	state.TrackName = name

	mh.updateLabel(state, dispatcher, logger)
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}

	logger.Info("StartRace: Race started on %s with %d racers.", name, len(entrants))
}

func (mh *matchHandler) handleInput(state *MatchState, logger runtime.Logger, msg runtime.MatchData) {
	if state.Session == nil {
		return
	}

	var request inputRequest
	if err := json.Unmarshal(msg.GetData(), &request); err != nil {
		logger.Debug("handleInput: Invalid input payload from %s: %v", msg.GetUserId(), err)
		return
	}

	// Input arrives every client frame; failures are logged, never
	// answered, so a stale client cannot flood itself with errors.
	err := state.App.ApplyInput(state.Session, msg.GetUserId(), domain.Input{
		TurnLeft:   request.TurnLeft,
		TurnRight:  request.TurnRight,
		Accelerate: request.Accelerate,
		Brake:      request.Brake,
	})
	if err != nil {
		logger.Debug("handleInput: Rejected input from %s: %v", msg.GetUserId(), err)
	}
}

func (mh *matchHandler) handlePause(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	if state.Session == nil {
		mh.sendError(state, dispatcher, logger, msg.GetUserId(), 400, app.ErrNoRace.Error())
		return
	}

	events, err := state.App.Pause(state.Session, msg.GetUserId(), mh.ownerUserId(state))
	if err != nil {
		logger.Warn("handlePause: User %s could not pause: %v", msg.GetUserId(), err)
		mh.sendError(state, dispatcher, logger, msg.GetUserId(), 400, err.Error())
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
}

func (mh *matchHandler) handleResume(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	if state.Session == nil {
		mh.sendError(state, dispatcher, logger, msg.GetUserId(), 400, app.ErrNoRace.Error())
		return
	}

	events, err := state.App.Resume(state.Session, msg.GetUserId(), mh.ownerUserId(state))
	if err != nil {
		logger.Warn("handleResume: User %s could not resume: %v", msg.GetUserId(), err)
		mh.sendError(state, dispatcher, logger, msg.GetUserId(), 400, err.Error())
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
}

func (mh *matchHandler) handleRematch(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	if state.Session != nil {
		mh.sendError(state, dispatcher, logger, msg.GetUserId(), 400, app.ErrRaceAlready.Error())
		return
	}
	mh.startRace(ctx, state, dispatcher, logger, msg.GetUserId(), "")
}

func (mh *matchHandler) ownerUserId(state *MatchState) string {
	if state.OwnerSeat < 0 || state.OwnerSeat >= len(state.Seats) {
		return ""
	}
	return state.Seats[state.OwnerSeat]
}

// buildEntrants assembles the starting grid from the occupied seats, in
// seat order.
func buildEntrants(state *MatchState) []domain.Entrant {
	entrants := make([]domain.Entrant, 0, raceSeatCount)
	for _, userId := range state.Seats {
		if userId == "" {
			continue
		}
		_, isAgent := state.Bots[userId]
		entrants = append(entrants, domain.Entrant{
			UserID:      userId,
			DisplayName: displayNameFor(state, userId),
			Bot:         isAgent || isBotUserId(userId),
		})
	}
	return entrants
}

// displayNameFor resolves a seat occupant's visible name: connected
// presence first, then the bot pool, then the raw id.
func displayNameFor(state *MatchState, userId string) string {
	if p, exists := state.Presences[userId]; exists {
		return p.GetUsername()
	}
	if name := bot.GetBotDisplayName(userId); name != "" {
		return name
	}
	if agent, ok := state.Bots[userId]; ok && agent.Name != "" {
		return agent.Name
	}
	return userId
}

// broadcastLobbyState sends the full seat roster to everyone. Balances
// are looked up for humans so the lobby can show race-coin totals.
func (mh *matchHandler) broadcastLobbyState(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	roster := make([]wireRosterSlot, 0, raceSeatCount)
	for i, userId := range state.Seats {
		if userId == "" {
			continue
		}

		slot := wireRosterSlot{
			UserID:      userId,
			DisplayName: displayNameFor(state, userId),
			Seat:        i,
			Owner:       i == state.OwnerSeat,
			Bot:         isBotUserId(userId),
		}
		if !slot.Bot && state.Economy != nil {
			balance, err := state.Economy.GetBalance(ctx, userId)
			if err != nil {
				logger.Debug("broadcastLobbyState: No balance for %s: %v", userId, err)
			} else {
				slot.Balance = balance
			}
		}
		roster = append(roster, slot)
	}

	payload := wireLobbyState{
		OwnerSeat: state.OwnerSeat,
		Roster:    roster,
	}
	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("broadcastLobbyState: Failed to marshal: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpLobbyState, bytes, nil, nil, true)
}

// broadcastSnapshot sends the per-tick movement state of the whole field.
func (mh *matchHandler) broadcastSnapshot(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	session := state.Session
	racers := make([]wireRacerState, 0, len(session.Order))
	for _, userId := range session.Order {
		r := session.Racers[userId]
		racers = append(racers, wireRacerState{
			UserID:         r.UserID,
			DisplayName:    r.DisplayName,
			Seat:           r.Seat,
			Bot:            r.Bot,
			X:              r.Pos.X,
			Y:              r.Pos.Y,
			Heading:        r.Heading,
			VX:             r.Vel.X,
			VY:             r.Vel.Y,
			Lap:            r.Lap,
			NextCheckpoint: r.NextCheckpoint,
			Finished:       r.Finished,
			Placement:      r.Placement,
		})
	}

	snapshot := wireSnapshot{
		Tick:      state.Tick,
		Phase:     string(session.Phase),
		Countdown: session.Countdown,
		Elapsed:   session.Elapsed,
		Paused:    session.Paused,
		Racers:    racers,
	}
	bytes, err := json.Marshal(snapshot)
	if err != nil {
		logger.Error("broadcastSnapshot: Failed to marshal: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpRaceSnapshot, bytes, nil, nil, true)
}

// broadcastEvent converts an app event to its wire form, dispatches it,
// and runs the platform side effects tied to it.
func (mh *matchHandler) broadcastEvent(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	var opCode int64
	var body interface{}

	switch ev.Kind {
	case app.EventRacerJoined:
		p := ev.Payload.(app.RacerJoinedPayload)
		opCode = OpRacerJoined
		body = wireRacerJoined{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Owner:       p.Owner,
			Bot:         p.Bot,
		}
	case app.EventRacerLeft:
		p := ev.Payload.(app.RacerLeftPayload)
		opCode = OpRacerLeft
		body = wireRacerLeft{UserID: p.UserID}
	case app.EventRaceCountdown:
		p := ev.Payload.(app.RaceCountdownPayload)
		opCode = OpRaceCountdown
		grid := make([]wireGridSlot, len(p.Grid))
		for i, slot := range p.Grid {
			grid[i] = wireGridSlot{
				UserID:      slot.UserID,
				DisplayName: slot.DisplayName,
				Seat:        slot.Seat,
				Bot:         slot.Bot,
			}
		}
		body = wireRaceCountdown{
			Track:     p.Track,
			LapTarget: p.LapTarget,
			Countdown: p.Countdown,
			Grid:      grid,
		}
	case app.EventRaceStarted:
		p := ev.Payload.(app.RaceStartedPayload)
		opCode = OpRaceStarted
		body = wireRaceStarted{Phase: string(p.Phase)}
	case app.EventCheckpointPassed:
		p := ev.Payload.(app.CheckpointPassedPayload)
		opCode = OpCheckpointPassed
		body = wireCheckpointPassed{
			UserID:    p.UserID,
			Index:     p.Index,
			Lap:       p.Lap,
			NextIndex: p.NextIndex,
		}
	case app.EventLapCompleted:
		p := ev.Payload.(app.LapCompletedPayload)
		opCode = OpLapCompleted
		body = wireLapCompleted{
			UserID:  p.UserID,
			Lap:     p.Lap,
			LapTime: p.LapTime,
			BestLap: p.BestLap,
			Elapsed: p.Elapsed,
		}
		mh.notifyLap(ctx, state, logger, p)
	case app.EventRacerFinished:
		p := ev.Payload.(app.RacerFinishedPayload)
		opCode = OpRacerFinished
		body = wireRacerFinished{
			UserID:    p.UserID,
			Placement: p.Placement,
			Laps:      p.Laps,
			Elapsed:   p.Elapsed,
			BestLap:   p.BestLap,
		}
		mh.recordFinish(ctx, state, logger, p)
	case app.EventRaceFinished:
		p := ev.Payload.(app.RaceFinishedPayload)
		opCode = OpRaceFinished
		body = wireRaceFinished{Results: resultsToWire(p.Results)}

		mh.settleRace(ctx, state, logger, p.Results)

		// Race over: back to the lobby with the same grid.
		state.Session = nil
		mh.updateLabel(state, dispatcher, logger)
	case app.EventRacePaused:
		p := ev.Payload.(app.RacePausedPayload)
		opCode = OpRacePaused
		body = wireRacePaused{ByUserID: p.ByUserID}
	case app.EventRaceResumed:
		p := ev.Payload.(app.RaceResumedPayload)
		opCode = OpRaceResumed
		body = wireRaceResumed{ByUserID: p.ByUserID}
	default:
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}

	bytes, err := json.Marshal(body)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	// Determine recipients (default to broadcast).
	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}

		// If we had intended recipients but none are connected (e.g. they
		// are bots), we MUST NOT broadcast to everyone else.
		if len(recipients) == 0 {
			return
		}
	}

	dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true)
}

// notifyLap drops a lap-complete note in the racer's inbox, carrying the
// lap and race clocks. Bots are skipped.
func (mh *matchHandler) notifyLap(ctx context.Context, state *MatchState, logger runtime.Logger, p app.LapCompletedPayload) {
	if state.Notifier == nil || isBotUserId(p.UserID) {
		return
	}
	if _, isAgent := state.Bots[p.UserID]; isAgent {
		return
	}

	title := fmt.Sprintf("Lap %d complete", p.Lap)
	description := fmt.Sprintf("%.3fs on %s.", p.LapTime, state.TrackName)
	data := map[string]interface{}{
		"lap":         p.Lap,
		"lap_time_ms": int64(math.Round(p.LapTime * 1000)),
		"elapsed_ms":  int64(math.Round(p.Elapsed * 1000)),
		"track":       state.TrackName,
	}
	if err := state.Notifier.Notify(ctx, []string{p.UserID}, title, description, data); err != nil {
		logger.Error("notifyLap: Failed to notify %s: %v", p.UserID, err)
	}
}

// recordFinish submits one finisher's time to the platform boards and
// congratulates them. Bots earn nothing and nobody writes home about them.
func (mh *matchHandler) recordFinish(ctx context.Context, state *MatchState, logger runtime.Logger, p app.RacerFinishedPayload) {
	if isBotUserId(p.UserID) {
		return
	}
	if _, isAgent := state.Bots[p.UserID]; isAgent {
		return
	}

	displayName := displayNameFor(state, p.UserID)
	timeMs := int64(math.Round(p.Elapsed * 1000))

	if state.Leaderboards != nil {
		if err := state.Leaderboards.SubmitTrackTime(ctx, state.TrackName, p.UserID, displayName, timeMs); err != nil {
			logger.Error("recordFinish: Failed to submit track time for %s: %v", p.UserID, err)
		}
		if state.TournamentID != "" {
			if err := state.Leaderboards.SubmitTournamentTime(ctx, state.TournamentID, p.UserID, displayName, timeMs); err != nil {
				logger.Error("recordFinish: Failed to submit tournament time for %s: %v", p.UserID, err)
			}
		}
	}

	if state.Notifier != nil {
		title := "Checkered flag!"
		description := fmt.Sprintf("You finished P%d on %s.", p.Placement, state.TrackName)
		data := map[string]interface{}{
			"placement": p.Placement,
			"track":     state.TrackName,
			"time_ms":   timeMs,
		}
		if err := state.Notifier.Notify(ctx, []string{p.UserID}, title, description, data); err != nil {
			logger.Error("recordFinish: Failed to notify %s: %v", p.UserID, err)
		}
	}
}

// settleRace pays the podium and folds the classification into career
// stats. All writes are best-effort; a platform failure never blocks the
// broadcast.
func (mh *matchHandler) settleRace(ctx context.Context, state *MatchState, logger runtime.Logger, results []domain.Result) {
	if state.Economy != nil {
		payouts := domain.PodiumPayouts(results, config.GetPodiumBasePurse())
		updates := make([]ports.WalletUpdate, 0, len(payouts))
		for userID, amount := range payouts {
			updates = append(updates, ports.WalletUpdate{
				UserID: userID,
				Amount: amount,
				Metadata: map[string]interface{}{
					"match_id": ctx.Value(runtime.RUNTIME_CTX_MATCH_ID),
					"reason":   "podium_payout",
				},
			})
		}
		if len(updates) > 0 {
			if err := state.Economy.UpdateBalances(ctx, updates); err != nil {
				logger.Error("settleRace: Failed to pay podium: %v", err)
			}
		}
	}

	if state.Stats != nil {
		for _, res := range results {
			if res.Bot {
				continue
			}
			placement := res.Placement
			if res.DNF {
				placement = 0
			}
			bestLapMs := int64(math.Round(res.BestLap * 1000))
			if err := state.Stats.RecordResult(ctx, res.UserID, placement, res.Laps, bestLapMs); err != nil {
				logger.Error("settleRace: Failed to record stats for %s: %v", res.UserID, err)
			}
		}
	}
}

// sendError sends a race error to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	payload := wireError{
		Code:    code,
		Message: message,
	}
	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal race error: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	dispatcher.BroadcastMessage(OpRaceError, bytes, []runtime.Presence{presence}, nil, true)
}

// buildLabel marshals the queryable match label for the current state.
// In the lobby, bot seats count as open because a joining human replaces
// the bot.
func buildLabel(state *MatchState) ([]byte, error) {
	open := state.GetOpenSeatsCount()
	labelState := labelStateLobby
	if state.Session != nil {
		labelState = labelStateRacing
	} else {
		open = len(state.Seats) - state.GetHumanPlayerCount()
	}
	mode := labelModeQuick
	if state.TournamentID != "" {
		mode = labelModeTournament
	}
	return json.Marshal(matchLabel{
		Open:         open,
		State:        labelState,
		Track:        state.TrackName,
		Mode:         mode,
		TournamentID: state.TournamentID,
	})
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	labelBytes, err := buildLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
