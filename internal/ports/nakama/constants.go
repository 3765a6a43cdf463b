package nakama

const (
	// MatchNameRace is the authoritative match handler name registered with Nakama.
	MatchNameRace = "race_match"

	// RpcQuickRace is the Nakama RPC id clients call to find or create a lobby-capable match.
	RpcQuickRace = "quick_race"
	// RpcCreateTournament creates a time-boxed tournament over one track.
	RpcCreateTournament = "create_tournament"
	// RpcListTournaments lists tournaments currently open for entry.
	RpcListTournaments = "list_tournaments"
	// RpcTournamentRace joins a tournament and finds or creates its match.
	RpcTournamentRace = "tournament_race"
	// RpcTrackLeaderboard pages the best-time board for one track.
	RpcTrackLeaderboard = "track_leaderboard"
	// RpcCareerStats returns the caller's lifetime racing record.
	RpcCareerStats = "career_stats"
	// RpcRaceInvite builds a join link and QR code for a match.
	RpcRaceInvite = "race_invite"
	// RpcVoiceToken signs a voice access token for the caller.
	RpcVoiceToken = "voice_token"

	// MatchLabelKey_OpenSeats is the label key quick race queries filter on.
	MatchLabelKey_OpenSeats = "open"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartRace  int64 = 1
	OpInput      int64 = 2
	OpPauseRace  int64 = 3
	OpResumeRace int64 = 4
	OpRematch    int64 = 5

	// Server -> Client events
	OpRacerJoined      int64 = 101
	OpRacerLeft        int64 = 102
	OpRaceCountdown    int64 = 103
	OpRaceStarted      int64 = 104
	OpRaceSnapshot     int64 = 105
	OpCheckpointPassed int64 = 106
	OpLapCompleted     int64 = 107
	OpRacerFinished    int64 = 108
	OpRaceFinished     int64 = 109
	OpRacePaused       int64 = 110
	OpRaceResumed      int64 = 111
	OpLobbyState       int64 = 112
	OpRaceError        int64 = 113
)

// trackLeaderboardID derives the per-track best-time board id.
func trackLeaderboardID(track string) string {
	return "race_best_" + track
}
