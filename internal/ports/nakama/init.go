package nakama

import (
	"context"
	"database/sql"
	"path/filepath"

	"missionrace/internal/app"
	"missionrace/internal/bot"
	"missionrace/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires configuration, RPCs, hooks and the match handler into
// the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	dataDir := "data"
	if val, ok := env["missionrace_data_dir"]; ok && val != "" {
		dataDir = val
	}

	// Failed loads are logged, not fatal: the getters fall back to safe
	// defaults and match creation reports missing tracks cleanly.
	if err := config.LoadRaceConfig(filepath.Join(dataDir, "race_config.json")); err != nil {
		logger.Error("InitModule: Failed to load race config: %v", err)
	}
	if err := config.LoadTracks(filepath.Join(dataDir, "tracks.json")); err != nil {
		logger.Error("InitModule: Failed to load track catalog: %v", err)
	}
	if err := bot.LoadIdentities(filepath.Join(dataDir, "bot_identities.json")); err != nil {
		logger.Error("InitModule: Failed to load bot identities: %v", err)
	}

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameRace, NewMatch); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateEmail(AfterAuthenticateEmail); err != nil {
		return err
	}

	// One ascending best-time board per track. Creation is idempotent.
	for _, name := range config.GetTrackNames() {
		if err := nk.LeaderboardCreate(ctx, trackLeaderboardID(name), true, "asc", "best", "", nil, true); err != nil {
			logger.Error("InitModule: Failed to create leaderboard for track %s: %v", name, err)
		}
	}

	bot.ProvisionBots(ctx, nk, logger)

	voiceService = app.NewVoiceService(
		env["missionrace_voice_secret"],
		env["missionrace_voice_issuer"],
		env["missionrace_voice_domain"],
	)

	logger.Info("Mission Race Go module loaded.")
	return nil
}
