package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

type BotIdentity struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Difficulty  string `json:"difficulty"` // "rookie", "pro", "legend"
	LiveryIndex int    `json:"livery_index"`
}

var (
	botIdentities     []BotIdentity
	botIDMap          map[string]bool
	botDisplayNameMap map[string]string
	botConfigMap      map[string]BotIdentity
	loadOnce          sync.Once
	provisionOnce     sync.Once
	loadErr           error
)

// LoadIdentities loads the bot profiles from the given path.
func LoadIdentities(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read bot identities: %w", err)
			return
		}

		if err := json.Unmarshal(data, &botIdentities); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal bot identities: %w", err)
			return
		}

		botIDMap = make(map[string]bool)
		botDisplayNameMap = make(map[string]string)
		botConfigMap = make(map[string]BotIdentity)
		for _, identity := range botIdentities {
			if identity.UserID != "" {
				mapIdentity(identity)
			}
		}
	})
	return loadErr
}

func mapIdentity(identity BotIdentity) {
	botIDMap[identity.UserID] = true
	botConfigMap[identity.UserID] = identity
	name := identity.DisplayName
	if name == "" {
		name = identity.Username
	}
	botDisplayNameMap[identity.UserID] = name
}

// ProvisionBots ensures the bot accounts exist in the platform database
// and carry the is_bot metadata. Individual failures are logged and
// skipped so one broken profile cannot keep the rest out of the grid.
func ProvisionBots(ctx context.Context, nk runtime.NakamaModule, logger runtime.Logger) {
	provisionOnce.Do(func() {
		for i := range botIdentities {
			identity := &botIdentities[i]
			if identity.DeviceID == "" {
				continue
			}

			userID, username, _, err := nk.AuthenticateDevice(ctx, identity.DeviceID, identity.Username, true)
			if err != nil {
				logger.Error("ProvisionBots: Failed to authenticate bot %s: %v", identity.Username, err)
				continue
			}

			identity.UserID = userID
			identity.Username = username

			metadata := map[string]interface{}{
				"is_bot":       true,
				"difficulty":   identity.Difficulty,
				"livery_index": identity.LiveryIndex,
			}

			if err := nk.AccountUpdateId(ctx, userID, identity.Username, metadata, identity.DisplayName, "", "", "", ""); err != nil {
				logger.Warn("ProvisionBots: Failed to update bot account %s: %v", userID, err)
			}

			mapIdentity(*identity)

			logger.Info("ProvisionBots: Bot %s (%s) is ready. Difficulty: %s", identity.DisplayName, userID, identity.Difficulty)
		}
	})
}

// GetBotConfig returns the full identity configuration for a given bot ID.
func GetBotConfig(userID string) (BotIdentity, bool) {
	config, ok := botConfigMap[userID]
	return config, ok
}

// GetBotDisplayName returns the display name for a bot ID, or an empty
// string if not a bot.
func GetBotDisplayName(userID string) string {
	if botDisplayNameMap == nil {
		return ""
	}
	return botDisplayNameMap[userID]
}

// GetBotIdentity returns an identity from the pool by grid slot (mod
// pool size), with a plain fallback when no pool is loaded.
func GetBotIdentity(index int) BotIdentity {
	if len(botIdentities) == 0 {
		return BotIdentity{
			UserID:      fmt.Sprintf("bot-%d", index),
			DisplayName: fmt.Sprintf("Pace Car %d", index),
			Difficulty:  DifficultyRookie,
		}
	}
	return botIdentities[index%len(botIdentities)]
}

// IsBot reports whether the given user ID belongs to the bot pool.
func IsBot(userID string) bool {
	if botIDMap == nil {
		return false
	}
	return botIDMap[userID]
}
