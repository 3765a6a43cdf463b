package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// TuningConfig mirrors the handling knobs consumed by the race domain.
type TuningConfig struct {
	MaxSpeed     float64 `json:"max_speed"`
	Acceleration float64 `json:"acceleration"`
	Braking      float64 `json:"braking"`
	TurnRate     float64 `json:"turn_rate"`
	Drag         float64 `json:"drag"`
}

type RaceConfig struct {
	LapTarget          int     `json:"lap_target"`
	CountdownSeconds   float64 `json:"countdown_seconds"`
	FinishGraceSeconds float64 `json:"finish_grace_seconds"`
	DefaultTrack       string  `json:"default_track"`
	// BotAutoFillDelaySeconds configures how many seconds to wait before adding bots to a solo human lobby.
	BotAutoFillDelaySeconds int           `json:"bot_auto_fill_delay_seconds"`
	BotBaseSpeed            float64       `json:"bot_base_speed"`
	BotSpeedOffsetStep      float64       `json:"bot_speed_offset_step"`
	PodiumBasePurse         int64         `json:"podium_base_purse"`
	Tuning                  *TuningConfig `json:"tuning"`
}

var (
	cfg      *RaceConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadRaceConfig loads the race configuration from the given path.
func LoadRaceConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read race config: %w", err)
			return
		}

		var c RaceConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal race config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetRaceConfig returns the global race configuration.
func GetRaceConfig() *RaceConfig {
	return cfg
}

// GetLapTarget returns the configured lap target, or the stock value.
func GetLapTarget() int {
	if cfg == nil || cfg.LapTarget < 1 {
		return 3 // Safe default
	}
	return cfg.LapTarget
}

// GetCountdownSeconds returns the pre-race countdown, or the stock value.
func GetCountdownSeconds() float64 {
	if cfg == nil || cfg.CountdownSeconds < 0 {
		return 3
	}
	return cfg.CountdownSeconds
}

// GetFinishGraceSeconds returns the window the rest of the field gets
// after the first finisher, or the stock value.
func GetFinishGraceSeconds() float64 {
	if cfg == nil || cfg.FinishGraceSeconds < 0 {
		return 30
	}
	return cfg.FinishGraceSeconds
}

// GetDefaultTrack returns the track raced when a match asks for none.
func GetDefaultTrack() string {
	if cfg == nil || cfg.DefaultTrack == "" {
		return "sunset-loop"
	}
	return cfg.DefaultTrack
}

// GetBotAutoFillDelaySeconds returns the lobby wait before bots fill
// empty grid slots.
func GetBotAutoFillDelaySeconds() int {
	if cfg == nil || cfg.BotAutoFillDelaySeconds <= 0 {
		return 10
	}
	return cfg.BotAutoFillDelaySeconds
}

// GetBotBaseSpeed returns the shared base speed for bot racers.
func GetBotBaseSpeed() float64 {
	if cfg == nil || cfg.BotBaseSpeed <= 0 {
		return 200
	}
	return cfg.BotBaseSpeed
}

// GetBotSpeedOffsetStep returns the per-difficulty speed increment that
// differentiates bot instances.
func GetBotSpeedOffsetStep() float64 {
	if cfg == nil || cfg.BotSpeedOffsetStep < 0 {
		return 20
	}
	return cfg.BotSpeedOffsetStep
}

// GetPodiumBasePurse returns the race-coin unit used for podium payouts.
func GetPodiumBasePurse() int64 {
	if cfg == nil || cfg.PodiumBasePurse <= 0 {
		return 100
	}
	return cfg.PodiumBasePurse
}

// GetTuning returns the configured handling knobs, or zero values when
// the file omits them; callers fall back to the domain defaults.
func GetTuning() *TuningConfig {
	if cfg == nil {
		return nil
	}
	return cfg.Tuning
}
