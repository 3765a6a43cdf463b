package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	statsCollection = "career"
	statsKey        = "stats_v1"

	// statsWriteRetries bounds the optimistic-concurrency loop. Two
	// matches closing on the same user at once is as contended as this
	// record realistically gets.
	statsWriteRetries = 3
)

// NakamaStatsAdapter keeps career stats in Nakama storage. Writes are
// read-modify-write under the object version, retried on conflict.
type NakamaStatsAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaStatsAdapter creates a new stats adapter.
func NewNakamaStatsAdapter(nk runtime.NakamaModule) *NakamaStatsAdapter {
	return &NakamaStatsAdapter{nk: nk}
}

// RecordResult folds one race classification into the career record.
func (a *NakamaStatsAdapter) RecordResult(ctx context.Context, userID string, placement, laps int, bestLapMs int64) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}

	for attempt := 0; attempt < statsWriteRetries; attempt++ {
		stats, version, err := a.read(ctx, userID)
		if err != nil {
			return err
		}

		stats.Races++
		if placement == 1 {
			stats.Wins++
		}
		if placement >= 1 && placement <= 3 {
			stats.Podiums++
		}
		stats.Laps += laps
		if bestLapMs > 0 && (stats.BestLapMs == 0 || bestLapMs < stats.BestLapMs) {
			stats.BestLapMs = bestLapMs
		}

		err = a.write(ctx, userID, stats, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return err
		}
	}
	return fmt.Errorf("career stats write for %s kept conflicting", userID)
}

// Career returns the user's record, zero-valued when they never raced.
func (a *NakamaStatsAdapter) Career(ctx context.Context, userID string) (ports.CareerStats, error) {
	stats, _, err := a.read(ctx, userID)
	return stats, err
}

func (a *NakamaStatsAdapter) read(ctx context.Context, userID string) (ports.CareerStats, string, error) {
	var stats ports.CareerStats

	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: statsCollection, Key: statsKey, UserID: userID},
	})
	if err != nil {
		return stats, "", fmt.Errorf("failed to read career stats: %w", err)
	}
	if len(objects) == 0 {
		return stats, "", nil
	}

	if err := json.Unmarshal([]byte(objects[0].Value), &stats); err != nil {
		return stats, "", fmt.Errorf("failed to unmarshal career stats: %w", err)
	}
	return stats, objects[0].Version, nil
}

func (a *NakamaStatsAdapter) write(ctx context.Context, userID string, stats ports.CareerStats, version string) error {
	value, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal career stats: %w", err)
	}

	// A missing record writes create-only so two first races for the
	// same user still conflict instead of clobbering each other.
	if version == "" {
		version = "*"
	}

	_, err = a.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      statsCollection,
			Key:             statsKey,
			UserID:          userID,
			Value:           string(value),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	return err
}

var _ ports.StatsPort = (*NakamaStatsAdapter)(nil)
