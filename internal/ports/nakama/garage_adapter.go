package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	garageCollection = "garage"
	garageKey        = "cars_v1"

	// starterCoinGrant is the race-coin stake that ships with the
	// starter car, so new players can see the wallet working.
	starterCoinGrant = 500
)

// NakamaGarageAdapter grants the starter car using Nakama storage + wallet
// updates in a single atomic MultiUpdate.
type NakamaGarageAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaGarageAdapter creates a new garage adapter.
func NewNakamaGarageAdapter(nk runtime.NakamaModule) *NakamaGarageAdapter {
	return &NakamaGarageAdapter{nk: nk}
}

// GrantStarterCarOnce writes the garage record and the starter coins
// atomically. The conditional write ("*" means create only) makes the
// grant idempotent: a second authentication of the same account finds the
// garage already there and changes nothing.
func (a *NakamaGarageAdapter) GrantStarterCarOnce(ctx context.Context, userID, carID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID is required")
	}
	if carID == "" {
		return false, fmt.Errorf("carID is required")
	}

	garage := map[string]interface{}{
		"car_id":     carID,
		"granted_at": time.Now().UTC().Format(time.RFC3339),
	}
	value, err := json.Marshal(garage)
	if err != nil {
		return false, fmt.Errorf("failed to marshal garage record: %w", err)
	}

	storageWrites := []*runtime.StorageWrite{
		{
			Collection:      garageCollection,
			Key:             garageKey,
			UserID:          userID,
			Value:           string(value),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}

	walletUpdates := []*runtime.WalletUpdate{
		{
			UserID:    userID,
			Changeset: map[string]int64{raceCoinCurrency: starterCoinGrant},
			Metadata:  map[string]interface{}{"reason": "starter_grant", "car_id": carID},
		},
	}

	_, _, err = a.nk.MultiUpdate(ctx, nil, storageWrites, nil, walletUpdates, true)
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return false, nil
		}
		return false, fmt.Errorf("failed to grant starter car: %w", err)
	}

	return true, nil
}

var _ ports.GaragePort = (*NakamaGarageAdapter)(nil)
