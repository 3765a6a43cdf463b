package ports

import "context"

// WalletUpdate represents a single coin change for a user.
type WalletUpdate struct {
	UserID   string
	Amount   int64
	Metadata map[string]interface{}
}

// EconomyPort defines the interface for managing race coins.
type EconomyPort interface {
	// GetBalance retrieves the current coin balance for a user.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// UpdateBalances applies multiple wallet changes atomically.
	// This is used when a race closes to pay out the podium.
	UpdateBalances(ctx context.Context, updates []WalletUpdate) error
}
