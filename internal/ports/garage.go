package ports

import "context"

// GaragePort grants the starter vehicle at most once per user.
type GaragePort interface {
	// GrantStarterCarOnce attempts to place the starter car in a user's
	// garage. Returns granted=false when the garage already exists.
	GrantStarterCarOnce(ctx context.Context, userID, carID string) (bool, error)
}
