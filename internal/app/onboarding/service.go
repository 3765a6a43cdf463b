package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"missionrace/internal/ports"
)

const (
	defaultStarterCarID = "starter_hatch"
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
	// StarterCarGranted is false when the user already owned a garage.
	StarterCarGranted bool
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	garage   ports.GaragePort
	rng      *rand.Rand
}

// NewService constructs an onboarding service with required ports.
// accounts/garage must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, garage ports.GaragePort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		garage:   garage,
		rng:      rng,
	}
}

// OnboardNewUser initializes profile and garage for a newly created account.
// userID identifies the new account to initialize.
// Returns a Result with any non-fatal issues and an error if the starter car
// cannot be granted.
// Side effects: updates account profile and writes the starter garage.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil || s.garage == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	result := Result{}
	displayName := s.generateRacerName()
	if err := s.accounts.UpdateProfile(ctx, userID, displayName, displayName); err != nil {
		// Profile updates are best-effort; the starter car matters more.
		result.ProfileUpdateErr = err
	}

	granted, err := s.garage.GrantStarterCarOnce(ctx, userID, defaultStarterCarID)
	if err != nil {
		return result, fmt.Errorf("failed to grant starter car: %w", err)
	}
	result.StarterCarGranted = granted

	return result, nil
}

func (s *Service) generateRacerName() string {
	adjectives := []string{"Turbo", "Nitro", "Apex", "Drift", "Blazing", "Redline", "Slick", "Vapor", "Chrome", "Octane"}
	nouns := []string{"Viper", "Comet", "Falcon", "Stinger", "Phantom", "Rocket", "Cobra", "Raptor", "Tempest", "Maverick"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
