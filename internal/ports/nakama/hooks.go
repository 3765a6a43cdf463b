package nakama

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"missionrace/internal/app/onboarding"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// AfterAuthenticateDevice is triggered after a device (guest) login. New
// accounts get a racer name and the starter car.
func AfterAuthenticateDevice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error {
	if !out.Created {
		return nil
	}
	return onboardCreatedUser(ctx, logger, nk, out.Token, "AfterAuthenticateDevice")
}

// AfterAuthenticateEmail is triggered after an email login. Same
// onboarding path as guests; the garage grant is idempotent either way.
func AfterAuthenticateEmail(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateEmailRequest) error {
	if !out.Created {
		return nil
	}
	return onboardCreatedUser(ctx, logger, nk, out.Token, "AfterAuthenticateEmail")
}

func onboardCreatedUser(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, token, hook string) error {
	userID := ""
	if ctxUserID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); ok {
		userID = ctxUserID
	}
	if userID == "" {
		// Resolve User ID from the session token by parsing the JWT payload manually.
		resolvedID, err := extractUserIDFromToken(token)
		if err != nil {
			logger.Error("%s: Failed to extract user ID from token: %v", hook, err)
			return err
		}
		userID = resolvedID
	}

	logger.Info("Onboarding new user %s", userID)

	service := onboarding.NewService(NewNakamaAccountAdapter(nk), NewNakamaGarageAdapter(nk), nil)
	result, err := service.OnboardNewUser(ctx, userID)
	if result.ProfileUpdateErr != nil {
		logger.Warn("%s: Failed to update profile for user %s: %v", hook, userID, result.ProfileUpdateErr)
	}
	if !result.StarterCarGranted {
		logger.Info("%s: Starter car already granted for user %s", hook, userID)
	}
	if err != nil {
		logger.Error("%s: Onboarding failed for user %s: %v", hook, userID, err)
		return err
	}
	return nil
}

func extractUserIDFromToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid token format")
	}

	payload := parts[1]
	// JWT base64 is RawUrlEncoding (no padding)
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode token payload: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return "", fmt.Errorf("failed to unmarshal token claims: %w", err)
	}

	uid, ok := claims["uid"].(string)
	if !ok {
		return "", fmt.Errorf("token claims missing uid")
	}

	return uid, nil
}
