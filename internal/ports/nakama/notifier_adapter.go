package nakama

import (
	"context"
	"fmt"

	"missionrace/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// notificationCodeRace tags race notifications so clients can route them.
const notificationCodeRace = 1

// NakamaNotifierAdapter implements ports.NotifierPort on Nakama's
// persistent in-app notifications.
type NakamaNotifierAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaNotifierAdapter creates a new notifier adapter.
func NewNakamaNotifierAdapter(nk runtime.NakamaModule) *NakamaNotifierAdapter {
	return &NakamaNotifierAdapter{nk: nk}
}

func (a *NakamaNotifierAdapter) Notify(ctx context.Context, userIDs []string, title, description string, data map[string]interface{}) error {
	if len(userIDs) == 0 {
		return nil
	}

	content := map[string]interface{}{
		"description": description,
	}
	for k, v := range data {
		content[k] = v
	}

	notifications := make([]*runtime.NotificationSend, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, &runtime.NotificationSend{
			UserID:     userID,
			Subject:    title,
			Content:    content,
			Code:       notificationCodeRace,
			Persistent: true,
		})
	}

	if err := a.nk.NotificationsSend(ctx, notifications); err != nil {
		return fmt.Errorf("failed to send notifications: %w", err)
	}
	return nil
}

var _ ports.NotifierPort = (*NakamaNotifierAdapter)(nil)
