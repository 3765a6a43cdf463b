package ports

import "context"

// NotifierPort pushes in-app notifications to users.
type NotifierPort interface {
	Notify(ctx context.Context, userIDs []string, title, description string, data map[string]interface{}) error
}
