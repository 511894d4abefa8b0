package port

import "context"

type Notifier interface {
	// Notify surfaces a user-facing message. It must not block on the caller.
	Notify(ctx context.Context, message string)
}
