package friends

import "log/slog"

// Notifier delivers user-facing outcome messages for registry mutations.
// Every mutation emits exactly one notification, on success and on failure.
type Notifier interface {
	Success(userID, message string)
	Failure(userID, message string)
}

// LogNotifier writes notifications to the structured log. It stands in where
// no push channel to the user exists (CLI tools, tests, background jobs).
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Success records a positive outcome notification.
func (n LogNotifier) Success(userID, message string) {
	n.logger().Info("friendship notification", "userId", userID, "outcome", "success", "message", message)
}

// Failure records a negative outcome notification.
func (n LogNotifier) Failure(userID, message string) {
	n.logger().Warn("friendship notification", "userId", userID, "outcome", "failure", "message", message)
}
