package realtime

import "context"

// Operations carried by change-notification events.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event describes a single row change published to interested subscribers.
// Origin identifies the publishing process; a subscriber that already applied
// the change locally can use it to skip its own events.
type Event struct {
	Table  string `json:"table"`
	Op     string `json:"op"`
	RowID  string `json:"rowId"`
	Origin string `json:"origin,omitempty"`
}

// Feed is a push-based change-notification channel. Subscribers receive every
// event published to their channels after the subscription is established;
// there is no replay. Cancel funcs returned by Subscribe are idempotent.
type Feed interface {
	Publish(ctx context.Context, channel string, event Event) error
	Subscribe(ctx context.Context, channels ...string) (<-chan Event, func(), error)
	Close() error
}

// FriendshipChannel names the per-user channel carrying friendship row changes.
func FriendshipChannel(userID string) string {
	return "friendships:user:" + userID
}

// ChatChannel names the per-room channel carrying chat message events.
func ChatChannel(roomID string) string {
	return "chat:room:" + roomID
}
