package matrix

import (
	"context"
	"time"
)

// MessageEvent is a text message observed in a joined room.
type MessageEvent struct {
	RoomID    string
	Sender    string
	EventID   string
	Body      string
	Timestamp time.Time
}

// InviteEvent is an invite naming the bridge account as the invitee.
type InviteEvent struct {
	RoomID string
}

// Event is either a MessageEvent or an InviteEvent.
type Event interface {
	isEvent()
}

func (MessageEvent) isEvent() {}
func (InviteEvent) isEvent()  {}

// Client is the chat platform collaborator. The sync loop pushes typed
// events onto Events; everything else is a direct call. Implementations
// must be safe for concurrent use.
type Client interface {
	// Run logs in and blocks on the sync loop until ctx is cancelled.
	Run(ctx context.Context) error
	// Events delivers message and invite events in sync order.
	Events() <-chan Event

	UserID() string
	JoinRoom(ctx context.Context, roomID string) error
	JoinedRooms(ctx context.Context) ([]string, error)
	SendText(ctx context.Context, roomID, text string) error
	SendHTML(ctx context.Context, roomID, html string) error
	SetTyping(ctx context.Context, roomID string, typing bool) error
	MarkRead(ctx context.Context, roomID, eventID string) error
	PowerLevel(ctx context.Context, roomID, userID string) (int, error)
	DisplayName(ctx context.Context, roomID, userID string) (string, error)
}
