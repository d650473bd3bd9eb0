package matrix

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"
)

const eventBufferSize = 64

// ClientConfig configures the mautrix-backed client.
type ClientConfig struct {
	HomeserverURL     string
	Username          string
	Password          string
	DeviceID          string
	DeviceDisplayName string
}

type mautrixClient struct {
	mx     *mautrix.Client
	cfg    ClientConfig
	events chan Event
	logger *logrus.Logger
}

// NewClient builds a Client backed by maunium.net/go/mautrix.
func NewClient(cfg ClientConfig, logger *logrus.Logger) (Client, error) {
	mx, err := mautrix.NewClient(cfg.HomeserverURL, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to build Matrix client: %w", err)
	}
	return &mautrixClient{
		mx:     mx,
		cfg:    cfg,
		events: make(chan Event, eventBufferSize),
		logger: logger,
	}, nil
}

// Run logs in, wires the sync callbacks onto the event channel and
// blocks in the sync loop until the context ends.
func (c *mautrixClient) Run(ctx context.Context) error {
	c.logger.WithFields(logrus.Fields{
		"homeserver": c.cfg.HomeserverURL,
		"username":   c.cfg.Username,
	}).Info("Logging in to Matrix")

	_, err := c.mx.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: c.cfg.Username,
		},
		Password:                 c.cfg.Password,
		DeviceID:                 id.DeviceID(c.cfg.DeviceID),
		InitialDeviceDisplayName: c.cfg.DeviceDisplayName,
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	c.logger.WithField("user_id", c.mx.UserID).Info("Matrix login successful")

	syncer := c.mx.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.onMessage)
	syncer.OnEventType(event.StateMember, c.onMember)

	err = c.mx.SyncWithContext(ctx)
	close(c.events)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("sync loop failed: %w", err)
	}
	return nil
}

func (c *mautrixClient) onMessage(_ context.Context, evt *event.Event) {
	if evt.Sender == c.mx.UserID {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	c.events <- MessageEvent{
		RoomID:    evt.RoomID.String(),
		Sender:    evt.Sender.String(),
		EventID:   evt.ID.String(),
		Body:      content.Body,
		Timestamp: time.UnixMilli(evt.Timestamp),
	}
}

func (c *mautrixClient) onMember(_ context.Context, evt *event.Event) {
	content := evt.Content.AsMember()
	if content == nil || content.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != c.mx.UserID.String() {
		return
	}
	c.events <- InviteEvent{RoomID: evt.RoomID.String()}
}

func (c *mautrixClient) Events() <-chan Event {
	return c.events
}

func (c *mautrixClient) UserID() string {
	return c.mx.UserID.String()
}

func (c *mautrixClient) JoinRoom(ctx context.Context, roomID string) error {
	_, err := c.mx.JoinRoomByID(ctx, id.RoomID(roomID))
	return err
}

func (c *mautrixClient) JoinedRooms(ctx context.Context) ([]string, error) {
	resp, err := c.mx.JoinedRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]string, len(resp.JoinedRooms))
	for i, roomID := range resp.JoinedRooms {
		rooms[i] = roomID.String()
	}
	return rooms, nil
}

func (c *mautrixClient) SendText(ctx context.Context, roomID, text string) error {
	_, err := c.mx.SendText(ctx, id.RoomID(roomID), text)
	return err
}

func (c *mautrixClient) SendHTML(ctx context.Context, roomID, html string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          format.HTMLToText(html),
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	_, err := c.mx.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	return err
}

func (c *mautrixClient) SetTyping(ctx context.Context, roomID string, typing bool) error {
	_, err := c.mx.UserTyping(ctx, id.RoomID(roomID), typing, 30*time.Second)
	return err
}

func (c *mautrixClient) MarkRead(ctx context.Context, roomID, eventID string) error {
	return c.mx.MarkRead(ctx, id.RoomID(roomID), id.EventID(eventID))
}

func (c *mautrixClient) PowerLevel(ctx context.Context, roomID, userID string) (int, error) {
	var levels event.PowerLevelsEventContent
	err := c.mx.StateEvent(ctx, id.RoomID(roomID), event.StatePowerLevels, "", &levels)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch power levels: %w", err)
	}
	return levels.GetUserLevel(id.UserID(userID)), nil
}

func (c *mautrixClient) DisplayName(ctx context.Context, roomID, userID string) (string, error) {
	var member event.MemberEventContent
	err := c.mx.StateEvent(ctx, id.RoomID(roomID), event.StateMember, userID, &member)
	if err != nil {
		return "", fmt.Errorf("failed to fetch member state: %w", err)
	}
	if member.Displayname == "" {
		return userID, nil
	}
	return member.Displayname, nil
}
