package bridge

import (
	"context"
	"strings"
	"time"

	"netchatbridge/internal/command"
	apperrors "netchatbridge/internal/errors"
	"netchatbridge/internal/models"
	"netchatbridge/pkg/matrix"

	"github.com/sirupsen/logrus"
)

// EventLoop drains the Matrix event channel in a single thread, so
// events for a room are handled to completion in arrival order.
// Command messages go to the dispatcher; any other text message in a
// bridged room is queued for outbound delivery.
type EventLoop struct {
	client     matrix.Client
	registry   *Registry
	dispatcher *command.Dispatcher
	joiner     *Joiner
	outbound   chan<- models.OutboundMessage
	prefix     string
	timeout    time.Duration
	startTime  time.Time
	logger     *logrus.Logger
}

// NewEventLoop creates the Matrix event dispatcher.
func NewEventLoop(client matrix.Client, registry *Registry, dispatcher *command.Dispatcher, joiner *Joiner, outbound chan<- models.OutboundMessage, prefix string, timeout time.Duration, logger *logrus.Logger) *EventLoop {
	return &EventLoop{
		client:     client,
		registry:   registry,
		dispatcher: dispatcher,
		joiner:     joiner,
		outbound:   outbound,
		prefix:     prefix,
		timeout:    timeout,
		startTime:  time.Now(),
		logger:     logger,
	}
}

// Run consumes events until the channel closes or the context ends.
func (l *EventLoop) Run(ctx context.Context) {
	l.logger.Info("Event loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.client.Events():
			if !ok {
				l.logger.Info("Event channel closed")
				return
			}
			switch ev := ev.(type) {
			case matrix.MessageEvent:
				l.handleMessage(ctx, ev)
			case matrix.InviteEvent:
				l.logger.WithField("room", ev.RoomID).Info("Received room invite")
				l.joiner.Accept(ctx, ev.RoomID)
			}
		}
	}
}

func (l *EventLoop) handleMessage(ctx context.Context, ev matrix.MessageEvent) {
	if ev.Sender == l.client.UserID() {
		return
	}
	// The first sync replays history; only events from this run count.
	if ev.Timestamp.Before(l.startTime) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if strings.HasPrefix(ev.Body, l.prefix) {
		name, args := command.Tokenize(ev.Body[len(l.prefix):])
		l.dispatcher.Dispatch(ctx, &command.Invocation{
			RoomID:  ev.RoomID,
			Sender:  ev.Sender,
			EventID: ev.EventID,
			Command: name,
			Args:    args,
		})
		return
	}

	l.forwardOutbound(ctx, ev)
}

func (l *EventLoop) forwardOutbound(ctx context.Context, ev matrix.MessageEvent) {
	mapping, err := l.registry.Status(ctx, ev.RoomID)
	if err != nil {
		// Unbridged rooms chat freely; anything else is logged and the
		// message is not forwarded.
		if !apperrors.HasCode(err, apperrors.ErrCodeNotBridged) {
			l.logger.WithError(err).WithField("room", ev.RoomID).
				Error("Failed to look up bridge mapping")
		}
		return
	}

	select {
	case l.outbound <- models.OutboundMessage{
		RoomName:     mapping.RoomName,
		RoomPassword: mapping.RoomPassword,
		Username:     l.resolveUsername(ctx, ev.RoomID, ev.Sender),
		Body:         ev.Body,
	}:
	case <-ctx.Done():
		l.logger.WithField("room", ev.RoomID).Warn("Dropped outbound message, queue unavailable")
		return
	}

	// The NetChat counter will include the message we just sent;
	// advance the cursor so the next poll does not echo it back.
	if err := l.registry.BumpCounter(ctx, ev.RoomID); err != nil {
		l.logger.WithError(err).WithField("room", ev.RoomID).
			Error("Failed to advance cursor after outbound send")
	}

	if err := l.client.MarkRead(ctx, ev.RoomID, ev.EventID); err != nil {
		l.logger.WithError(err).WithField("room", ev.RoomID).
			Debug("Failed to send read receipt")
	}
}

// resolveUsername picks the per-room override when one is set, falling
// back to the sender's display name and finally the raw user ID.
func (l *EventLoop) resolveUsername(ctx context.Context, roomID, sender string) string {
	override, ok, err := l.registry.GetUsername(ctx, roomID, sender)
	if err != nil {
		l.logger.WithError(err).WithField("room", roomID).
			Warn("Failed to read username override")
	} else if ok {
		return override
	}

	name, err := l.client.DisplayName(ctx, roomID, sender)
	if err != nil {
		l.logger.WithError(err).WithField("sender", sender).
			Warn("Failed to resolve display name")
		return sender
	}
	return name
}
