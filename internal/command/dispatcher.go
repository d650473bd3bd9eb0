package command

import (
	"context"
	"strconv"

	apperrors "netchatbridge/internal/errors"
	"netchatbridge/internal/metrics"
	"netchatbridge/internal/models"
	"netchatbridge/internal/permissions"
	"netchatbridge/pkg/matrix"

	"github.com/sirupsen/logrus"
)

// Registry is the bridge-mapping lifecycle the commands drive.
type Registry interface {
	Create(ctx context.Context, roomID, externalName, externalPassword string) error
	Destroy(ctx context.Context, roomID string) (string, error)
	Status(ctx context.Context, roomID string) (*models.BridgeMapping, error)
	SetUsername(ctx context.Context, roomID, userID, name string) error
	GetUsername(ctx context.Context, roomID, userID string) (string, bool, error)
	ClearUsername(ctx context.Context, roomID, userID string) error
}

// Gate decides whether a sender may perform a privileged action.
type Gate interface {
	Check(ctx context.Context, roomID, userID string, action permissions.Action) error
}

// Invocation is one parsed in-room command.
type Invocation struct {
	RoomID  string
	Sender  string
	EventID string
	Command string
	Args    []string
}

// Dispatcher routes invocations to their handlers. Unknown commands are
// ignored silently, matching in-room bot convention.
type Dispatcher struct {
	client   matrix.Client
	registry Registry
	gate     Gate
	logger   *logrus.Logger
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(client matrix.Client, registry Registry, gate Gate, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		registry: registry,
		gate:     gate,
		logger:   logger,
	}
}

// Dispatch runs the handler for inv. All errors are surfaced into the
// invoking room and logged; nothing propagates.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation) {
	metrics.Default().Increment(metrics.CommandsDispatched)
	d.logger.WithFields(logrus.Fields{
		"room":    inv.RoomID,
		"sender":  inv.Sender,
		"command": inv.Command,
	}).Debug("Dispatching command")

	switch inv.Command {
	case "ping":
		d.handlePing(ctx, inv)
	case "bridge":
		d.handleBridge(ctx, inv)
	case "username":
		d.handleUsername(ctx, inv)
	}
}

func (d *Dispatcher) replyPlain(ctx context.Context, roomID, text string) {
	if err := d.client.SendText(ctx, roomID, text); err != nil {
		d.logger.WithError(err).WithField("room", roomID).Error("Failed to send reply")
	}
}

func (d *Dispatcher) replyHTML(ctx context.Context, roomID, html string) {
	if err := d.client.SendHTML(ctx, roomID, html); err != nil {
		d.logger.WithError(err).WithField("room", roomID).Error("Failed to send reply")
	}
}

// replyError logs err and sends its user-facing rendering into the room.
func (d *Dispatcher) replyError(ctx context.Context, roomID string, err error) {
	d.logger.WithError(err).WithField("room", roomID).Error("Command failed")

	code := apperrors.GetCode(err)
	switch code {
	case apperrors.ErrCodeAlreadyBridged:
		d.replyPlain(ctx, roomID, Text("room_already_bridged"))
	case apperrors.ErrCodeNotBridged:
		d.replyPlain(ctx, roomID, Text("room_not_bridged"))
	case apperrors.ErrCodeWrongPassword:
		d.replyPlain(ctx, roomID, Text("room_wrong_password"))
	case apperrors.ErrCodeInitializing:
		d.replyPlain(ctx, roomID, Text("room_currently_initializing"))
	case apperrors.ErrCodeCorruptRecord:
		d.replyHTML(ctx, roomID, Text("database_possibly_corrupted", "error", err.Error()))
	case apperrors.ErrCodeStore:
		d.replyHTML(ctx, roomID, Text("database_error", "error", err.Error()))
	case apperrors.ErrCodePermissionLookup:
		d.replyHTML(ctx, roomID, Text("fetch_permissions_failed", "error", err.Error()))
	case apperrors.ErrCodeServerError, apperrors.ErrCodeRateLimited,
		apperrors.ErrCodeUnauthorized, apperrors.ErrCodeTransport,
		apperrors.ErrCodeDeserialize:
		d.replyHTML(ctx, roomID, Text("fetch_room_failed", "error", err.Error()))
	default:
		d.replyHTML(ctx, roomID, Text("database_error", "error", err.Error()))
	}
}

// checkPermission returns false (after replying) when the sender may
// not perform the action. A lookup failure denies the action but is
// reported distinctly from a plain denial.
func (d *Dispatcher) checkPermission(ctx context.Context, inv *Invocation, action permissions.Action) bool {
	err := d.gate.Check(ctx, inv.RoomID, inv.Sender, action)
	if err == nil {
		return true
	}
	if apperrors.HasCode(err, apperrors.ErrCodePermissionDenied) {
		d.logger.WithFields(logrus.Fields{
			"room":   inv.RoomID,
			"sender": inv.Sender,
			"action": string(action),
		}).Info("Command denied")
		d.replyHTML(ctx, inv.RoomID, Text("command_no_permissions",
			"minimum_power_level", strconv.Itoa(permissions.MinimumFor(action))))
	} else {
		d.replyError(ctx, inv.RoomID, err)
	}
	return false
}
