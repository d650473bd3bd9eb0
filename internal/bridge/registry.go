package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "netchatbridge/internal/errors"
	"netchatbridge/internal/models"
	"netchatbridge/internal/store"
	"netchatbridge/pkg/netchat"

	"github.com/sirupsen/logrus"
)

const (
	bridgeKeyPrefix   = "bridge."
	usernameKeyPrefix = "username."
)

func bridgeKey(roomID string) string {
	return bridgeKeyPrefix + roomID
}

func usernameKey(roomID, userID string) string {
	return usernameKeyPrefix + roomID + "." + userID
}

// Registry owns the bridge-mapping lifecycle on top of the persistent
// store. At most one mapping exists per Matrix room; the stored record
// is the single source of truth for forwarding progress.
type Registry struct {
	store   store.Store
	netchat netchat.Client
	logger  *logrus.Logger
}

// NewRegistry creates a bridge registry.
func NewRegistry(st store.Store, nc netchat.Client, logger *logrus.Logger) *Registry {
	return &Registry{store: st, netchat: nc, logger: logger}
}

// Create validates the NetChat room and persists a new mapping with the
// room's current message counter as the initial cursor. Validation
// order: existing mapping, initializing state, password, counter read.
func (r *Registry) Create(ctx context.Context, roomID, externalName, externalPassword string) error {
	_, exists, err := r.store.Get(ctx, bridgeKey(roomID))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to check for existing mapping")
	}
	if exists {
		return apperrors.New(apperrors.ErrCodeAlreadyBridged,
			fmt.Sprintf("room %s is already bridged", roomID))
	}

	initializing, err := r.netchat.IsInitializing(ctx, externalName, externalPassword)
	if err != nil {
		return wrapNetChatErr(err, "failed to check room state")
	}
	if initializing {
		return apperrors.New(apperrors.ErrCodeInitializing,
			fmt.Sprintf("NetChat room %s is initializing", externalName))
	}

	correct, err := r.netchat.IsCorrectPassword(ctx, externalName, externalPassword)
	if err != nil {
		return wrapNetChatErr(err, "failed to verify room password")
	}
	if !correct {
		return apperrors.New(apperrors.ErrCodeWrongPassword,
			fmt.Sprintf("wrong password for NetChat room %s", externalName))
	}

	counter, err := r.netchat.MessageCount(ctx, externalName, externalPassword)
	if err != nil {
		return wrapNetChatErr(err, "failed to read initial message counter")
	}

	mapping := models.BridgeMapping{
		RoomName:       externalName,
		RoomPassword:   externalPassword,
		MessageCounter: counter,
	}
	if err := r.saveMapping(ctx, roomID, &mapping); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"room":          roomID,
		"netchat_room":  externalName,
		"initial_count": counter,
	}).Info("Bridge created")
	return nil
}

// Destroy removes the mapping and returns the NetChat room name it
// pointed at. A record that fails to deserialize is reported, never
// deleted.
func (r *Registry) Destroy(ctx context.Context, roomID string) (string, error) {
	mapping, err := r.mapping(ctx, roomID)
	if err != nil {
		return "", err
	}
	if err := r.store.Remove(ctx, bridgeKey(roomID)); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to remove mapping")
	}

	r.logger.WithFields(logrus.Fields{
		"room":         roomID,
		"netchat_room": mapping.RoomName,
	}).Info("Bridge destroyed")
	return mapping.RoomName, nil
}

// Status returns the current mapping of a room.
func (r *Registry) Status(ctx context.Context, roomID string) (*models.BridgeMapping, error) {
	return r.mapping(ctx, roomID)
}

func (r *Registry) mapping(ctx context.Context, roomID string) (*models.BridgeMapping, error) {
	value, exists, err := r.store.Get(ctx, bridgeKey(roomID))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to read mapping")
	}
	if !exists {
		return nil, apperrors.New(apperrors.ErrCodeNotBridged,
			fmt.Sprintf("room %s is not bridged", roomID))
	}

	var mapping models.BridgeMapping
	if err := json.Unmarshal([]byte(value), &mapping); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCorruptRecord,
			fmt.Sprintf("mapping for room %s failed to deserialize", roomID))
	}
	return &mapping, nil
}

func (r *Registry) saveMapping(ctx context.Context, roomID string, mapping *models.BridgeMapping) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to serialize mapping")
	}
	if err := r.store.Set(ctx, bridgeKey(roomID), string(data)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to persist mapping")
	}
	return nil
}

// UpdateCounter persists a new cursor value for a room.
func (r *Registry) UpdateCounter(ctx context.Context, roomID string, mapping *models.BridgeMapping, counter int) error {
	mapping.MessageCounter = counter
	return r.saveMapping(ctx, roomID, mapping)
}

// BumpCounter advances a room's cursor by one. Used after an outbound
// send so the bridge's own message is not re-imported on the next poll.
func (r *Registry) BumpCounter(ctx context.Context, roomID string) error {
	mapping, err := r.mapping(ctx, roomID)
	if err != nil {
		return err
	}
	return r.UpdateCounter(ctx, roomID, mapping, mapping.MessageCounter+1)
}

// Entry is one bridge mapping found during a full scan. A record that
// failed to deserialize carries Err instead of Mapping; the scan itself
// never aborts on a bad record.
type Entry struct {
	RoomID  string
	Mapping *models.BridgeMapping
	Err     error
}

// Entries scans the full keyspace and returns every bridge mapping.
func (r *Registry) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := r.store.Iterate(ctx, func(key, value string) error {
		if !strings.HasPrefix(key, bridgeKeyPrefix) {
			return nil
		}
		roomID := strings.TrimPrefix(key, bridgeKeyPrefix)

		var mapping models.BridgeMapping
		if err := json.Unmarshal([]byte(value), &mapping); err != nil {
			entries = append(entries, Entry{
				RoomID: roomID,
				Err: apperrors.Wrap(err, apperrors.ErrCodeCorruptRecord,
					fmt.Sprintf("mapping for room %s failed to deserialize", roomID)),
			})
			return nil
		}
		entries = append(entries, Entry{RoomID: roomID, Mapping: &mapping})
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to scan mappings")
	}
	return entries, nil
}

// SetUsername stores a display-name override for (room, user).
func (r *Registry) SetUsername(ctx context.Context, roomID, userID, name string) error {
	if err := r.store.Set(ctx, usernameKey(roomID, userID), name); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to store username override")
	}
	return nil
}

// GetUsername returns the override for (room, user), if any.
func (r *Registry) GetUsername(ctx context.Context, roomID, userID string) (string, bool, error) {
	name, exists, err := r.store.Get(ctx, usernameKey(roomID, userID))
	if err != nil {
		return "", false, apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to read username override")
	}
	return name, exists, nil
}

// ClearUsername removes the override for (room, user).
func (r *Registry) ClearUsername(ctx context.Context, roomID, userID string) error {
	if err := r.store.Remove(ctx, usernameKey(roomID, userID)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to clear username override")
	}
	return nil
}

func wrapNetChatErr(err error, message string) *apperrors.AppError {
	var code apperrors.ErrorCode
	switch netchat.KindOf(err) {
	case netchat.KindServerError:
		code = apperrors.ErrCodeServerError
	case netchat.KindRateLimited:
		code = apperrors.ErrCodeRateLimited
	case netchat.KindUnauthorized:
		code = apperrors.ErrCodeUnauthorized
	case netchat.KindDeserialize:
		code = apperrors.ErrCodeDeserialize
	default:
		code = apperrors.ErrCodeTransport
	}
	return apperrors.WrapRetryable(err, code, message)
}
