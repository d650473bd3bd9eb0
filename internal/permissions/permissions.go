package permissions

import (
	"context"
	"fmt"

	apperrors "netchatbridge/internal/errors"
	"netchatbridge/pkg/matrix"
)

// Action is a privileged bridge operation.
type Action string

const (
	BridgeCreate  Action = "bridge_create"
	BridgeDestroy Action = "bridge_destroy"
)

// Power level tiers as conventionally assigned in Matrix rooms.
const (
	PowerLevelUser          = 0
	PowerLevelModerator     = 50
	PowerLevelAdministrator = 100
)

// PowerLevelConstraint bounds the power level an action requires. A nil
// Maximum means "at least Minimum"; Maximum == Minimum means exact
// match.
type PowerLevelConstraint struct {
	Minimum int
	Maximum *int
}

// IsAllowed evaluates the constraint against a power level.
func (c PowerLevelConstraint) IsAllowed(powerLevel int) bool {
	if c.Maximum == nil {
		return powerLevel >= c.Minimum
	}
	if c.Minimum == *c.Maximum {
		return powerLevel == c.Minimum
	}
	return powerLevel >= c.Minimum && powerLevel <= *c.Maximum
}

// ConstraintFor returns the power level constraint of an action.
func ConstraintFor(action Action) PowerLevelConstraint {
	switch action {
	case BridgeCreate, BridgeDestroy:
		return PowerLevelConstraint{Minimum: PowerLevelAdministrator}
	default:
		// Unknown actions require the top tier rather than defaulting
		// open.
		return PowerLevelConstraint{Minimum: PowerLevelAdministrator}
	}
}

// Gate checks actions against the requester's current power level. The
// level is fetched per invocation; nothing is cached.
type Gate struct {
	client matrix.Client
}

// NewGate creates a permission gate backed by the given chat client.
func NewGate(client matrix.Client) *Gate {
	return &Gate{client: client}
}

// Check returns nil when the sender may perform the action. A failed
// power level lookup is reported as ErrCodePermissionLookup, distinct
// from a plain denial, and must be treated as a denial by callers.
func (g *Gate) Check(ctx context.Context, roomID, userID string, action Action) error {
	level, err := g.client.PowerLevel(ctx, roomID, userID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePermissionLookup,
			fmt.Sprintf("failed to fetch power level for %s", userID))
	}

	constraint := ConstraintFor(action)
	if !constraint.IsAllowed(level) {
		return apperrors.New(apperrors.ErrCodePermissionDenied,
			fmt.Sprintf("action %s requires power level %d, sender has %d", action, constraint.Minimum, level))
	}
	return nil
}

// MinimumFor exposes the minimum level of an action for user-facing
// denial messages.
func MinimumFor(action Action) int {
	return ConstraintFor(action).Minimum
}
