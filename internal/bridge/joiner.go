package bridge

import (
	"context"
	"sync"
	"time"

	"netchatbridge/internal/metrics"
	"netchatbridge/pkg/matrix"

	"github.com/sirupsen/logrus"
)

// JoinState is the state of one invite-accept attempt.
type JoinState int

const (
	JoinPending JoinState = iota
	JoinRetrying
	JoinJoined
	JoinAbandoned
)

func (s JoinState) String() string {
	switch s {
	case JoinPending:
		return "pending"
	case JoinRetrying:
		return "retrying"
	case JoinJoined:
		return "joined"
	case JoinAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// JoinerConfig holds the backoff parameters of the invite supervisor.
type JoinerConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Joiner accepts room invites with exponential backoff. Each invite
// runs as its own retry task; once the delay grows past MaxDelay the
// attempt is abandoned for good (the process keeps running, membership
// simply never completes).
type Joiner struct {
	client matrix.Client
	config JoinerConfig
	logger *logrus.Logger

	mu     sync.Mutex
	states map[string]JoinState
	wg     sync.WaitGroup
}

// NewJoiner creates the invite-accept supervisor.
func NewJoiner(client matrix.Client, config JoinerConfig, logger *logrus.Logger) *Joiner {
	return &Joiner{
		client: client,
		config: config,
		logger: logger,
		states: make(map[string]JoinState),
	}
}

// Accept starts an independent retry task for the invited room.
func (j *Joiner) Accept(ctx context.Context, roomID string) {
	j.setState(roomID, JoinPending)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(ctx, roomID)
	}()
}

// State reports the current state of an invite attempt.
func (j *Joiner) State(roomID string) JoinState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.states[roomID]
}

// Wait blocks until all retry tasks have finished. Test helper.
func (j *Joiner) Wait() {
	j.wg.Wait()
}

func (j *Joiner) setState(roomID string, state JoinState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.states[roomID] = state
}

func (j *Joiner) run(ctx context.Context, roomID string) {
	log := j.logger.WithField("room", roomID)
	delay := j.config.InitialDelay

	for {
		metrics.Default().Increment(metrics.JoinAttempts)
		err := j.client.JoinRoom(ctx, roomID)
		if err == nil {
			j.setState(roomID, JoinJoined)
			log.Info("Joined room")
			return
		}

		if delay > j.config.MaxDelay {
			j.setState(roomID, JoinAbandoned)
			metrics.Default().Increment(metrics.JoinAbandoned)
			log.WithError(err).Error("Giving up on room invite, backoff cap exceeded")
			return
		}

		j.setState(roomID, JoinRetrying)
		log.WithError(err).WithField("delay", delay).Warn("Failed to join room, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * j.config.Multiplier)
	}
}
