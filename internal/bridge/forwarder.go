package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"netchatbridge/internal/metrics"
	"netchatbridge/internal/models"
	"netchatbridge/pkg/matrix"
	"netchatbridge/pkg/netchat"

	"github.com/sirupsen/logrus"
)

// InboundForwarder is the single consumer of the NetChat→Matrix queue.
// One consumer per direction keeps delivery strictly ordered.
type InboundForwarder struct {
	client  matrix.Client
	queue   <-chan models.InboundMessage
	timeout time.Duration
	logger  *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewInboundForwarder creates the NetChat→Matrix delivery loop.
func NewInboundForwarder(client matrix.Client, queue <-chan models.InboundMessage, timeout time.Duration, logger *logrus.Logger) *InboundForwarder {
	return &InboundForwarder{
		client:  client,
		queue:   queue,
		timeout: timeout,
		logger:  logger,
	}
}

// Start begins draining the inbound queue.
func (f *InboundForwarder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return fmt.Errorf("inbound forwarder is already running")
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.running = true

	f.wg.Add(1)
	go f.loop()

	f.logger.Info("Inbound forwarder started")
	return nil
}

// Stop stops consuming. Messages still queued are dropped; the next
// poll cycle re-derives them from the stored cursor.
func (f *InboundForwarder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.cancel()
	f.wg.Wait()
	f.running = false
	f.logger.Info("Inbound forwarder stopped")
}

func (f *InboundForwarder) loop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case msg := <-f.queue:
			f.deliver(msg)
		}
	}
}

func (f *InboundForwarder) deliver(msg models.InboundMessage) {
	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()

	joined, err := f.client.JoinedRooms(ctx)
	if err != nil {
		f.logger.WithError(err).WithField("room", msg.RoomID).
			Error("Failed to list joined rooms, dropping inbound message")
		metrics.Default().Increment(metrics.InboundDropped)
		return
	}
	if !contains(joined, msg.RoomID) {
		// The bridge account left (or was removed from) the room.
		f.logger.WithField("room", msg.RoomID).
			Debug("Not joined to destination room, dropping inbound message")
		metrics.Default().Increment(metrics.InboundDropped)
		return
	}

	if err := f.client.SendHTML(ctx, msg.RoomID, msg.Content); err != nil {
		f.logger.WithError(err).WithField("room", msg.RoomID).
			Error("Failed to deliver inbound message")
		metrics.Default().Increment(metrics.InboundDropped)
	}
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

// OutboundForwarder is the single consumer of the Matrix→NetChat queue.
// Delivery is at-most-once: a failed send is logged and dropped, never
// requeued, so the external room cannot see duplicates.
type OutboundForwarder struct {
	netchat netchat.Client
	queue   <-chan models.OutboundMessage
	timeout time.Duration
	logger  *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewOutboundForwarder creates the Matrix→NetChat delivery loop.
func NewOutboundForwarder(nc netchat.Client, queue <-chan models.OutboundMessage, timeout time.Duration, logger *logrus.Logger) *OutboundForwarder {
	return &OutboundForwarder{
		netchat: nc,
		queue:   queue,
		timeout: timeout,
		logger:  logger,
	}
}

// Start begins draining the outbound queue.
func (f *OutboundForwarder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return fmt.Errorf("outbound forwarder is already running")
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.running = true

	f.wg.Add(1)
	go f.loop()

	f.logger.Info("Outbound forwarder started")
	return nil
}

// Stop stops consuming; queued messages are dropped.
func (f *OutboundForwarder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.cancel()
	f.wg.Wait()
	f.running = false
	f.logger.Info("Outbound forwarder stopped")
}

func (f *OutboundForwarder) loop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case msg := <-f.queue:
			f.deliver(msg)
		}
	}
}

func (f *OutboundForwarder) deliver(msg models.OutboundMessage) {
	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()

	err := f.netchat.SendMessage(ctx, msg.RoomName, msg.RoomPassword, msg.Username, msg.Body)
	if err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"netchat_room": msg.RoomName,
			"username":     msg.Username,
		}).Error("Failed to send outbound message")
		metrics.Default().Increment(metrics.OutboundSendFailures)
		return
	}
	metrics.Default().Increment(metrics.OutboundForwarded)
}
