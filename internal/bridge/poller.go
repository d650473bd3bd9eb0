package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"netchatbridge/internal/metrics"
	"netchatbridge/internal/models"
	"netchatbridge/internal/tracing"
	"netchatbridge/pkg/netchat"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Poller is the poll-diff engine: on a fixed interval it scans every
// bridge mapping, compares the NetChat room's message counter against
// the stored cursor and enqueues anything new for inbound delivery.
// Exactly one poller must run per persistent store; cursor updates are
// not protected by any cross-process lock.
type Poller struct {
	registry *Registry
	netchat  netchat.Client
	inbound  chan<- models.InboundMessage
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewPoller creates the poll-diff engine.
func NewPoller(registry *Registry, nc netchat.Client, inbound chan<- models.InboundMessage, interval, timeout time.Duration, logger *logrus.Logger) *Poller {
	return &Poller{
		registry: registry,
		netchat:  nc,
		inbound:  inbound,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins the background polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller is already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.loop()

	p.logger.WithField("interval", p.interval).Info("Poll-diff engine started")
	return nil
}

// Stop gracefully stops the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.running = false
	p.logger.Info("Poll-diff engine stopped")
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollCycle(p.ctx)
		}
	}
}

// pollCycle runs one full scan. Per-entry failures are logged and the
// entry is skipped; the cycle itself never aborts, and a cursor is only
// advanced after its messages are enqueued.
func (p *Poller) pollCycle(ctx context.Context) {
	ctx, span := tracing.Tracer().Start(ctx, "poll_cycle")
	defer span.End()

	metrics.Default().Increment(metrics.PollCycles)

	entries, err := p.registry.Entries(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Failed to scan bridge mappings")
		return
	}
	metrics.Default().SetGauge(metrics.BridgeCount, float64(len(entries)))
	span.SetAttributes(attribute.Int("bridge.count", len(entries)))

	for _, entry := range entries {
		if entry.Err != nil {
			p.logger.WithError(entry.Err).WithField("room", entry.RoomID).
				Error("Skipping corrupt bridge record")
			metrics.Default().Increment(metrics.PollEntryErrors)
			continue
		}
		p.pollEntry(ctx, entry.RoomID, entry.Mapping)
	}
}

func (p *Poller) pollEntry(ctx context.Context, roomID string, mapping *models.BridgeMapping) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	log := p.logger.WithFields(logrus.Fields{
		"room":         roomID,
		"netchat_room": mapping.RoomName,
	})

	count, err := p.netchat.MessageCount(ctx, mapping.RoomName, mapping.RoomPassword)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch message counter, retrying next cycle")
		metrics.Default().Increment(metrics.PollEntryErrors)
		return
	}

	cursor := mapping.MessageCounter
	switch {
	case count < cursor:
		// The NetChat room was reset (or recreated). Resynchronize the
		// cursor without backfilling; operators see this in the logs
		// and metrics.
		log.WithFields(logrus.Fields{
			"stored_cursor":   cursor,
			"fetched_counter": count,
		}).Warn("NetChat counter shrank, resynchronizing cursor without backfill")
		metrics.Default().Increment(metrics.PollCounterShrink)
		if err := p.registry.UpdateCounter(ctx, roomID, mapping, count); err != nil {
			log.WithError(err).Error("Failed to persist resynchronized cursor")
		}

	case count > cursor:
		messages, err := p.netchat.RawMessages(ctx, mapping.RoomName, mapping.RoomPassword)
		if err != nil {
			log.WithError(err).Warn("Failed to fetch messages, retrying next cycle")
			metrics.Default().Increment(metrics.PollEntryErrors)
			return
		}
		// Forward exactly the counted suffix; anything that arrived
		// between the two fetches is picked up next cycle.
		end := count
		if end > len(messages) {
			end = len(messages)
		}
		start := cursor
		if start > end {
			start = end
		}
		for _, line := range messages[start:end] {
			select {
			case p.inbound <- models.InboundMessage{
				RoomID:  roomID,
				Content: FormatInbound(line),
			}:
			case <-ctx.Done():
				// Shutdown or timeout mid-enqueue: the cursor stays put
				// and the suffix is refetched next cycle.
				return
			}
		}
		forwarded := end - start
		metrics.Default().Add(metrics.InboundForwarded, int64(forwarded))
		log.WithFields(logrus.Fields{
			"forwarded": forwarded,
			"cursor":    count,
		}).Debug("Forwarded new NetChat messages")

		if err := p.registry.UpdateCounter(ctx, roomID, mapping, count); err != nil {
			log.WithError(err).Error("Failed to persist advanced cursor")
		}
	}
}
