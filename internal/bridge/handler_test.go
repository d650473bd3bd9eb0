package bridge

import (
	"context"
	"testing"
	"time"

	"netchatbridge/internal/command"
	"netchatbridge/internal/metrics"
	"netchatbridge/internal/models"
	"netchatbridge/internal/permissions"
	"netchatbridge/pkg/matrix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type eventLoopFixture struct {
	loop     *EventLoop
	mx       *mockMatrixClient
	nc       *mockNetChatClient
	registry *Registry
	outbound chan models.OutboundMessage
	cancel   context.CancelFunc
}

func newEventLoopFixture(t *testing.T) *eventLoopFixture {
	t.Helper()
	metrics.Reset()

	registry, nc, _ := newTestRegistry(t)
	mx := newMockMatrixClient()
	mx.On("UserID").Return("@bridge:example.org").Maybe()

	logger := quietLogger()
	dispatcher := command.NewDispatcher(mx, registry, permissions.NewGate(mx), logger)
	joiner := newTestJoiner(mx)
	outbound := make(chan models.OutboundMessage, 16)

	loop := NewEventLoop(mx, registry, dispatcher, joiner, outbound, "!", time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	return &eventLoopFixture{
		loop:     loop,
		mx:       mx,
		nc:       nc,
		registry: registry,
		outbound: outbound,
		cancel:   cancel,
	}
}

func (f *eventLoopFixture) message(roomID, sender, body string) matrix.MessageEvent {
	return matrix.MessageEvent{
		RoomID:    roomID,
		Sender:    sender,
		EventID:   "$event:example.org",
		Body:      body,
		Timestamp: time.Now().Add(time.Minute),
	}
}

func TestEventLoopDispatchesPing(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()

	done := make(chan struct{})
	f.mx.On("SendText", mock.Anything, "!room:example.org", "🏓 Pong!").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "!ping")
	waitForCall(t, done)

	f.mx.AssertExpectations(t)
}

func TestEventLoopForwardsOutbound(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()
	ctx := context.Background()

	expectHealthyRoom(f.nc, "lobby", "hunter2", 2)
	require.NoError(t, f.registry.Create(ctx, "!room:example.org", "lobby", "hunter2"))

	done := make(chan struct{})
	f.mx.On("DisplayName", mock.Anything, "!room:example.org", "@alice:example.org").
		Return("Alice", nil).Once()
	f.mx.On("MarkRead", mock.Anything, "!room:example.org", "$event:example.org").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "hello over there")
	waitForCall(t, done)

	select {
	case msg := <-f.outbound:
		assert.Equal(t, "lobby", msg.RoomName)
		assert.Equal(t, "hunter2", msg.RoomPassword)
		assert.Equal(t, "Alice", msg.Username)
		assert.Equal(t, "hello over there", msg.Body)
	default:
		t.Fatal("expected an outbound message")
	}

	// The cursor skips past the message the bridge just sent.
	mapping, err := f.registry.Status(ctx, "!room:example.org")
	require.NoError(t, err)
	assert.Equal(t, 3, mapping.MessageCounter)

	f.mx.AssertExpectations(t)
}

func TestEventLoopUsesUsernameOverride(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()
	ctx := context.Background()

	expectHealthyRoom(f.nc, "lobby", "hunter2", 0)
	require.NoError(t, f.registry.Create(ctx, "!room:example.org", "lobby", "hunter2"))
	require.NoError(t, f.registry.SetUsername(ctx, "!room:example.org", "@alice:example.org", "nightowl"))

	done := make(chan struct{})
	f.mx.On("MarkRead", mock.Anything, "!room:example.org", "$event:example.org").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "hello")
	waitForCall(t, done)

	msg := <-f.outbound
	assert.Equal(t, "nightowl", msg.Username)
	f.mx.AssertNotCalled(t, "DisplayName", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventLoopIgnoresOwnMessages(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()

	f.mx.events <- f.message("!room:example.org", "@bridge:example.org", "hello")

	// A sentinel command proves the loop got past the ignored event.
	done := make(chan struct{})
	f.mx.On("SendText", mock.Anything, "!room:example.org", "🏓 Pong!").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })
	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "!ping")
	waitForCall(t, done)

	assert.Empty(t, f.outbound)
}

func TestEventLoopIgnoresMessagesFromBeforeStartup(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()

	old := f.message("!room:example.org", "@alice:example.org", "!ping")
	old.Timestamp = time.Now().Add(-time.Hour)
	f.mx.events <- old

	done := make(chan struct{})
	f.mx.On("SendText", mock.Anything, "!room:example.org", "🏓 Pong!").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })
	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "!ping")
	waitForCall(t, done)

	f.mx.AssertNumberOfCalls(t, "SendText", 1)
}

func TestEventLoopIgnoresUnbridgedRoomChatter(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()

	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "just chatting")

	done := make(chan struct{})
	f.mx.On("SendText", mock.Anything, "!room:example.org", "🏓 Pong!").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })
	f.mx.events <- f.message("!room:example.org", "@alice:example.org", "!ping")
	waitForCall(t, done)

	assert.Empty(t, f.outbound)
	f.mx.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventLoopAbortsOutboundSendWhenContextEnds(t *testing.T) {
	metrics.Reset()
	registry, nc, _ := newTestRegistry(t)
	mx := newMockMatrixClient()
	mx.On("UserID").Return("@bridge:example.org").Maybe()
	mx.On("DisplayName", mock.Anything, "!room:example.org", "@alice:example.org").
		Return("Alice", nil).Once()

	logger := quietLogger()
	dispatcher := command.NewDispatcher(mx, registry, permissions.NewGate(mx), logger)
	// Unbuffered queue with no consumer: the enqueue can never complete.
	outbound := make(chan models.OutboundMessage)
	loop := NewEventLoop(mx, registry, dispatcher, newTestJoiner(mx), outbound, "!", time.Second, logger)

	expectHealthyRoom(nc, "lobby", "hunter2", 4)
	require.NoError(t, registry.Create(context.Background(), "!room:example.org", "lobby", "hunter2"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ev := matrix.MessageEvent{
		RoomID:    "!room:example.org",
		Sender:    "@alice:example.org",
		EventID:   "$event:example.org",
		Body:      "hello",
		Timestamp: time.Now(),
	}
	done := make(chan struct{})
	go func() {
		loop.forwardOutbound(ctx, ev)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwardOutbound did not unblock when the context ended")
	}

	// Nothing was delivered, so the cursor must not have advanced and no
	// read receipt may have been sent.
	mapping, err := registry.Status(context.Background(), "!room:example.org")
	require.NoError(t, err)
	assert.Equal(t, 4, mapping.MessageCounter)
	mx.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventLoopAcceptsInvites(t *testing.T) {
	f := newEventLoopFixture(t)
	defer f.cancel()

	done := make(chan struct{})
	f.mx.On("JoinRoom", mock.Anything, "!invited:example.org").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	f.mx.events <- matrix.InviteEvent{RoomID: "!invited:example.org"}
	waitForCall(t, done)

	f.mx.AssertExpectations(t)
}
