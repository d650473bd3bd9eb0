package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"netchatbridge/internal/metrics"
	"netchatbridge/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func waitForCall(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestInboundForwarderDelivers(t *testing.T) {
	metrics.Reset()
	mx := newMockMatrixClient()
	queue := make(chan models.InboundMessage, 4)
	forwarder := NewInboundForwarder(mx, queue, time.Second, quietLogger())

	done := make(chan struct{})
	mx.On("JoinedRooms", mock.Anything).Return([]string{"!room:example.org"}, nil).Once()
	mx.On("SendHTML", mock.Anything, "!room:example.org", "<b>hi</b>").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	require.NoError(t, forwarder.Start(context.Background()))
	defer forwarder.Stop()

	queue <- models.InboundMessage{RoomID: "!room:example.org", Content: "<b>hi</b>"}
	waitForCall(t, done)

	mx.AssertExpectations(t)
}

func TestInboundForwarderDropsWhenNotJoined(t *testing.T) {
	metrics.Reset()
	mx := newMockMatrixClient()
	queue := make(chan models.InboundMessage, 4)
	forwarder := NewInboundForwarder(mx, queue, time.Second, quietLogger())

	done := make(chan struct{})
	mx.On("JoinedRooms", mock.Anything).
		Return([]string{"!other:example.org"}, nil).Once().
		Run(func(mock.Arguments) { close(done) })

	require.NoError(t, forwarder.Start(context.Background()))

	queue <- models.InboundMessage{RoomID: "!room:example.org", Content: "<b>hi</b>"}
	waitForCall(t, done)
	forwarder.Stop()

	mx.AssertNotCalled(t, "SendHTML", mock.Anything, mock.Anything, mock.Anything)
	snapshot := metrics.Default().Export()
	assert.Equal(t, int64(1), snapshot.Counters[metrics.InboundDropped])
}

func TestOutboundForwarderDelivers(t *testing.T) {
	metrics.Reset()
	nc := &mockNetChatClient{}
	queue := make(chan models.OutboundMessage, 4)
	forwarder := NewOutboundForwarder(nc, queue, time.Second, quietLogger())

	done := make(chan struct{})
	nc.On("SendMessage", mock.Anything, "lobby", "hunter2", "alice", "hello").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	require.NoError(t, forwarder.Start(context.Background()))
	defer forwarder.Stop()

	queue <- models.OutboundMessage{
		RoomName:     "lobby",
		RoomPassword: "hunter2",
		Username:     "alice",
		Body:         "hello",
	}
	waitForCall(t, done)

	nc.AssertExpectations(t)
}

func TestOutboundForwarderDropsFailedSend(t *testing.T) {
	metrics.Reset()
	nc := &mockNetChatClient{}
	queue := make(chan models.OutboundMessage, 4)
	forwarder := NewOutboundForwarder(nc, queue, time.Second, quietLogger())

	first := make(chan struct{})
	second := make(chan struct{})
	// The failed message must not be retried; the next one still goes out.
	nc.On("SendMessage", mock.Anything, "lobby", "hunter2", "alice", "dropped").
		Return(errors.New("rate limited")).Once().
		Run(func(mock.Arguments) { close(first) })
	nc.On("SendMessage", mock.Anything, "lobby", "hunter2", "alice", "kept").
		Return(nil).Once().
		Run(func(mock.Arguments) { close(second) })

	require.NoError(t, forwarder.Start(context.Background()))

	queue <- models.OutboundMessage{RoomName: "lobby", RoomPassword: "hunter2", Username: "alice", Body: "dropped"}
	queue <- models.OutboundMessage{RoomName: "lobby", RoomPassword: "hunter2", Username: "alice", Body: "kept"}
	waitForCall(t, first)
	waitForCall(t, second)
	forwarder.Stop()

	nc.AssertExpectations(t)
	snapshot := metrics.Default().Export()
	assert.Equal(t, int64(1), snapshot.Counters[metrics.OutboundSendFailures])
	assert.Equal(t, int64(1), snapshot.Counters[metrics.OutboundForwarded])
}

func TestForwarderStartTwice(t *testing.T) {
	mx := newMockMatrixClient()
	forwarder := NewInboundForwarder(mx, make(chan models.InboundMessage), time.Second, quietLogger())

	require.NoError(t, forwarder.Start(context.Background()))
	assert.Error(t, forwarder.Start(context.Background()))
	forwarder.Stop()
}
