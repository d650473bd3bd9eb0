package bridge

import (
	"context"

	"netchatbridge/pkg/matrix"

	"github.com/stretchr/testify/mock"
)

type mockMatrixClient struct {
	mock.Mock
	events chan matrix.Event
}

func newMockMatrixClient() *mockMatrixClient {
	return &mockMatrixClient{events: make(chan matrix.Event, 16)}
}

func (m *mockMatrixClient) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockMatrixClient) Events() <-chan matrix.Event {
	return m.events
}

func (m *mockMatrixClient) UserID() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockMatrixClient) JoinRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *mockMatrixClient) JoinedRooms(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockMatrixClient) SendText(ctx context.Context, roomID, text string) error {
	args := m.Called(ctx, roomID, text)
	return args.Error(0)
}

func (m *mockMatrixClient) SendHTML(ctx context.Context, roomID, html string) error {
	args := m.Called(ctx, roomID, html)
	return args.Error(0)
}

func (m *mockMatrixClient) SetTyping(ctx context.Context, roomID string, typing bool) error {
	args := m.Called(ctx, roomID, typing)
	return args.Error(0)
}

func (m *mockMatrixClient) MarkRead(ctx context.Context, roomID, eventID string) error {
	args := m.Called(ctx, roomID, eventID)
	return args.Error(0)
}

func (m *mockMatrixClient) PowerLevel(ctx context.Context, roomID, userID string) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockMatrixClient) DisplayName(ctx context.Context, roomID, userID string) (string, error) {
	args := m.Called(ctx, roomID, userID)
	return args.String(0), args.Error(1)
}

type mockNetChatClient struct {
	mock.Mock
}

func (m *mockNetChatClient) FetchRoom(ctx context.Context, name, password string) (string, error) {
	args := m.Called(ctx, name, password)
	return args.String(0), args.Error(1)
}

func (m *mockNetChatClient) MessageCount(ctx context.Context, name, password string) (int, error) {
	args := m.Called(ctx, name, password)
	return args.Int(0), args.Error(1)
}

func (m *mockNetChatClient) CachedMessageCount(ctx context.Context, name, password string) (int, error) {
	args := m.Called(ctx, name, password)
	return args.Int(0), args.Error(1)
}

func (m *mockNetChatClient) RawMessages(ctx context.Context, name, password string) ([]string, error) {
	args := m.Called(ctx, name, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockNetChatClient) SendMessage(ctx context.Context, name, password, username, body string) error {
	args := m.Called(ctx, name, password, username, body)
	return args.Error(0)
}

func (m *mockNetChatClient) IsInitializing(ctx context.Context, name, password string) (bool, error) {
	args := m.Called(ctx, name, password)
	return args.Bool(0), args.Error(1)
}

func (m *mockNetChatClient) IsCorrectPassword(ctx context.Context, name, password string) (bool, error) {
	args := m.Called(ctx, name, password)
	return args.Bool(0), args.Error(1)
}
