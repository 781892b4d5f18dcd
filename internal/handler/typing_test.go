package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/pkg/auth"
	"tush00nka/bbbab_chatsync/internal/service"
	"tush00nka/bbbab_chatsync/internal/ws"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type typingFixture struct {
	server *httptest.Server
	hub    *ws.Hub
}

func newTypingFixture(t *testing.T, chats *MockChatService) *typingFixture {
	t.Helper()

	users := new(MockUserDirectory)
	users.On("FindByID", mock.Anything, uint(1)).Return(&model.User{Username: "alice", DisplayName: "Alice"}, nil)
	users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{Username: "bob"}, nil)

	hub := ws.NewHub()
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(Authenticate(auth.NewIdentity(testKey)))
	NewTypingHandler(chats, users, hubTransport{hub: hub}, hub, ws.NewUpgrader([]string{"*"})).RegisterRoutes(api)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
	})
	return &typingFixture{server: server, hub: hub}
}

func (f *typingFixture) dial(t *testing.T, userID uint, chatID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/api/v1/typing?chat_id=" + chatID + "&access_token=" + bearer(userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// room_info подтверждает регистрацию в комнате
	ev := readEvent(t, conn)
	require.Equal(t, ws.EventTypeRoomInfo, ev.Type)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.OutEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev ws.OutEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestTypingDeliveredToOthers(t *testing.T) {
	chats := new(MockChatService)
	chats.On("RequireParticipant", mock.Anything, uint(5), mock.Anything).Return(nil)
	f := newTypingFixture(t, chats)

	alice := f.dial(t, 1, "5")
	bob := f.dial(t, 2, "5")

	require.NoError(t, alice.WriteJSON(ws.InEvent{Type: ws.EventTypeTyping, IsTyping: true}))

	ev := readEvent(t, bob)
	assert.Equal(t, ws.EventTypeTyping, ev.Type)
	assert.Equal(t, uint(1), ev.UserID)
	assert.Equal(t, "Alice", ev.DisplayName)
	require.NotNil(t, ev.IsTyping)
	assert.True(t, *ev.IsTyping)

	require.NoError(t, bob.WriteJSON(ws.InEvent{Type: ws.EventTypeTyping, IsTyping: true}))
	ev = readEvent(t, alice)
	assert.Equal(t, uint(2), ev.UserID)
	assert.Equal(t, "bob", ev.DisplayName)
}

func TestTypingStopSentOnDisconnect(t *testing.T) {
	chats := new(MockChatService)
	chats.On("RequireParticipant", mock.Anything, uint(5), mock.Anything).Return(nil)
	f := newTypingFixture(t, chats)

	alice := f.dial(t, 1, "5")
	bob := f.dial(t, 2, "5")

	require.NoError(t, alice.WriteJSON(ws.InEvent{Type: ws.EventTypeTyping, IsTyping: true}))
	assert.True(t, *readEvent(t, bob).IsTyping)

	require.NoError(t, alice.Close())

	ev := readEvent(t, bob)
	assert.Equal(t, ws.EventTypeTyping, ev.Type)
	require.NotNil(t, ev.IsTyping)
	assert.False(t, *ev.IsTyping)
}

func TestTypingRejectsNonParticipant(t *testing.T) {
	chats := new(MockChatService)
	chats.On("RequireParticipant", mock.Anything, uint(6), uint(1)).Return(service.ErrNotParticipant)
	f := newTypingFixture(t, chats)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/api/v1/typing?chat_id=6&access_token=" + bearer(1)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestHubDeliversMessageEvents(t *testing.T) {
	chats := new(MockChatService)
	chats.On("RequireParticipant", mock.Anything, uint(5), mock.Anything).Return(nil)
	f := newTypingFixture(t, chats)

	bob := f.dial(t, 2, "5")

	content := "hello"
	f.hub.MessageCreated(&model.Message{ID: 77, ChatID: 5, SenderID: 1, Content: &content})
	ev := readEvent(t, bob)
	assert.Equal(t, ws.EventTypeMessageNew, ev.Type)
	assert.Equal(t, uint(77), ev.MessageID)

	f.hub.MessageDeleted(5, 77)
	ev = readEvent(t, bob)
	assert.Equal(t, ws.EventTypeMessageDeleted, ev.Type)
	assert.Equal(t, uint(5), ev.ChatID)
}
