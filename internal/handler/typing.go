package handler

import (
	"context"
	"net/http"
	"strconv"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/presence"
	"tush00nka/bbbab_chatsync/internal/pkg/httputils"
	"tush00nka/bbbab_chatsync/internal/service"
	"tush00nka/bbbab_chatsync/internal/ws"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// UserDirectory отдает профиль пользователя для отображаемого имени
type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

type TypingHandler struct {
	chatService service.ChatService
	users       UserDirectory
	transport   presence.Transport
	hub         *ws.Hub
	upgrader    *websocket.Upgrader
}

func NewTypingHandler(
	chatService service.ChatService,
	users UserDirectory,
	transport presence.Transport,
	hub *ws.Hub,
	upgrader *websocket.Upgrader,
) *TypingHandler {
	return &TypingHandler{
		chatService: chatService,
		users:       users,
		transport:   transport,
		hub:         hub,
		upgrader:    upgrader,
	}
}

func (h *TypingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/typing", h.serve).Methods("GET")
}

// @Summary Typing socket
// @Description WebSocket чата: индикаторы набора и живые события сообщений. Ничего не сохраняется.
// @Tags presence
// @Param chat_id query int true "Chat ID"
// @Param access_token query string false "Bearer token"
// @Success 101
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 403 {object} httputils.ErrorResponse
// @Router /v1/typing [get]
func (h *TypingHandler) serve(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseUint(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		httputils.ResponseKindError(w, http.StatusBadRequest, string(service.KindValidation), "chat_id is required")
		return
	}

	userID := currentUser(r)
	if err := h.chatService.RequireParticipant(r.Context(), uint(chatID), userID); err != nil {
		writeError(w, r, err)
		return
	}

	displayName := "Someone"
	if user, err := h.users.FindByID(r.Context(), userID); err == nil {
		user.EnsureDisplayName()
		displayName = user.DisplayName
	} else {
		hlog.FromRequest(r).Warn().Err(err).Uint("user_id", userID).Msg("Display name lookup failed")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		hlog.FromRequest(r).Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	// контекст запроса отменяется после возврата из обработчика
	ctx := context.WithoutCancel(r.Context())
	client := ws.NewClient(ctx, conn, userID, uint(chatID), displayName)
	room := h.hub.GetRoom(uint(chatID))
	if !room.RegisterClient(client) {
		client.Close()
		return
	}

	go func() {
		if err := client.WritePump(); err != nil {
			log.Debug().Err(err).Uint("user_id", userID).Msg("Websocket write failed")
		}
	}()

	typing := false
	client.ReadPump(func(c *ws.Client, ev ws.InEvent) {
		if ev.Type != ws.EventTypeTyping {
			return
		}
		// сигнал остановки не троттлится, иначе индикатор может зависнуть
		if ev.IsTyping && !c.CheckRateLimit() {
			return
		}
		typing = ev.IsTyping
		h.publish(ctx, c, ev.IsTyping)
	})

	room.UnregisterClient(client)
	if typing {
		h.publish(ctx, client, false)
	}
}

func (h *TypingHandler) publish(ctx context.Context, c *ws.Client, isTyping bool) {
	err := h.transport.Publish(ctx, model.TypingEvent{
		ChatID:      c.ChatID,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		IsTyping:    isTyping,
	})
	if err != nil {
		log.Warn().Err(err).Uint("chat_id", c.ChatID).Msg("Typing event dropped")
	}
}
