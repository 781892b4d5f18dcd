package handler

import (
	"context"
	"io"
	"net/http"

	"tush00nka/bbbab_chatsync/internal/gateway"
	"tush00nka/bbbab_chatsync/internal/metrics"
	"tush00nka/bbbab_chatsync/internal/pkg/httputils"
	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/gorilla/mux"
)

const maxGatewayBody = 64 << 10

// Dispatcher выполняет действие шлюза от имени пользователя
type Dispatcher interface {
	Dispatch(ctx context.Context, userID uint, action gateway.Action) (any, error)
}

type GatewayHandler struct {
	dispatcher Dispatcher
}

func NewGatewayHandler(dispatcher Dispatcher) *GatewayHandler {
	return &GatewayHandler{dispatcher: dispatcher}
}

func (h *GatewayHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/chat", h.handle).Methods("POST", "OPTIONS")
}

// @Summary Chat gateway
// @Description Единая точка входа: send, edit, delete, react, unreact, star, unstar, forward, mark_read, list_chats, fetch_messages
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param action body object true "Action envelope: {\"action\": \"send\", ...}"
// @Success 200 {object} object
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 403 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Failure 429 {object} httputils.ErrorResponse
// @Failure 500 {object} httputils.ErrorResponse
// @Router /v1/chat [post]
func (h *GatewayHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxGatewayBody+1))
	if err != nil {
		writeError(w, r, service.Errorf(service.KindValidation, "failed to read request body"))
		return
	}
	if len(body) > maxGatewayBody {
		writeError(w, r, service.Errorf(service.KindValidation, "request body is too large"))
		return
	}

	action, err := gateway.Decode(body)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("unknown", string(service.KindOf(err))).Inc()
		writeError(w, r, err)
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), currentUser(r), action)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(action.Name(), string(service.KindOf(err))).Inc()
		writeError(w, r, err)
		return
	}

	metrics.GatewayRequests.WithLabelValues(action.Name(), "ok").Inc()
	httputils.ResponseJSON(w, http.StatusOK, result)
}
