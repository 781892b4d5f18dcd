package handler

import (
	"net/http"

	"tush00nka/bbbab_chatsync/internal/pkg/httputils"
	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/groups", h.createGroup).Methods("POST", "OPTIONS")
	router.HandleFunc("/direct", h.createDirect).Methods("POST", "OPTIONS")
}

// @Summary Create group
// @Description Создает группу; создатель становится администратором
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param group body service.GroupInput true "Group data"
// @Success 201 {object} service.GroupResult
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 500 {object} httputils.ErrorResponse
// @Router /v1/groups [post]
func (h *ChatHandler) createGroup(w http.ResponseWriter, r *http.Request) {
	var request service.GroupInput
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseKindError(w, http.StatusBadRequest, string(service.KindValidation), "invalid request format")
		return
	}

	result, err := h.chatService.CreateGroup(r.Context(), currentUser(r), request)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, result)
}

type directRequest struct {
	UserID uint `json:"user_id"`
}

// @Summary Direct chat
// @Description Находит или создает личный чат с пользователем
// @Tags chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param peer body directRequest true "Peer"
// @Success 200 {object} model.Chat
// @Success 201 {object} model.Chat
// @Failure 400 {object} httputils.ErrorResponse
// @Router /v1/direct [post]
func (h *ChatHandler) createDirect(w http.ResponseWriter, r *http.Request) {
	var request directRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseKindError(w, http.StatusBadRequest, string(service.KindValidation), "invalid request format")
		return
	}

	chat, created, err := h.chatService.CreateDirect(r.Context(), currentUser(r), request.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputils.ResponseJSON(w, status, chat)
}
