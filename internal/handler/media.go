package handler

import (
	"net/http"
	"strconv"

	"tush00nka/bbbab_chatsync/internal/pkg/httputils"
	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

const maxUploadSize = 50 << 20

type MediaHandler struct {
	chatService service.ChatService
	store       service.MediaStore
}

func NewMediaHandler(chatService service.ChatService, store service.MediaStore) *MediaHandler {
	return &MediaHandler{chatService: chatService, store: store}
}

func (h *MediaHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/media", h.upload).Methods("POST", "OPTIONS")
}

// @Summary Upload media
// @Description Загружает файл для последующей отправки в чат
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param chat_id formData int true "Chat ID"
// @Param file formData file true "File"
// @Success 201 {object} model.FileMetadata
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 403 {object} httputils.ErrorResponse
// @Failure 500 {object} httputils.ErrorResponse
// @Router /v1/media [post]
func (h *MediaHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		httputils.ResponseKindError(w, http.StatusBadRequest, string(service.KindValidation), "invalid multipart form")
		return
	}

	chatID, err := strconv.ParseUint(r.FormValue("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		httputils.ResponseKindError(w, http.StatusBadRequest, string(service.KindValidation), "chat_id is required")
		return
	}

	userID := currentUser(r)
	if err := h.chatService.RequireParticipant(r.Context(), uint(chatID), userID); err != nil {
		writeError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputils.ResponseKindError(w, http.StatusBadRequest, string(service.KindValidation), "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	meta, err := h.store.UploadFile(r.Context(), file, header.Filename, contentType, userID, uint(chatID))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Uint64("chat_id", chatID).Msg("Media upload failed")
		writeError(w, r, service.Wrap(err, "failed to upload file"))
		return
	}
	meta.Size = header.Size

	httputils.ResponseJSON(w, http.StatusCreated, meta)
}
