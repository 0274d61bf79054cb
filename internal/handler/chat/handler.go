package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/nuanyu/companion/backend/internal/service/chat"
	"github.com/nuanyu/companion/backend/pkg/utils"
)

// Handler 聊天管线的HTTP处理器。
type Handler struct {
	pipeline *chatservice.Pipeline
}

// New 创建聊天处理器。
func New(pipeline *chatservice.Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// RegisterRoutes 注册聊天相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/messages", h.handleSendMessage)
	r.Get("/chat/history/{companionID}", h.handleHistory)
}

// UserID extracts the authenticated user from the gateway-injected header.
// Authentication itself is an upstream concern.
func UserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	var payload struct {
		CompanionID string `json:"companionId"`
		Content     string `json:"content"`
		MessageType string `json:"messageType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.CompanionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "companionId is required")
		return
	}

	result, err := h.pipeline.SendMessage(r.Context(), userID, payload.CompanionID, payload.Content, payload.MessageType)
	if err != nil {
		h.respondSendError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// respondSendError maps the pipeline's outcome taxonomy onto distinct
// statuses and machine-readable codes so the client can offer an upgrade
// path or an edit prompt rather than a generic error.
func (h *Handler) respondSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage), errors.Is(err, chatservice.ErrMessageTooLong):
		utils.RespondErrorCode(w, http.StatusBadRequest, "invalid_message", err.Error())
	case errors.Is(err, chatservice.ErrQuotaExceeded):
		utils.RespondErrorCode(w, http.StatusTooManyRequests, "quota_exceeded",
			"今日聊天次数已用完，升级会员可以无限畅聊哦")
	case errors.Is(err, chatservice.ErrContentRejected):
		utils.RespondErrorCode(w, http.StatusUnprocessableEntity, "content_rejected",
			"这条消息包含不适合的内容，修改后再发一次吧")
	case errors.Is(err, chatservice.ErrCompanionMissing):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to process message")
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	companionID := chi.URLParam(r, "companionID")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.pipeline.History(r.Context(), userID, companionID, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
