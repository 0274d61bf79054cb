package progress

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/nuanyu/companion/backend/internal/handler/chat"
	chatservice "github.com/nuanyu/companion/backend/internal/service/chat"
	"github.com/nuanyu/companion/backend/internal/service/progression"
	"github.com/nuanyu/companion/backend/pkg/utils"
)

// Handler surfaces relationship progress and the memory log to the
// presentation layer. Read-only.
type Handler struct {
	pipeline *chatservice.Pipeline
}

// New 创建关系进展处理器。
func New(pipeline *chatservice.Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// RegisterRoutes 注册进展相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/milestones", h.handleMilestoneTable)
	r.Get("/progress/{companionID}", h.handleProgress)
	r.Get("/progress/{companionID}/memories", h.handleMemories)
}

func (h *Handler) handleMilestoneTable(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"milestones": progression.Milestones()})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID := chathandler.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	prog, err := h.pipeline.Progress(r.Context(), userID, chi.URLParam(r, "companionID"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prog)
}

func (h *Handler) handleMemories(w http.ResponseWriter, r *http.Request) {
	userID := chathandler.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	fragments, err := h.pipeline.Memories(r.Context(), userID, chi.URLParam(r, "companionID"), limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load memories")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"memories": fragments})
}
