package companion

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	chathandler "github.com/nuanyu/companion/backend/internal/handler/chat"
	"github.com/nuanyu/companion/backend/internal/storage"
	"github.com/nuanyu/companion/backend/pkg/utils"
)

// Handler exposes read-only companion lookups; authoring and deletion live
// elsewhere.
type Handler struct {
	store *storage.CompanionStore
}

// New 创建伴侣处理器。
func New(store *storage.CompanionStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册伴侣相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/companions", h.handleList)
	r.Get("/companions/{companionID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := chathandler.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	companions, err := h.store.ListForUser(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load companions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"companions": companions})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := chathandler.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	comp, err := h.store.GetForUser(r.Context(), chi.URLParam(r, "companionID"), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(w, http.StatusNotFound, "companion not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load companion")
		return
	}
	utils.RespondJSON(w, http.StatusOK, comp)
}
