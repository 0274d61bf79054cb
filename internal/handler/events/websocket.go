package events

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chathandler "github.com/nuanyu/companion/backend/internal/handler/chat"
	"github.com/nuanyu/companion/backend/internal/service/notify"
	"github.com/nuanyu/companion/backend/pkg/utils"
)

const writeTimeout = 5 * time.Second

// Handler streams milestone awards to the notification UI over a
// websocket. Read-only from the client's perspective.
type Handler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// New 创建里程碑通知处理器。
func New(hub *notify.Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册通知相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/milestones", h.handleMilestoneStream)
}

func (h *Handler) handleMilestoneStream(w http.ResponseWriter, r *http.Request) {
	userID := chathandler.UserID(r)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(events)

	log.Printf("[events] milestone stream opened for user=%s", userID)

	// Drain client frames so ping/pong and close are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("[events] milestone stream closed for user=%s", userID)
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.UserID != userID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("[events] write failed for user=%s: %v", userID, err)
				return
			}
		}
	}
}
