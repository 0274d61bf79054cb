package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/nuanyu/companion/backend/internal/handler/chat"
	companionhandler "github.com/nuanyu/companion/backend/internal/handler/companion"
	eventshandler "github.com/nuanyu/companion/backend/internal/handler/events"
	progresshandler "github.com/nuanyu/companion/backend/internal/handler/progress"
	middlewarePkg "github.com/nuanyu/companion/backend/internal/middleware"
	chatservice "github.com/nuanyu/companion/backend/internal/service/chat"
	"github.com/nuanyu/companion/backend/internal/service/notify"
	"github.com/nuanyu/companion/backend/internal/storage"
	"github.com/nuanyu/companion/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(pipeline *chatservice.Pipeline, companions *storage.CompanionStore, hub *notify.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chathandler.New(pipeline)
	companionHandler := companionhandler.New(companions)
	progressHandler := progresshandler.New(pipeline)
	eventsHandler := eventshandler.New(hub)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatHandler.RegisterRoutes(api)
		companionHandler.RegisterRoutes(api)
		progressHandler.RegisterRoutes(api)
		eventsHandler.RegisterRoutes(api)
	})

	return r
}
