package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/handler/chat"
	"github.com/zhouzirui/nova-companion/internal/handler/persona"
	"github.com/zhouzirui/nova-companion/internal/handler/speech"
	"github.com/zhouzirui/nova-companion/internal/middleware"
	modelchat "github.com/zhouzirui/nova-companion/internal/model/chat"
	personamodel "github.com/zhouzirui/nova-companion/internal/model/persona"
	"github.com/zhouzirui/nova-companion/pkg/logger"
	"github.com/zhouzirui/nova-companion/pkg/utils"
)

// Deps are the services behind the HTTP routes.
type Deps struct {
	Personas    personamodel.Store
	Replier     chat.Replier
	Transcriber speech.Transcriber
	Origins     []string
	Logger      logrus.FieldLogger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(deps.Origins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, modelchat.Health{Status: "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if deps.Personas != nil {
			persona.New(deps.Personas).RegisterRoutes(api)
		}

		chat.New(deps.Replier).RegisterRoutes(api)

		if deps.Transcriber != nil {
			speech.New(deps.Transcriber, deps.Replier, log).RegisterRoutes(api)
		}
	})

	return r
}
