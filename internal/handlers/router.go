// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/middleware"
	"github.com/jason-s-yu/tabletop/internal/service"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every table route behind request logging.
func NewRouter(logger *logrus.Logger, svc *service.TableService, hub *events.Hub, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", AccountHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/tables", func(r chi.Router) {
		r.Post("/", CreateTableHandler(logger, svc))
		r.Get("/", ListTablesHandler(logger, svc))
		r.Get("/{id}", GetTableHandler(logger, svc))
		r.Get("/{id}/log", TableLogHandler(logger, svc))
		r.Get("/{id}/events", TableEventsHandler(logger, svc, hub))
		r.Post("/{id}/{operation}", TableOperationHandler(logger, svc))
	})
	r.Route("/accounts/{account}", func(r chi.Router) {
		r.Get("/tables", ListAccountTablesHandler(logger, svc))
		r.Get("/ratings/{game}", RatingHandler(logger, svc))
	})
	return r
}
