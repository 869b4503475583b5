package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/api"
	apiMiddleware "github.com/castpost/castpost-api/internal/api/middleware"
	"github.com/castpost/castpost-api/internal/events"
)

// emittingDispatcher routes post-now requests through the event emitter so
// the API layer stays decoupled from the dispatch service.
type emittingDispatcher struct {
	emitter events.EventEmitter
}

func (d *emittingDispatcher) PostNow(ctx context.Context, taskID uuid.UUID) error {
	return d.emitter.EmitEvent(ctx, events.NewDispatchRequestEvent(taskID, events.ReasonPostNow))
}

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	taskHandler := api.NewTaskHandler(
		app.taskStore,
		app.selectionStore,
		app.attemptStore,
		app.errorLogStore,
		&emittingDispatcher{emitter: app.eventEmitter},
		app.logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/tasks/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Post("/publish", taskHandler.PublishNow)
				r.Get("/attempts", taskHandler.ListAttempts)
				r.Get("/errors", taskHandler.ListErrorLogs)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
