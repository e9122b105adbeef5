package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BuzzLyutic/todo-list/pkg/respond"
)

// NewRouter собирает роутер: старые адреса веб-страницы и JSON API под /api/tasks
func NewRouter(h *TaskHandler, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares...)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", h.List)
	r.Get("/clear", h.Clear)
	r.Post("/addtask", h.Add)
	r.Get("/deltask", h.Delete)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Add)
		r.Delete("/", h.Clear)
		r.Delete("/{index}", h.Delete)
	})

	return r
}
