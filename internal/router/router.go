package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/config"
	"github.com/JoshiAarya/ai-ticket-app/internal/handlers"
	"github.com/JoshiAarya/ai-ticket-app/internal/middleware"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

type Deps struct {
	Auth    *service.AuthService
	Tickets *service.TicketService
	// DB is pinged by /healthz; nil when running on the in-memory store.
	DB handlers.Pinger
}

func New(log zerolog.Logger, d Deps, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	prod := cfg.Production()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))

	// Health + metrics
	r.Get("/healthz", handlers.Health(d.DB))
	r.Handle("/metrics", promhttp.Handler())

	ah := handlers.NewAuthHTTP(d.Auth, prod, log)
	uh := handlers.NewUserHTTP(d.Auth, log)
	th := handlers.NewTicketHTTP(d.Tickets, log)
	rh := handlers.NewReportsHTTP(d.Tickets, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.WithAuth(log, d.Auth, prod))

		r.Route("/auth", func(r chi.Router) {
			// credential endpoints get a tighter per-IP budget
			r.With(httprate.LimitByIP(20, time.Minute)).Post("/signup", ah.Signup())
			r.With(httprate.LimitByIP(20, time.Minute)).Post("/login", ah.Login())
			r.Post("/logout", ah.Logout())

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/me", ah.Me())
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(models.RoleAdmin))
				r.Post("/update-user", uh.Update())
				r.Get("/users", uh.List())
			})
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", th.List())
			r.Post("/", th.Create())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", th.Get())
				r.Patch("/done", th.MarkDone())
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireRoles(models.RoleModerator, models.RoleAdmin))
			r.Get("/summary", rh.Summary())
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.Error(w, http.StatusNotFound, "not found")
	})
	return r
}
