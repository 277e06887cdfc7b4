package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tablewise/floorstaff-backend/api/controllers"
	"github.com/tablewise/floorstaff-backend/api/middleware"
	"github.com/tablewise/floorstaff-backend/internal/assignments"
	"github.com/tablewise/floorstaff-backend/internal/realtime"
	"github.com/tablewise/floorstaff-backend/pkg/auth/session"
	"github.com/tablewise/floorstaff-backend/pkg/config"
	"github.com/tablewise/floorstaff-backend/pkg/db"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
	"github.com/tablewise/floorstaff-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface: health probes, the staff assignment
// API, the realtime WebSocket, and the internal endpoints called by the
// order and reservation services.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	sessions session.AccessSessionChecker,
	engine assignments.Service,
	factory assignments.Factory,
	hub *realtime.Hub,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Realtime.AllowAllOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	staffRoles := []string{
		string(enums.StaffRoleFloor),
		string(enums.StaffRoleManager),
	}

	r.Route("/api/v1/staff", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(logg, staffRoles...))

		r.Get("/assignments", controllers.ListAssignments(engine, logg))
		r.Post("/assignments/{assignmentId}/claim", controllers.ClaimAssignment(engine, logg))
		r.Post("/assignments/{assignmentId}/release", controllers.ReleaseAssignment(engine, logg))
		r.Post("/assignments/{assignmentId}/complete", controllers.CompleteAssignment(engine, logg))

		r.Get("/assignments/ws", controllers.StaffEvents(hub, cfg.Realtime, logg))
	})

	r.Route("/api/internal/v1/assignments", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(logg, string(enums.StaffRoleService)))

		r.Post("/ensure", controllers.EnsureAssignment(factory, logg))
		r.Post("/refresh", controllers.RefreshAssignment(factory, logg))
		r.Post("/cancel", controllers.CancelAssignment(factory, logg))
	})

	return r
}
