// Package server exposes the application services over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/roundtable/internal/analytics"
	"github.com/mmynk/roundtable/internal/auth"
	"github.com/mmynk/roundtable/internal/middleware"
	"github.com/mmynk/roundtable/internal/models"
	"github.com/mmynk/roundtable/internal/service"
	"github.com/mmynk/roundtable/internal/strategy"
)

// Server wires the application services into an HTTP router.
type Server struct {
	auth        *service.AuthService
	groups      *service.GroupService
	turns       *service.TurnService
	analytics   *analytics.Service
	coordinator *strategy.Coordinator
	jwtManager  *auth.JWTManager
}

// New creates the HTTP server facade.
func New(
	authService *service.AuthService,
	groupService *service.GroupService,
	turnService *service.TurnService,
	analyticsService *analytics.Service,
	coordinator *strategy.Coordinator,
	jwtManager *auth.JWTManager,
) *Server {
	return &Server{
		auth:        authService,
		groups:      groupService,
		turns:       turnService,
		analytics:   analyticsService,
		coordinator: coordinator,
		jwtManager:  jwtManager,
	}
}

// Router builds the route tree. Everything under /api except
// registration and login requires a bearer token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logging)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.jwtManager))

			r.Get("/auth/me", s.handleMe)
			r.Get("/strategies", s.handleListStrategies)

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", s.handleCreateGroup)
				r.Get("/", s.handleListGroups)
				r.Post("/join", s.handleJoinGroup)

				r.Route("/{groupID}", func(r chi.Router) {
					r.Get("/", s.handleGetGroup)
					r.Post("/leave", s.handleLeaveGroup)
					r.Post("/archive", s.handleArchiveGroup)
					r.Patch("/settings", s.handleUpdateSettings)
					r.Put("/order", s.handleReorderMembers)
					r.Delete("/members/{userID}", s.handleRemoveMember)
					r.Put("/members/{userID}/role", s.handleUpdateMemberRole)

					r.Get("/next", s.handleNextUser)
					r.Post("/turns", s.handleStartTurn)
					r.Get("/turns", s.handleGroupHistory)
					r.Get("/turns/active", s.handleActiveTurn)
					r.Get("/statistics", s.handleGroupStatistics)

					r.Route("/analytics", func(r chi.Router) {
						r.Get("/", s.handleGroupAnalytics)
						r.Get("/fairness", s.handleGroupFairness)
						r.Get("/percentiles", s.handleGroupPercentiles)
						r.Get("/insights", s.handleGroupInsights)
						r.Get("/performance", s.handleGroupPerformance)
						r.Get("/activity/weekly", s.handleWeeklyActivity)
						r.Get("/activity/monthly", s.handleMonthlyActivity)
						r.Get("/activity/peak", s.handlePeakUsage)
						r.Get("/membership", s.handleMembershipTrends)
						r.Delete("/cache", s.handleInvalidateGroupCache)
					})
				})
			})

			r.Route("/turns/{turnID}", func(r chi.Router) {
				r.Post("/complete", s.handleCompleteTurn)
				r.Post("/skip", s.handleSkipTurn)
				r.Post("/force-end", s.handleForceEndTurn)
			})

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/turns", s.handleUserHistory)
				r.Get("/statistics", s.handleUserStatistics)
				r.Get("/trends", s.handleUserTrends)
				r.Get("/percentiles", s.handleUserPercentiles)
				r.Delete("/analytics/cache", s.handleInvalidateUserCache)
			})
		})
	})

	return r
}

// decode reads a JSON request body into dst.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrGroupNotFound),
		errors.Is(err, models.ErrTurnNotFound),
		errors.Is(err, models.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNotAMember),
		errors.Is(err, models.ErrNotAuthorized),
		errors.Is(err, models.ErrNotTurnOwner):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrTurnAlreadyActive),
		errors.Is(err, models.ErrNotYourTurn),
		errors.Is(err, models.ErrTurnNotActive),
		errors.Is(err, models.ErrGroupNotActive),
		errors.Is(err, auth.ErrEmailExists):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnknownStrategy),
		errors.Is(err, models.ErrInvalidConfiguration),
		errors.Is(err, auth.ErrWeakPassword):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
