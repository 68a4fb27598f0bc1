package handler

import (
	"net/http"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs.
type Services struct {
	Sessions   *service.SessionService
	Stages     *service.StageService
	Onboarding *service.OnboardingService
	Facilities *service.FacilityService
	Utilities  *service.UtilityAuthService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract for the DCarbon customer dashboard.
func NewRouter(svcs Services, storePing func() error, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(storePing))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Session creation is the only unauthenticated API route: the
		// caller proves identity with the upstream login response itself.
		r.Post("/session", createSessionHandler(svcs.Sessions, logger))

		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(svcs.Sessions, logger))

			// Session
			r.Get("/session", getSessionHandler(logger))
			r.Put("/session/display", updateDisplayHandler(svcs.Sessions, logger))
			r.Put("/session/dashboard-visited", markDashboardVisitedHandler(svcs.Sessions, logger))
			r.Post("/session/agreement", stageAgreementHandler(svcs.Sessions, logger))
			r.Delete("/session", deleteSessionHandler(svcs.Sessions, logger))

			// Onboarding stage + wizard
			r.Get("/users/{userId}/onboarding/stage", getStageHandler(svcs.Stages, logger))
			r.Get("/users/{userId}/onboarding/resume", resumeHandler(svcs.Onboarding, logger))
			r.Post("/users/{userId}/onboarding/next", nextStepHandler(svcs.Onboarding, logger))

			// Registration writes
			r.Get("/users/{userId}/registration", getRegistrationHandler(svcs.Onboarding, logger))
			r.Put("/users/{userId}/role", updateRoleHandler(svcs.Onboarding, logger))
			r.Put("/users/{userId}/owner-details", ownerDetailsHandler(svcs.Onboarding, logger))
			r.Put("/users/{userId}/terms", acceptTermsHandler(svcs.Onboarding, logger))
			r.Put("/users/{userId}/financial-info", financialInfoHandler(svcs.Onboarding, logger))
			r.Post("/users/{userId}/operators/invite", inviteOperatorHandler(svcs.Onboarding, logger))

			// Facilities
			r.Get("/users/{userId}/facilities", listFacilitiesHandler(svcs.Facilities, logger))
			r.Post("/users/{userId}/facilities", createFacilityHandler(svcs.Facilities, logger))
			r.Put("/facilities/{facilityId}/financial-agreement", attachAgreementHandler(svcs.Facilities, logger))

			// Utility authorization
			r.Get("/utilities", listProvidersHandler(svcs.Utilities))
			r.Get("/utilities/authorization", authorizationBranchHandler(svcs.Utilities, logger))
			r.Post("/users/{userId}/utilities/green-button", greenButtonHandler(svcs.Utilities, logger))
			r.Post("/users/{userId}/utilities/green-button/email", greenButtonRetryHandler(svcs.Utilities, logger))
			r.Post("/users/{userId}/utilities/refresh", refreshMetersHandler(svcs.Utilities, logger))

			// Onboarding funnel metrics
			r.Get("/metrics/onboarding", onboardingMetricsHandler(metrics))
		})
	})

	return r
}

func healthzHandler(storePing func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		status := "healthy"
		sessionStore := "healthy"
		if storePing != nil {
			if err := storePing(); err != nil {
				status = "degraded"
				sessionStore = "unhealthy"
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":       status,
			"sessionStore": sessionStore,
			"checkedAt":    now,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func onboardingMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetOnboardingSnapshot())
	}
}
