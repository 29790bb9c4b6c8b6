package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novagile/wareflow-backend/api/controllers"
	"github.com/novagile/wareflow-backend/api/middleware"
	"github.com/novagile/wareflow-backend/internal/audit"
	"github.com/novagile/wareflow-backend/internal/ledger"
	"github.com/novagile/wareflow-backend/internal/overrides"
	"github.com/novagile/wareflow-backend/internal/tasks"
	"github.com/novagile/wareflow-backend/pkg/config"
	"github.com/novagile/wareflow-backend/pkg/db"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/logger"
	"github.com/novagile/wareflow-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ledgerService ledger.Service,
	tasksService tasks.Service,
	overridesService overrides.Service,
	auditService audit.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	mutationPolicy := middleware.NewRateLimitPolicy(
		"mutations",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.UserLimit,
	)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(mutationPolicy, redisClient, logg))

		r.Route("/stock", func(r chi.Router) {
			r.Post("/movements", controllers.StockMovementApply(ledgerService, logg))
			r.Get("/balances", controllers.StockBalancesList(ledgerService, logg))
			r.Get("/ledger", controllers.StockLedgerList(ledgerService, logg))
			r.Get("/low", controllers.LowStockList(ledgerService, logg))
			r.Get("/skus/{skuID}", controllers.SkuInventory(ledgerService, logg))
			r.Get("/skus/{skuID}/total", controllers.SkuTotalStock(ledgerService, logg))
			r.Get("/locations/{locationID}", controllers.LocationInventory(ledgerService, logg))
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", controllers.TasksList(tasksService, logg))
			r.Get("/reports/status-counts", controllers.TaskStatusCounts(tasksService, logg))
			r.Get("/reports/type-counts", controllers.TaskTypeCounts(tasksService, logg))
			r.Get("/{taskID}", controllers.TaskGet(tasksService, logg))
			r.Post("/{taskID}/assign", controllers.TaskAssign(tasksService, logg))
			r.Put("/{taskID}/validated", controllers.TaskSetValidated(tasksService, logg))
			r.Post("/{taskID}/start", controllers.TaskStart(tasksService, logg))
			r.Post("/{taskID}/complete", controllers.TaskComplete(tasksService, logg))
			r.Post("/{taskID}/block", controllers.TaskBlock(tasksService, logg))
			r.Post("/{taskID}/cancel", controllers.TaskCancel(tasksService, logg))
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", controllers.RecommendationsList(overridesService, logg))
			r.Post("/", controllers.RecommendationCreate(overridesService, logg))
			r.Get("/{recommendationID}", controllers.RecommendationGet(overridesService, logg))
			r.Post("/{recommendationID}/approve", controllers.RecommendationApprove(overridesService, logg))
			r.Post("/{recommendationID}/override", controllers.RecommendationOverride(overridesService, logg))
			r.Put("/{recommendationID}/override", controllers.RecommendationOverrideEdit(overridesService, logg))
			r.Post("/{recommendationID}/feedback", controllers.RecommendationFeedback(overridesService, logg))
			r.Get("/{recommendationID}/feedback", controllers.RecommendationFeedbackHistory(overridesService, logg))
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/summary", controllers.OverridesSummary(overridesService, logg))
			r.Get("/recent", controllers.OverridesRecent(overridesService, logg))
			r.Post("/tasks/{taskID}/status", controllers.TaskStatusOverride(overridesService, logg))
			r.Post("/orders/{orderID}/status", controllers.OrderStatusOverride(overridesService, logg))
			r.Post("/deliveries/{deliveryID}/status", controllers.DeliveryStatusOverride(overridesService, logg))
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole([]string{
				string(enums.UserRoleAdmin),
				string(enums.UserRoleSupervisor),
			}, logg))
			r.Get("/", controllers.AuditLogsList(auditService, logg))
		})
	})

	return r
}
