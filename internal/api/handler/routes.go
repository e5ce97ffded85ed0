package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vfg2006/social-metrics-api/infrastructure/repository"
	"github.com/vfg2006/social-metrics-api/internal/api/handler/router"
	"github.com/vfg2006/social-metrics-api/internal/usecases/reporting"
	"github.com/vfg2006/social-metrics-api/pkg/middleware"
)

func Healthcheck() []router.Route {
	return []router.Route{
		{
			Path:    "/healthcheck",
			Method:  http.MethodGet,
			Handler: HealthcheckHandler(),
		},
	}
}

func Metrics() []router.Route {
	return []router.Route{
		{
			Path:    "/metrics",
			Method:  http.MethodGet,
			Handler: promhttp.Handler(),
		},
	}
}

func Reports(reporter reporting.Reporter, accountRepo repository.AccountRepository) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/accounts/:id/report",
			Method:      http.MethodGet,
			Handler:     GetAccountReport(reporter, accountRepo),
			Middlewares: []func(http.Handler) http.Handler{middleware.AllRoles()},
		},
	}
}

func CronJobs(services CronJobServices) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/cron/:type/run",
			Method:      http.MethodPost,
			Handler:     RunCronJob(services),
			Middlewares: []func(http.Handler) http.Handler{middleware.AdminOrService()},
		},
		{
			Path:        "/v1/cron/status",
			Method:      http.MethodGet,
			Handler:     GetCronStatus(services),
			Middlewares: []func(http.Handler) http.Handler{middleware.AdminOrService()},
		},
	}
}
