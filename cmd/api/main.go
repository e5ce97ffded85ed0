package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/social-metrics-api/infrastructure/database/postgres"
	"github.com/vfg2006/social-metrics-api/infrastructure/integrator/allegroads"
	"github.com/vfg2006/social-metrics-api/infrastructure/integrator/facebook"
	"github.com/vfg2006/social-metrics-api/infrastructure/integrator/tiktok"
	"github.com/vfg2006/social-metrics-api/infrastructure/integrator/tokens"
	"github.com/vfg2006/social-metrics-api/infrastructure/integrator/twitter"
	"github.com/vfg2006/social-metrics-api/infrastructure/repository"
	"github.com/vfg2006/social-metrics-api/internal/api"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/scheduler"
	"github.com/vfg2006/social-metrics-api/internal/usecases/authenticating"
	"github.com/vfg2006/social-metrics-api/internal/usecases/reporting"
	"github.com/vfg2006/social-metrics-api/pkg/cache"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
	"github.com/vfg2006/social-metrics-api/pkg/log"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	log.Init(cfg.App.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgConn := pgconn(ctx, cfg.Database)
	defer pgConn.Close()

	accountRepo := repository.NewAccountRepository(pgConn)

	authenticator := authenticating.NewService(cfg)

	fetcher := fetchclient.New(fetchclient.Config{
		MaxRetries:       cfg.Fetch.MaxRetries,
		BaseDelay:        cfg.Fetch.BaseDelay,
		RateLimitMaxWait: cfg.Fetch.RateLimitMaxWait,
		TransientMaxWait: cfg.Fetch.TransientMaxWait,
		RequestTimeout:   cfg.Fetch.RequestTimeout,
	})

	refresher := tokens.NewRefresher(cfg, fetcher, accountRepo)

	respCache := cache.New(cfg.Cache.SizeBytes)

	reporter := reporting.NewService(
		reporting.Config{
			CacheTTL:     cfg.Cache.TTL,
			UnitTimeout:  cfg.Report.UnitTimeout,
			EstimatedCTR: cfg.Report.EstimatedCTR,
		},
		respCache,
		refresher,
		facebook.New(cfg, fetcher),
		tiktok.New(cfg, fetcher),
		twitter.New(cfg, fetcher),
		allegroads.New(cfg, fetcher),
	)

	reportWarmupService := scheduler.NewReportWarmupService(accountRepo, reporter, cfg)

	if err := reportWarmupService.Start(ctx); err != nil {
		logrus.WithError(err).Error("Erro ao iniciar o agendador de aquecimento de relatórios")
	} else {
		logrus.Info("Agendador de aquecimento de relatórios iniciado com sucesso")
	}

	server, err := api.New(
		cfg,
		reporter,
		accountRepo,
		authenticator,
		reportWarmupService,
	)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := server.Run(ctx); err != nil {
		logrus.Error(err)
	}
}

// pgconn cria uma conexão com o banco de dados
func pgconn(ctx context.Context, dbConfig config.Database) *postgres.Connection {
	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao conectar ao PostgreSQL")
	}

	if err := conn.Ping(ctx); err != nil {
		logrus.WithError(err).Fatal("Erro ao testar conexão com PostgreSQL")
	}

	logrus.Info("Conexão com PostgreSQL estabelecida com sucesso")
	return conn
}
