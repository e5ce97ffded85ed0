package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/social-metrics-api/infrastructure/repository"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/internal/usecases/reporting"
	"github.com/vfg2006/social-metrics-api/pkg/utils"
)

// ReportWarmupConfig representa a configuração do agendador de aquecimento
// do cache de relatórios
type ReportWarmupConfig struct {
	CronSchedule        string
	RequestDelaySeconds int
	MaxConcurrentJobs   int
	Enabled             bool
}

// ReportWarmupService reagenda periodicamente a agregação das contas
// ativas para manter o cache de respostas aquecido dentro da cota das
// plataformas. Relatórios sob demanda encontram entradas frescas e não
// gastam chamadas upstream
type ReportWarmupService struct {
	scheduler           *gocron.Scheduler
	config              ReportWarmupConfig
	accountRepo         repository.AccountRepository
	reporter            reporting.Reporter
	warmupRunning       bool
	warmupMutex         sync.Mutex
	lastRunStartedAt    time.Time
	lastRunCompletedAt  time.Time
	lastRunAccounts     int
	lastRunDegraded     int
	lastRunSourceErrors int
}

// NewReportWarmupService cria uma nova instância do serviço de aquecimento
func NewReportWarmupService(
	accountRepo repository.AccountRepository,
	reporter reporting.Reporter,
	appConfig *config.Config,
) *ReportWarmupService {
	warmupConfig := ReportWarmupConfig{
		CronSchedule:        appConfig.ReportWarmup.CronSchedule,
		RequestDelaySeconds: appConfig.ReportWarmup.RequestDelaySeconds,
		MaxConcurrentJobs:   appConfig.ReportWarmup.MaxConcurrentJobs,
		Enabled:             appConfig.ReportWarmup.Enabled,
	}

	scheduler := gocron.NewScheduler(time.Local)

	logrus.WithFields(logrus.Fields{
		"cron_schedule":         warmupConfig.CronSchedule,
		"request_delay_seconds": warmupConfig.RequestDelaySeconds,
		"max_concurrent_jobs":   warmupConfig.MaxConcurrentJobs,
		"enabled":               warmupConfig.Enabled,
	}).Info("Configuração do agendador de aquecimento de relatórios carregada")

	return &ReportWarmupService{
		scheduler:     scheduler,
		config:        warmupConfig,
		accountRepo:   accountRepo,
		reporter:      reporter,
		warmupRunning: false,
	}
}

// Start inicia o agendador
func (s *ReportWarmupService) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logrus.Info("Aquecimento de relatórios desabilitado por configuração")
		return nil
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("Iniciando agendador de aquecimento de relatórios")

	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		s.warmAllAccounts(ctx)
	})
	if err != nil {
		return fmt.Errorf("erro ao agendar aquecimento de relatórios: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("Parando agendador de aquecimento de relatórios")
		s.scheduler.Stop()
	}()

	return nil
}

// warmAllAccounts agrega as contas ativas uma a uma, com concorrência
// limitada e pausa entre contas para não estourar a cota das plataformas
func (s *ReportWarmupService) warmAllAccounts(ctx context.Context) {
	s.warmupMutex.Lock()
	if s.warmupRunning {
		s.warmupMutex.Unlock()
		logrus.Info("Aquecimento de relatórios já em andamento, ignorando")
		return
	}
	s.warmupRunning = true
	s.warmupMutex.Unlock()

	startTime := time.Now()
	s.lastRunStartedAt = startTime

	defer func() {
		s.warmupMutex.Lock()
		s.warmupRunning = false
		s.warmupMutex.Unlock()
	}()

	runID, _ := utils.GenerateID()
	logrus.WithField("run_id", runID).Info("Iniciando aquecimento de relatórios para todas as contas ativas")

	activeAccounts, err := s.accountRepo.ListActiveAccounts(ctx)
	if err != nil {
		logrus.WithError(err).Error("Erro ao buscar lista de contas para aquecimento de relatórios")
		return
	}

	if len(activeAccounts) == 0 {
		logrus.Info("Nenhuma conta ativa encontrada para aquecimento de relatórios")
		return
	}

	var degraded, sourceErrors int64
	semaphore := make(chan struct{}, s.config.MaxConcurrentJobs)
	var wg sync.WaitGroup
	var statsMutex sync.Mutex

	for _, account := range activeAccounts {
		if len(account.Credentials) == 0 {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *domain.Account) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			report := s.warmAccount(ctx, acc)
			if report == nil {
				return
			}

			statsMutex.Lock()
			sourceErrors += int64(len(report.Errors))
			for _, record := range report.Records {
				if record.Degraded {
					degraded++
				}
			}
			statsMutex.Unlock()

			// Pausa entre contas para diluir a pressão nas plataformas
			time.Sleep(time.Duration(s.config.RequestDelaySeconds) * time.Second)
		}(account)
	}

	wg.Wait()

	duration := time.Since(startTime)
	logrus.WithFields(logrus.Fields{
		"run_id":        runID,
		"duration":      duration.String(),
		"accounts":      len(activeAccounts),
		"degraded":      degraded,
		"source_errors": sourceErrors,
	}).Info("Aquecimento de relatórios concluído")

	s.lastRunCompletedAt = time.Now()
	s.lastRunAccounts = len(activeAccounts)
	s.lastRunDegraded = int(degraded)
	s.lastRunSourceErrors = int(sourceErrors)
}

func (s *ReportWarmupService) warmAccount(ctx context.Context, account *domain.Account) *domain.AggregatedReport {
	logrus.WithFields(logrus.Fields{
		"account_id":  account.ID,
		"credentials": len(account.Credentials),
	}).Info("Aquecendo relatório para conta")

	report, err := s.reporter.GetReport(ctx, account)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"account_id": account.ID,
			"error":      err.Error(),
		}).Error("Erro ao aquecer relatório para conta")
		return nil
	}

	return report
}

// TriggerManualWarmup inicia manualmente um ciclo de aquecimento
func (s *ReportWarmupService) TriggerManualWarmup() {
	s.warmupMutex.Lock()
	if s.warmupRunning {
		s.warmupMutex.Unlock()
		logrus.Info("Aquecimento de relatórios já em andamento, ignorando solicitação manual")
		return
	}
	s.warmupMutex.Unlock()

	logrus.Info("Iniciando aquecimento manual de relatórios")
	go s.warmAllAccounts(context.Background())
}

// GetStatus retorna o status atual do agendador
func (s *ReportWarmupService) GetStatus() map[string]any {
	return map[string]any{
		"enabled":                s.config.Enabled,
		"cron":                   s.config.CronSchedule,
		"max_concurrent":         s.config.MaxConcurrentJobs,
		"request_delay_s":        s.config.RequestDelaySeconds,
		"last_run_started_at":    s.lastRunStartedAt,
		"last_run_completed_at":  s.lastRunCompletedAt,
		"last_run_accounts":      s.lastRunAccounts,
		"last_run_degraded":      s.lastRunDegraded,
		"last_run_source_errors": s.lastRunSourceErrors,
	}
}
