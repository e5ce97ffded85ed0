package reporting

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/cache"
	"github.com/vfg2006/social-metrics-api/pkg/metrics"
	"github.com/vfg2006/social-metrics-api/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config controla a política de agregação
type Config struct {
	// CacheTTL é a validade lógica dos registros por plataforma
	CacheTTL time.Duration

	// UnitTimeout é o orçamento de tempo de cada unidade de trabalho.
	// O ciclo não tem timeout próprio: termina quando a unidade mais
	// lenta termina ou estoura o próprio orçamento
	UnitTimeout time.Duration

	// EstimatedCTR é a taxa de cliques assumida ao estimar o volume de
	// cliques para o CPC médio quando a plataforma não informa cliques
	EstimatedCTR float64
}

// DefaultConfig retorna a política padrão de agregação
func DefaultConfig() Config {
	return Config{
		CacheTTL:     cache.DefaultTTL,
		UnitTimeout:  45 * time.Second,
		EstimatedCTR: 0.02,
	}
}

// Service é o orquestrador de agregação: dispara uma unidade de trabalho
// concorrente por credencial conectada, isola falhas por plataforma e
// consolida os sucessos em um único relatório
type Service struct {
	cfg       Config
	adapters  map[domain.Platform]SourceAdapter
	cache     ResponseCache
	refresher TokenRefresher
}

// NewService cria o orquestrador. O cache é injetado explicitamente para
// manter o serviço testável e permitir trocar a implementação sem tocar na
// lógica de agregação
func NewService(cfg Config, respCache ResponseCache, refresher TokenRefresher, adapters ...SourceAdapter) *Service {
	byPlatform := make(map[domain.Platform]SourceAdapter, len(adapters))
	for _, adapter := range adapters {
		byPlatform[adapter.Platform()] = adapter
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 45 * time.Second
	}
	if cfg.EstimatedCTR <= 0 {
		cfg.EstimatedCTR = 0.02
	}

	return &Service{
		cfg:       cfg,
		adapters:  byPlatform,
		cache:     respCache,
		refresher: refresher,
	}
}

// unitOutcome é o resultado terminal de uma unidade de trabalho: exatamente
// um dentre registro e erro classificado
type unitOutcome struct {
	platform domain.Platform
	record   *domain.SourceRecord
	srcErr   *domain.SourceError
}

// GetReport agrega as métricas de todas as plataformas conectadas da conta.
// Nenhuma condição de upstream derruba o ciclo: cada falha vira um
// SourceError na chave da plataforma e o relatório segue parcial
func (s *Service) GetReport(ctx context.Context, account *domain.Account) (*domain.AggregatedReport, error) {
	if account == nil {
		return nil, fmt.Errorf("conta inválida para agregação")
	}

	includeAds := IncludesAdsData(account.Tier)

	logrus.WithFields(logrus.Fields{
		"account_id":  account.ID,
		"tier":        account.Tier,
		"sources":     len(account.Credentials),
		"include_ads": includeAds,
	}).Info("Iniciando ciclo de agregação")

	report := &domain.AggregatedReport{
		Records:     make(map[domain.Platform]*domain.SourceRecord),
		Errors:      make(map[domain.Platform]*domain.SourceError),
		Tier:        account.Tier,
		GeneratedAt: time.Now(),
	}

	// Sem credenciais conectadas o relatório é todo zerado, sem erro e
	// sem nenhuma chamada de rede
	if len(account.Credentials) == 0 {
		return report, nil
	}

	// Fan-out: uma goroutine por credencial, resultado capturado por
	// índice para que a falha de uma unidade jamais bloqueie as irmãs
	outcomes := make([]unitOutcome, len(account.Credentials))
	wg := sync.WaitGroup{}

	for i := range account.Credentials {
		wg.Add(1)

		go func(idx int, cred *domain.SourceCredential) {
			defer wg.Done()
			outcomes[idx] = s.fetchSource(ctx, account, cred, includeAds)
		}(i, &account.Credentials[i])
	}

	wg.Wait()

	// Fan-in na ordem original das credenciais: o resultado final não
	// depende da ordem de término das unidades
	s.merge(report, outcomes, includeAds)

	result := "complete"
	if len(report.Errors) > 0 {
		result = "partial"
	}
	metrics.ReportCycles.WithLabelValues(result).Inc()

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"records":    len(report.Records),
		"errors":     len(report.Errors),
	}).Info("Ciclo de agregação concluído")

	return report, nil
}

// fetchSource executa a unidade de trabalho de uma plataforma:
// PENDING → FETCHING → (CACHE_HIT | UPSTREAM_OK | UPSTREAM_FAILED) →
// TERMINAL(SUCCESS | STALE_FALLBACK | ERROR)
func (s *Service) fetchSource(ctx context.Context, account *domain.Account, cred *domain.SourceCredential, includeAds bool) unitOutcome {
	platform := cred.Platform

	unitCtx, cancel := context.WithTimeout(ctx, s.cfg.UnitTimeout)
	defer cancel()

	adapter, ok := s.adapters[platform]
	if !ok {
		return unitOutcome{platform: platform, srcErr: domain.NewSourceError(
			platform, domain.ErrKindAPI, "plataforma sem adaptador registrado",
		)}
	}

	cacheKey := cache.Key(string(platform), cred.AccessToken)

	// Preferir uma entrada fresca a qualquer chamada upstream, para
	// preservar a cota da plataforma
	if info := s.cache.GetInfo(cacheKey); info.Found && !info.Expired {
		if record := s.recordFromCache(cacheKey, platform); record != nil {
			metrics.CacheReads.WithLabelValues("fresh").Inc()

			logrus.WithFields(logrus.Fields{
				"account_id": account.ID,
				"platform":   platform,
				"age":        info.Age.String(),
			}).Debug("Registro servido do cache")

			return unitOutcome{platform: platform, record: record}
		}
	}
	metrics.CacheReads.WithLabelValues("miss").Inc()

	// Credencial conhecidamente expirada: curto-circuito sem tentativa
	// de rede
	if cred.IsExpired(time.Now()) {
		srcErr := domain.NewSourceError(platform, domain.ErrKindTokenExpired, "credencial expirada")
		srcErr.Details.Hint = "reconecte a plataforma para renovar o acesso"

		logrus.WithFields(logrus.Fields{
			"account_id": account.ID,
			"platform":   platform,
		}).Warn("Credencial expirada, plataforma ignorada no ciclo")

		return unitOutcome{platform: platform, srcErr: srcErr}
	}

	posts, cred, srcErr := s.fetchPostsWithRefresh(unitCtx, account, cred, adapter)
	if srcErr != nil {
		return s.failedUnit(account, platform, cacheKey, srcErr)
	}

	record := &domain.SourceRecord{
		Platform:  platform,
		Posts:     posts,
		FetchedAt: time.Now(),
	}

	if includeAds {
		ads, err := adapter.FetchAdsAnalytics(unitCtx, cred)
		if err != nil {
			// Falha só nos anúncios não derruba o registro orgânico
			logrus.WithFields(logrus.Fields{
				"account_id": account.ID,
				"platform":   platform,
				"error":      err.Error(),
			}).Warn("Falha ao obter métricas de anúncios, registro segue sem elas")
		} else {
			record.Ads = ads
		}
	}

	s.storeRecord(cache.Key(string(platform), cred.AccessToken), record)

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"platform":   platform,
		"has_ads":    record.Ads != nil,
	}).Info("Plataforma agregada com sucesso")

	return unitOutcome{platform: platform, record: record}
}

// fetchPostsWithRefresh busca as métricas orgânicas e, diante de um
// auth_error com refresh token disponível, tenta uma única renovação de
// credencial seguida de uma única nova busca
func (s *Service) fetchPostsWithRefresh(
	ctx context.Context,
	account *domain.Account,
	cred *domain.SourceCredential,
	adapter SourceAdapter,
) (*domain.PostsMetrics, *domain.SourceCredential, *domain.SourceError) {
	posts, err := adapter.FetchPostsAnalytics(ctx, cred)
	if err == nil {
		return posts, cred, nil
	}

	srcErr := domain.AsSourceError(cred.Platform, err)
	if srcErr.Kind != domain.ErrKindAuth || !cred.HasRefreshToken() || s.refresher == nil {
		return nil, cred, srcErr
	}

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"platform":   cred.Platform,
	}).Info("Credencial rejeitada, tentando renovação via refresh token")

	newCred, refreshErr := s.refresher.Refresh(ctx, account.ID, cred)
	if refreshErr != nil || newCred == nil {
		if refreshErr != nil {
			logrus.WithFields(logrus.Fields{
				"account_id": account.ID,
				"platform":   cred.Platform,
				"error":      refreshErr.Error(),
			}).Warn("Renovação de credencial falhou")
		}
		return nil, cred, srcErr
	}

	posts, err = adapter.FetchPostsAnalytics(ctx, newCred)
	if err != nil {
		return nil, newCred, domain.AsSourceError(cred.Platform, err)
	}

	return posts, newCred, nil
}

// failedUnit converte a falha terminal de uma unidade no seu desfecho:
// rate limit com entrada em cache (mesmo vencida) vira fallback stale,
// auth_error residual vira token_expired para o consumidor
func (s *Service) failedUnit(account *domain.Account, platform domain.Platform, cacheKey string, srcErr *domain.SourceError) unitOutcome {
	if srcErr.Kind == domain.ErrKindRateLimit {
		if record := s.recordFromCache(cacheKey, platform); record != nil {
			record.Degraded = true
			metrics.CacheReads.WithLabelValues("stale").Inc()

			logrus.WithFields(logrus.Fields{
				"account_id": account.ID,
				"platform":   platform,
			}).Warn("Rate limit esgotado, servindo registro stale do cache")

			return unitOutcome{platform: platform, record: record}
		}
	}

	if srcErr.Kind == domain.ErrKindAuth {
		converted := domain.NewSourceError(platform, domain.ErrKindTokenExpired, srcErr.Message)
		converted.Details = srcErr.Details
		converted.Details.Hint = "reconecte a plataforma para renovar o acesso"
		srcErr = converted
	}

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"platform":   platform,
		"kind":       srcErr.Kind,
		"error":      srcErr.Message,
	}).Warn("Plataforma falhou no ciclo de agregação")

	return unitOutcome{platform: platform, srcErr: srcErr}
}

// merge consolida os desfechos na ordem original das credenciais. Idempotente
// em relação à ordem de término: só o desfecho final por plataforma importa
func (s *Service) merge(report *domain.AggregatedReport, outcomes []unitOutcome, includeAds bool) {
	var (
		totalEngagement float64
		estimatedClicks float64
	)

	for _, outcome := range outcomes {
		if outcome.srcErr != nil {
			report.Errors[outcome.platform] = outcome.srcErr
			continue
		}

		record := outcome.record

		// Reaplicar o gate na consolidação: um adaptador mal-comportado
		// não injeta anúncios em conta sem plano pago
		if !includeAds {
			record.Ads = nil
		}

		report.Records[outcome.platform] = record

		if record.Posts != nil {
			report.Overview.TotalPosts += record.Posts.TotalPosts
			totalEngagement += record.Posts.TotalEngagement()
			report.Overview.TotalReach += record.Posts.TotalReach()
			report.Overview.TotalImpressions += record.Posts.Impressions
			report.Overview.TotalFollowers += record.Posts.Followers
		}

		if includeAds && record.Ads != nil {
			report.Overview.AdSpend += record.Ads.Spend
			report.Overview.AdImpressions += record.Ads.Impressions
			report.Overview.AdClicks += record.Ads.Clicks
		}
	}

	// Taxas derivadas só depois de todas as plataformas consolidadas
	report.Overview.TotalEngagement = utils.RoundWithTwoDecimalPlace(totalEngagement)

	if report.Overview.TotalReach > 0 {
		report.Overview.EngagementRate = utils.RoundWithTwoDecimalPlace(
			totalEngagement / float64(report.Overview.TotalReach) * 100,
		)
	}

	if report.Overview.AdSpend > 0 {
		// Base de cliques para o CPC médio: cliques reais quando a
		// plataforma informa, volume estimado via CTR configurada caso
		// contrário
		estimatedClicks = float64(report.Overview.AdClicks)
		if estimatedClicks == 0 && report.Overview.AdImpressions > 0 {
			estimatedClicks = float64(report.Overview.AdImpressions) * s.cfg.EstimatedCTR
		}

		if estimatedClicks > 0 {
			report.Overview.AverageCPC = utils.RoundWithTwoDecimalPlace(report.Overview.AdSpend / estimatedClicks)
		}

		if report.Overview.AdImpressions > 0 {
			report.Overview.AverageCTR = utils.RoundWithTwoDecimalPlace(
				float64(report.Overview.AdClicks) / float64(report.Overview.AdImpressions) * 100,
			)
		}
	}
}

// recordFromCache tenta reconstruir um registro a partir do cache
func (s *Service) recordFromCache(key string, platform domain.Platform) *domain.SourceRecord {
	payload, found := s.cache.Get(key)
	if !found {
		return nil
	}

	var record domain.SourceRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		logrus.WithFields(logrus.Fields{
			"platform": platform,
			"error":    err.Error(),
		}).Warn("Registro em cache ilegível, ignorando")
		return nil
	}

	return &record
}

// storeRecord grava o registro no cache; falha de cache nunca falha o ciclo
func (s *Service) storeRecord(key string, record *domain.SourceRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		logrus.WithError(err).Warn("Falha ao serializar registro para o cache")
		return
	}

	if err := s.cache.Set(key, payload, s.cfg.CacheTTL); err != nil {
		logrus.WithFields(logrus.Fields{
			"platform": record.Platform,
			"error":    err.Error(),
		}).Warn("Falha ao gravar registro no cache")
	}
}
