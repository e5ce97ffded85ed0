package reporting

import (
	"context"
	"time"

	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/cache"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/interfaces.go -package=mocks

// SourceAdapter é a camada de tradução de uma plataforma: converte a
// resposta bruta upstream no registro normalizado. Todo erro deve sair
// classificado como *domain.SourceError na própria fronteira do adaptador
type SourceAdapter interface {
	Platform() domain.Platform

	// FetchPostsAnalytics obtém as métricas orgânicas da plataforma
	FetchPostsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.PostsMetrics, error)

	// FetchAdsAnalytics obtém as métricas de campanhas pagas. Só é
	// invocado quando o plano do titular permite
	FetchAdsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.AdsMetrics, error)
}

// TokenRefresher renova uma credencial expirada a partir do refresh token.
// Invocado apenas após um auth_error de plataforma com refresh token
type TokenRefresher interface {
	Refresh(ctx context.Context, accountID string, cred *domain.SourceCredential) (*domain.SourceCredential, error)
}

// ResponseCache é a visão do orquestrador sobre o cache de respostas
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	GetInfo(key string) cache.Info
	Set(key string, payload []byte, ttl time.Duration) error
}

// Reporter é o contrato consumido pelos handlers e pelo agendador
type Reporter interface {
	// GetReport agrega as métricas de todas as plataformas conectadas da
	// conta em um único relatório
	GetReport(ctx context.Context, account *domain.Account) (*domain.AggregatedReport, error)
}
