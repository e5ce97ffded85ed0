package domain

import "time"

// Overview é o consolidado de todas as plataformas que responderam com
// sucesso em um ciclo. Totais nunca incluem plataformas que falharam
type Overview struct {
	TotalPosts       int     `json:"total_posts"`
	TotalEngagement  float64 `json:"total_engagement"`
	TotalReach       int     `json:"total_reach"`
	TotalImpressions int     `json:"total_impressions"`
	TotalFollowers   int     `json:"total_followers"`
	EngagementRate   float64 `json:"engagement_rate"`

	// Campos de anúncios: permanecem zerados para contas FREE
	AdSpend       float64 `json:"ad_spend,omitempty"`
	AdImpressions int     `json:"ad_impressions,omitempty"`
	AdClicks      int     `json:"ad_clicks,omitempty"`
	AverageCPC    float64 `json:"average_cpc,omitempty"`
	AverageCTR    float64 `json:"average_ctr,omitempty"`
}

// AggregatedReport é o relatório entregue ao consumidor: o consolidado,
// os registros por plataforma e os erros por plataforma que falhou.
// Um relatório parcial nunca é tratado como falha total
type AggregatedReport struct {
	Overview    Overview                   `json:"overview"`
	Records     map[Platform]*SourceRecord `json:"records"`
	Errors      map[Platform]*SourceError  `json:"errors"`
	Tier        SubscriptionTier           `json:"tier"`
	GeneratedAt time.Time                  `json:"generated_at"`
}
