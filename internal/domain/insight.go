package domain

import "time"

// PostDayMetric é um ponto da tendência diária de publicações
type PostDayMetric struct {
	Date        string  `json:"date"`
	Posts       int     `json:"posts"`
	Engagement  float64 `json:"engagement"`
	Reach       int     `json:"reach"`
	Impressions int     `json:"impressions"`
}

// PostsMetrics agrega as métricas orgânicas de uma plataforma
type PostsMetrics struct {
	TotalPosts    int             `json:"total_posts"`
	AvgEngagement float64         `json:"avg_engagement"`
	AvgReach      int             `json:"avg_reach"`
	Impressions   int             `json:"impressions"`
	Followers     int             `json:"followers"`
	Trend         []PostDayMetric `json:"trend,omitempty"`
}

// TotalEngagement retorna o engajamento acumulado da plataforma
// (engajamento médio por post multiplicado pelo total de posts)
func (p *PostsMetrics) TotalEngagement() float64 {
	return p.AvgEngagement * float64(p.TotalPosts)
}

// TotalReach retorna o alcance acumulado da plataforma
func (p *PostsMetrics) TotalReach() int {
	return p.AvgReach * p.TotalPosts
}

// AdsMetrics agrega as métricas de campanhas pagas de uma plataforma.
// Presente apenas quando o plano do titular permite
type AdsMetrics struct {
	Spend       float64 `json:"spend"`
	Reach       int     `json:"reach"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
}

// SourceRecord é o registro normalizado de uma plataforma em um ciclo de
// agregação. Criado a cada ciclo; nunca mutado, apenas substituído
type SourceRecord struct {
	Platform  Platform      `json:"platform"`
	Posts     *PostsMetrics `json:"posts,omitempty"`
	Ads       *AdsMetrics   `json:"ads,omitempty"`
	Degraded  bool          `json:"degraded,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}
