package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas expostas em /metrics. Os rótulos de plataforma usam o valor de
// domain.Platform e os de resultado a taxonomia de erros compartilhada
var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_metrics",
		Name:      "upstream_requests_total",
		Help:      "Total de chamadas upstream por plataforma e resultado",
	}, []string{"platform", "outcome"})

	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_metrics",
		Name:      "upstream_retries_total",
		Help:      "Total de novas tentativas por plataforma",
	}, []string{"platform"})

	CacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_metrics",
		Name:      "response_cache_reads_total",
		Help:      "Leituras do cache de respostas por estado (fresh, stale, miss)",
	}, []string{"state"})

	ReportCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_metrics",
		Name:      "report_cycles_total",
		Help:      "Ciclos de agregação executados por resultado (complete, partial)",
	}, []string{"result"})
)
