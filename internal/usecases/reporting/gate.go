package reporting

import "github.com/vfg2006/social-metrics-api/internal/domain"

// IncludesAdsData decide se as métricas de campanhas pagas são solicitadas
// e incluídas no relatório. Função pura do plano do titular: apenas planos
// pagos enxergam dados de anúncios
func IncludesAdsData(tier domain.SubscriptionTier) bool {
	switch tier {
	case domain.TierPremiumMonthly, domain.TierPremiumYearly:
		return true
	default:
		return false
	}
}
