package allegroads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	allegrodomain "github.com/vfg2006/social-metrics-api/infrastructure/integrator/allegroads/domain"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
)

type AllegroAdsIntegrator struct {
	cfg     *config.Config
	fetcher fetchclient.Client
}

func New(cfg *config.Config, fetcher fetchclient.Client) *AllegroAdsIntegrator {
	return &AllegroAdsIntegrator{
		cfg:     cfg,
		fetcher: fetcher,
	}
}

func (s *AllegroAdsIntegrator) Platform() domain.Platform {
	return domain.PlatformAllegroAds
}

// FetchPostsAnalytics consulta as estatísticas das ofertas publicadas. No
// marketplace as ofertas fazem o papel das publicações: visitas valem como
// alcance e observadores somados a pedidos valem como engajamento
func (s *AllegroAdsIntegrator) FetchPostsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.PostsMetrics, error) {
	body, err := s.get(ctx, cred, fmt.Sprintf("%s/sale/offers/statistics", s.cfg.AllegroAds.URL))
	if err != nil {
		logrus.WithError(err).Error("allegroads: failed to get offer statistics from API")
		return nil, s.refineError(err)
	}

	var response allegrodomain.OfferStatsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("allegroads: failed to decode offer statistics")
		return nil, domain.NewSourceError(domain.PlatformAllegroAds, domain.ErrKindAPI, "resposta de estatísticas de ofertas inválida")
	}

	return factoryPostsMetrics(&response), nil
}

// FetchAdsAnalytics consulta as estatísticas das campanhas da conta de
// anúncios vinculada. A conta vem do payload auxiliar da credencial
func (s *AllegroAdsIntegrator) FetchAdsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.AdsMetrics, error) {
	if cred.AuxAccountID == nil || *cred.AuxAccountID == "" {
		srcErr := domain.NewSourceError(domain.PlatformAllegroAds, domain.ErrKindNoBusinessAccount, "nenhuma conta de anúncios vinculada à credencial")
		srcErr.Details.Hint = "vincule o perfil de negócios à central de anúncios do marketplace"
		return nil, srcErr
	}

	url := fmt.Sprintf("%s/ads/accounts/%s/campaigns/statistics", s.cfg.AllegroAds.URL, *cred.AuxAccountID)

	body, err := s.get(ctx, cred, url)
	if err != nil {
		logrus.WithError(err).Error("allegroads: failed to get campaign statistics from API")
		return nil, s.refineError(err)
	}

	var response allegrodomain.CampaignStatsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("allegroads: failed to decode campaign statistics")
		return nil, domain.NewSourceError(domain.PlatformAllegroAds, domain.ErrKindAPI, "resposta de estatísticas de campanhas inválida")
	}

	return factoryAdsMetrics(&response.Stats), nil
}

func (s *AllegroAdsIntegrator) get(ctx context.Context, cred *domain.SourceCredential, url string) ([]byte, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.AccessToken)
	header.Set("Accept", "application/vnd.allegro.public.v1+json")

	return s.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodGet,
		URL:      url,
		Header:   header,
		Platform: domain.PlatformAllegroAds,
	})
}

// refineError reclassifica o erro a partir do array de userErrors da
// plataforma. A falta de perfil de negócios vinculado chega com status 422
func (s *AllegroAdsIntegrator) refineError(err error) error {
	srcErr := domain.AsSourceError(domain.PlatformAllegroAds, err)
	if len(srcErr.Details.Raw) == 0 {
		return srcErr
	}

	var apiErr allegrodomain.ErrorResponse
	if jsonErr := json.Unmarshal(srcErr.Details.Raw, &apiErr); jsonErr != nil || len(apiErr.Errors) == 0 {
		return srcErr
	}

	first := apiErr.Errors[0]

	switch first.Code {
	case allegrodomain.CodeNotLinkedBusinessProfile:
		srcErr.Kind = domain.ErrKindNoBusinessAccount
		srcErr.Message = first.Message
		srcErr.Details.Hint = "vincule o perfil de negócios à central de anúncios do marketplace"
		srcErr.Retryable = false

	case allegrodomain.CodeInvalidToken:
		srcErr.Kind = domain.ErrKindAuth
		srcErr.Message = first.Message
		srcErr.Retryable = false
	}

	return srcErr
}

func factoryPostsMetrics(response *allegrodomain.OfferStatsResponse) *domain.PostsMetrics {
	totalPosts := response.TotalCount
	if totalPosts == 0 {
		totalPosts = len(response.Offers)
	}

	metrics := &domain.PostsMetrics{TotalPosts: totalPosts}

	if len(response.Offers) == 0 {
		return metrics
	}

	var totalEngagement, totalVisits, totalViews int
	for _, offer := range response.Offers {
		totalEngagement += offer.Engagement()
		totalVisits += offer.Visits
		totalViews += offer.Views
	}

	metrics.AvgEngagement = float64(totalEngagement) / float64(len(response.Offers))
	metrics.AvgReach = totalVisits / len(response.Offers)
	metrics.Impressions = totalViews

	return metrics
}

func factoryAdsMetrics(stats *allegrodomain.CampaignStats) *domain.AdsMetrics {
	return &domain.AdsMetrics{
		Spend:       parseAmount(stats.TotalCost),
		Reach:       stats.Reach,
		Impressions: stats.Impressions,
		Clicks:      stats.Clicks,
		CTR:         stats.CTR,
		CPC:         parseAmount(stats.AvgCPC),
	}
}

// A plataforma devolve valores monetários como {amount, currency} com o
// montante em string decimal
func parseAmount(money allegrodomain.Money) float64 {
	value, err := strconv.ParseFloat(money.Amount, 64)
	if err != nil {
		return 0
	}
	return value
}
