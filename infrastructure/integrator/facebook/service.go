package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	facebookdomain "github.com/vfg2006/social-metrics-api/infrastructure/integrator/facebook/domain"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
	"github.com/vfg2006/social-metrics-api/pkg/utils"
)

type FacebookIntegrator struct {
	cfg     *config.Config
	fetcher fetchclient.Client
}

func New(cfg *config.Config, fetcher fetchclient.Client) *FacebookIntegrator {
	return &FacebookIntegrator{
		cfg:     cfg,
		fetcher: fetcher,
	}
}

func (s *FacebookIntegrator) Platform() domain.Platform {
	return domain.PlatformFacebook
}

// FetchPostsAnalytics consulta o total de publicações e as métricas da
// página, e as normaliza em médias por publicação
func (s *FacebookIntegrator) FetchPostsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.PostsMetrics, error) {
	totalPosts, err := s.getPublishedPostsCount(ctx, cred)
	if err != nil {
		logrus.WithError(err).Error("facebook: failed to get published posts count")
		return nil, s.refineError(cred, err)
	}

	params := &url.Values{}
	params.Add("metric", "page_post_engagements,page_impressions,page_impressions_unique,page_fans")
	params.Add("period", "day")
	params.Add("access_token", cred.AccessToken)

	body, err := s.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/me/insights?%s", s.cfg.Facebook.URL, params.Encode()),
		Platform: domain.PlatformFacebook,
	})
	if err != nil {
		logrus.WithError(err).Error("facebook: failed to get page insights from API")
		return nil, s.refineError(cred, err)
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.Debugf("facebook: page insights response\n%s", utils.PrettyJson(body))
	}

	var response facebookdomain.PageInsightsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("facebook: failed to decode page insights")
		return nil, domain.NewSourceError(domain.PlatformFacebook, domain.ErrKindAPI, "resposta de insights inválida")
	}

	return factoryPostsMetrics(totalPosts, &response), nil
}

// FetchAdsAnalytics consulta os insights da conta de anúncios vinculada.
// A conta de anúncios vem do payload auxiliar da credencial
func (s *FacebookIntegrator) FetchAdsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.AdsMetrics, error) {
	if cred.AuxAccountID == nil || *cred.AuxAccountID == "" {
		srcErr := domain.NewSourceError(domain.PlatformFacebook, domain.ErrKindNoBusinessAccount, "nenhuma conta de anúncios vinculada à credencial")
		srcErr.Details.Hint = "vincule uma conta de anúncios no gerenciador de negócios"
		return nil, srcErr
	}

	params := &url.Values{}
	params.Add("fields", "spend,reach,impressions,clicks,ctr,cpc")
	params.Add("date_preset", "last_30d")
	params.Add("access_token", cred.AccessToken)

	body, err := s.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/act_%s/insights?%s", s.cfg.Facebook.URL, *cred.AuxAccountID, params.Encode()),
		Platform: domain.PlatformFacebook,
	})
	if err != nil {
		logrus.WithError(err).Error("facebook: failed to get ad account insights from API")
		return nil, s.refineError(cred, err)
	}

	var response facebookdomain.AdInsightsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("facebook: failed to decode ad account insights")
		return nil, domain.NewSourceError(domain.PlatformFacebook, domain.ErrKindAPI, "resposta de insights de anúncios inválida")
	}

	if len(response.Data) == 0 {
		// Conta de anúncios sem veiculação no período
		return &domain.AdsMetrics{}, nil
	}

	return factoryAdsMetrics(&response.Data[0]), nil
}

func (s *FacebookIntegrator) getPublishedPostsCount(ctx context.Context, cred *domain.SourceCredential) (int, error) {
	params := &url.Values{}
	params.Add("summary", "total_count")
	params.Add("limit", "0")
	params.Add("access_token", cred.AccessToken)

	body, err := s.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/me/published_posts?%s", s.cfg.Facebook.URL, params.Encode()),
		Platform: domain.PlatformFacebook,
	})
	if err != nil {
		return 0, err
	}

	var response facebookdomain.PostsSummaryResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, domain.NewSourceError(domain.PlatformFacebook, domain.ErrKindAPI, "resposta de publicações inválida")
	}

	return response.Summary.TotalCount, nil
}

// refineError reclassifica o erro a partir do corpo devolvido pela API
// Graph. A API devolve erros OAuth e de limite de chamadas com status 400,
// então a classificação por status do cliente não basta
func (s *FacebookIntegrator) refineError(cred *domain.SourceCredential, err error) error {
	srcErr := domain.AsSourceError(domain.PlatformFacebook, err)
	if len(srcErr.Details.Raw) == 0 {
		return srcErr
	}

	var apiErr facebookdomain.ErrorResponse
	if jsonErr := json.Unmarshal(srcErr.Details.Raw, &apiErr); jsonErr != nil {
		return srcErr
	}

	switch {
	case apiErr.IsTokenExpired():
		srcErr.Kind = domain.ErrKindAuth
		srcErr.Message = apiErr.Error.Message
		srcErr.Retryable = false
	case apiErr.IsRateLimited():
		srcErr.Kind = domain.ErrKindRateLimit
		srcErr.Message = apiErr.Error.Message
		srcErr.Retryable = true
	}

	return srcErr
}

func factoryPostsMetrics(totalPosts int, response *facebookdomain.PageInsightsResponse) *domain.PostsMetrics {
	metrics := &domain.PostsMetrics{TotalPosts: totalPosts}

	var engagements *facebookdomain.Metric

	for i := range response.Data {
		metric := &response.Data[i]

		switch metric.Name {
		case "page_post_engagements":
			engagements = metric
			if totalPosts > 0 {
				metrics.AvgEngagement = metric.Sum() / float64(totalPosts)
			}
		case "page_impressions_unique":
			if totalPosts > 0 {
				metrics.AvgReach = int(metric.Sum()) / totalPosts
			}
		case "page_impressions":
			metrics.Impressions = int(metric.Sum())
		case "page_fans":
			metrics.Followers = int(metric.Latest())
		}
	}

	if engagements != nil {
		metrics.Trend = factoryTrend(engagements, response)
	}

	return metrics
}

// factoryTrend monta a tendência diária a partir das séries da página,
// casando os pontos pela data de fechamento
func factoryTrend(engagements *facebookdomain.Metric, response *facebookdomain.PageInsightsResponse) []domain.PostDayMetric {
	reachByDay := map[string]int{}
	impressionsByDay := map[string]int{}

	for _, metric := range response.Data {
		for _, value := range metric.Values {
			day := trendDate(value.EndTime)

			switch metric.Name {
			case "page_impressions_unique":
				reachByDay[day] = int(value.Value)
			case "page_impressions":
				impressionsByDay[day] = int(value.Value)
			}
		}
	}

	trend := make([]domain.PostDayMetric, 0, len(engagements.Values))
	for _, value := range engagements.Values {
		day := trendDate(value.EndTime)

		trend = append(trend, domain.PostDayMetric{
			Date:        day,
			Engagement:  value.Value,
			Reach:       reachByDay[day],
			Impressions: impressionsByDay[day],
		})
	}

	return trend
}

func trendDate(endTime string) string {
	if t, err := time.Parse(time.RFC3339, endTime); err == nil {
		return t.Format(time.DateOnly)
	}
	if len(endTime) >= len(time.DateOnly) {
		return endTime[:len(time.DateOnly)]
	}
	return endTime
}

func factoryAdsMetrics(insight *facebookdomain.AdInsight) *domain.AdsMetrics {
	return &domain.AdsMetrics{
		Spend:       parseFloat(insight.Spend),
		Reach:       parseInt(insight.Reach),
		Impressions: parseInt(insight.Impressions),
		Clicks:      parseInt(insight.Clicks),
		CTR:         parseFloat(insight.CTR),
		CPC:         parseFloat(insight.CPC),
	}
}

// A API Graph devolve valores numéricos de insights como strings
func parseFloat(raw string) float64 {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

func parseInt(raw string) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
