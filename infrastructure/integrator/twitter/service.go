package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	twitterdomain "github.com/vfg2006/social-metrics-api/infrastructure/integrator/twitter/domain"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
)

type TwitterIntegrator struct {
	cfg     *config.Config
	fetcher fetchclient.Client
}

func New(cfg *config.Config, fetcher fetchclient.Client) *TwitterIntegrator {
	return &TwitterIntegrator{
		cfg:     cfg,
		fetcher: fetcher,
	}
}

func (s *TwitterIntegrator) Platform() domain.Platform {
	return domain.PlatformTwitter
}

// FetchPostsAnalytics consulta o usuário autenticado e suas publicações
// recentes, e normaliza as interações em médias por publicação
func (s *TwitterIntegrator) FetchPostsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.PostsMetrics, error) {
	user, err := s.getAuthenticatedUser(ctx, cred)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/users/%s/tweets?tweet.fields=public_metrics,created_at&max_results=100", s.cfg.Twitter.URL, user.ID)

	body, err := s.get(ctx, cred, url)
	if err != nil {
		logrus.WithError(err).Error("twitter: failed to get tweets from API")
		return nil, err
	}

	var response twitterdomain.TweetsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("twitter: failed to decode tweets")
		return nil, domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindAPI, "resposta de publicações inválida")
	}

	if srcErr := classifyErrors(response.Errors); srcErr != nil {
		return nil, srcErr
	}

	return factoryPostsMetrics(user, response.Data), nil
}

// FetchAdsAnalytics consulta as estatísticas da conta de anúncios
// vinculada à credencial
func (s *TwitterIntegrator) FetchAdsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.AdsMetrics, error) {
	if cred.AuxAccountID == nil || *cred.AuxAccountID == "" {
		srcErr := domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindNoBusinessAccount, "nenhuma conta de anúncios vinculada à credencial")
		srcErr.Details.Hint = "vincule uma conta de anúncios no painel de anunciante"
		return nil, srcErr
	}

	url := fmt.Sprintf("%s/ads/accounts/%s/stats?metrics=spend,reach,impressions,clicks,ctr,cpc", s.cfg.Twitter.URL, *cred.AuxAccountID)

	body, err := s.get(ctx, cred, url)
	if err != nil {
		logrus.WithError(err).Error("twitter: failed to get ads stats from API")
		return nil, err
	}

	var response twitterdomain.AdsStatsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("twitter: failed to decode ads stats")
		return nil, domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindAPI, "resposta de estatísticas de anúncios inválida")
	}

	if srcErr := classifyErrors(response.Errors); srcErr != nil {
		return nil, srcErr
	}

	return &domain.AdsMetrics{
		Spend:       response.Data.Spend,
		Reach:       response.Data.Reach,
		Impressions: response.Data.Impressions,
		Clicks:      response.Data.Clicks,
		CTR:         response.Data.CTR,
		CPC:         response.Data.CPC,
	}, nil
}

func (s *TwitterIntegrator) getAuthenticatedUser(ctx context.Context, cred *domain.SourceCredential) (*twitterdomain.User, error) {
	body, err := s.get(ctx, cred, fmt.Sprintf("%s/users/me?user.fields=public_metrics", s.cfg.Twitter.URL))
	if err != nil {
		logrus.WithError(err).Error("twitter: failed to get authenticated user from API")
		return nil, err
	}

	var response twitterdomain.UserResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("twitter: failed to decode authenticated user")
		return nil, domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindAPI, "resposta de usuário inválida")
	}

	if srcErr := classifyErrors(response.Errors); srcErr != nil {
		return nil, srcErr
	}

	return &response.Data, nil
}

func (s *TwitterIntegrator) get(ctx context.Context, cred *domain.SourceCredential, url string) ([]byte, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.AccessToken)

	return s.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodGet,
		URL:      url,
		Header:   header,
		Platform: domain.PlatformTwitter,
	})
}

// classifyErrors converte o array errors da resposta na taxonomia
// compartilhada. A API v2 devolve erros parciais com status 200; o estouro
// da cota mensal chega assim, não como 429
func classifyErrors(apiErrors []twitterdomain.APIError) *domain.SourceError {
	if len(apiErrors) == 0 {
		return nil
	}

	first := apiErrors[0]

	switch first.Title {
	case twitterdomain.TitleUsageCapExceeded:
		srcErr := domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindRateLimit, first.Detail)
		srcErr.Retryable = true
		return srcErr

	case twitterdomain.TitleUnauthorized:
		return domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindAuth, first.Detail)

	default:
		return domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindAPI,
			fmt.Sprintf("%s: %s", first.Title, first.Detail))
	}
}

func factoryPostsMetrics(user *twitterdomain.User, tweets []twitterdomain.Tweet) *domain.PostsMetrics {
	metrics := &domain.PostsMetrics{
		TotalPosts: user.PublicMetrics.TweetCount,
		Followers:  user.PublicMetrics.FollowersCount,
	}

	if len(tweets) == 0 {
		return metrics
	}

	var totalEngagement, totalImpressions int
	engagementByDay := map[string]float64{}
	impressionsByDay := map[string]int{}
	postsByDay := map[string]int{}
	days := []string{}

	for _, tweet := range tweets {
		totalEngagement += tweet.Engagement()
		totalImpressions += tweet.PublicMetrics.ImpressionCount

		day := trendDate(tweet.CreatedAt)
		if _, seen := postsByDay[day]; !seen {
			days = append(days, day)
		}
		postsByDay[day]++
		engagementByDay[day] += float64(tweet.Engagement())
		impressionsByDay[day] += tweet.PublicMetrics.ImpressionCount
	}

	metrics.AvgEngagement = float64(totalEngagement) / float64(len(tweets))
	// A API não expõe alcance orgânico; impressões fazem as vezes
	metrics.AvgReach = totalImpressions / len(tweets)
	metrics.Impressions = totalImpressions

	for _, day := range days {
		metrics.Trend = append(metrics.Trend, domain.PostDayMetric{
			Date:        day,
			Posts:       postsByDay[day],
			Engagement:  engagementByDay[day],
			Reach:       impressionsByDay[day],
			Impressions: impressionsByDay[day],
		})
	}

	return metrics
}

func trendDate(createdAt string) string {
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		return t.Format(time.DateOnly)
	}
	return createdAt
}
