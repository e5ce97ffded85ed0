package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	tiktokdomain "github.com/vfg2006/social-metrics-api/infrastructure/integrator/tiktok/domain"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
)

type TikTokIntegrator struct {
	cfg     *config.Config
	fetcher fetchclient.Client
}

func New(cfg *config.Config, fetcher fetchclient.Client) *TikTokIntegrator {
	return &TikTokIntegrator{
		cfg:     cfg,
		fetcher: fetcher,
	}
}

func (s *TikTokIntegrator) Platform() domain.Platform {
	return domain.PlatformTikTok
}

// FetchPostsAnalytics consulta o perfil de negócios e a lista de vídeos, e
// normaliza as interações em médias por vídeo
func (s *TikTokIntegrator) FetchPostsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.PostsMetrics, error) {
	profile, err := s.getBusinessProfile(ctx, cred)
	if err != nil {
		return nil, err
	}

	body, err := s.get(ctx, cred, "/business/video/list/", &url.Values{
		"fields": []string{`["item_id","create_time","likes","comments","shares","reach","video_views"]`},
	})
	if err != nil {
		logrus.WithError(err).Error("tiktok: failed to get video list from API")
		return nil, err
	}

	var response tiktokdomain.VideoListResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("tiktok: failed to decode video list")
		return nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAPI, "resposta de vídeos inválida")
	}

	if srcErr := classifyEnvelope(&response.Envelope); srcErr != nil {
		return nil, srcErr
	}

	return factoryPostsMetrics(profile, response.Data.Videos), nil
}

// FetchAdsAnalytics consulta o relatório integrado de anúncios do
// anunciante vinculado à credencial
func (s *TikTokIntegrator) FetchAdsAnalytics(ctx context.Context, cred *domain.SourceCredential) (*domain.AdsMetrics, error) {
	params := &url.Values{
		"report_type": []string{"BASIC"},
		"metrics":     []string{`["spend","reach","impressions","clicks","ctr","cpc"]`},
	}
	if cred.AuxAccountID != nil {
		params.Add("advertiser_id", *cred.AuxAccountID)
	}

	body, err := s.get(ctx, cred, "/report/integrated/get/", params)
	if err != nil {
		logrus.WithError(err).Error("tiktok: failed to get ad report from API")
		return nil, err
	}

	var response tiktokdomain.AdReportResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("tiktok: failed to decode ad report")
		return nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAPI, "resposta de relatório de anúncios inválida")
	}

	if srcErr := classifyEnvelope(&response.Envelope); srcErr != nil {
		return nil, srcErr
	}

	if len(response.Data.List) == 0 {
		return &domain.AdsMetrics{}, nil
	}

	metrics := response.Data.List[0].Metrics

	return &domain.AdsMetrics{
		Spend:       metrics.Spend,
		Reach:       metrics.Reach,
		Impressions: metrics.Impressions,
		Clicks:      metrics.Clicks,
		CTR:         metrics.CTR,
		CPC:         metrics.CPC,
	}, nil
}

func (s *TikTokIntegrator) getBusinessProfile(ctx context.Context, cred *domain.SourceCredential) (*tiktokdomain.BusinessProfile, error) {
	body, err := s.get(ctx, cred, "/business/get/", &url.Values{
		"fields": []string{`["username","followers_count","video_count"]`},
	})
	if err != nil {
		logrus.WithError(err).Error("tiktok: failed to get business profile from API")
		return nil, err
	}

	var response tiktokdomain.BusinessGetResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("tiktok: failed to decode business profile")
		return nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAPI, "resposta de perfil inválida")
	}

	if srcErr := classifyEnvelope(&response.Envelope); srcErr != nil {
		return nil, srcErr
	}

	return &response.Data, nil
}

// get executa uma chamada autenticada. O TikTok autentica pelo cabeçalho
// Access-Token, não por parâmetro de query
func (s *TikTokIntegrator) get(ctx context.Context, cred *domain.SourceCredential, path string, params *url.Values) ([]byte, error) {
	if cred.AuxAccountID != nil && params.Get("business_id") == "" && params.Get("advertiser_id") == "" {
		params.Add("business_id", *cred.AuxAccountID)
	}

	header := http.Header{}
	header.Set("Access-Token", cred.AccessToken)

	return s.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s%s?%s", s.cfg.TikTok.URL, path, params.Encode()),
		Header:   header,
		Platform: domain.PlatformTikTok,
	})
}

// classifyEnvelope converte o código de erro do envelope na taxonomia
// compartilhada. O TikTok devolve erros com status 200, então a
// classificação por status do cliente não enxerga estes casos
func classifyEnvelope(envelope *tiktokdomain.Envelope) *domain.SourceError {
	switch envelope.Code {
	case tiktokdomain.CodeOK:
		return nil

	case tiktokdomain.CodeUnauthorized:
		return domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAuth, envelope.Message)

	case tiktokdomain.CodeNoBusinessAccount:
		srcErr := domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindNoBusinessAccount, envelope.Message)
		srcErr.Details.Hint = "converta o perfil em conta de negócios para liberar as métricas"
		return srcErr

	default:
		return domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAPI,
			fmt.Sprintf("erro da plataforma (código %d): %s", envelope.Code, envelope.Message))
	}
}

func factoryPostsMetrics(profile *tiktokdomain.BusinessProfile, videos []tiktokdomain.Video) *domain.PostsMetrics {
	metrics := &domain.PostsMetrics{
		TotalPosts: len(videos),
		Followers:  profile.FollowersCount,
	}

	if len(videos) == 0 {
		return metrics
	}

	var totalEngagement, totalReach, totalViews int
	engagementByDay := map[string]float64{}
	reachByDay := map[string]int{}
	viewsByDay := map[string]int{}
	postsByDay := map[string]int{}
	days := []string{}

	for _, video := range videos {
		totalEngagement += video.Engagement()
		totalReach += video.Reach
		totalViews += video.VideoViews

		day := time.Unix(video.CreateTime, 0).UTC().Format(time.DateOnly)
		if _, seen := postsByDay[day]; !seen {
			days = append(days, day)
		}
		postsByDay[day]++
		engagementByDay[day] += float64(video.Engagement())
		reachByDay[day] += video.Reach
		viewsByDay[day] += video.VideoViews
	}

	metrics.AvgEngagement = float64(totalEngagement) / float64(len(videos))
	metrics.AvgReach = totalReach / len(videos)
	metrics.Impressions = totalViews

	for _, day := range days {
		metrics.Trend = append(metrics.Trend, domain.PostDayMetric{
			Date:        day,
			Posts:       postsByDay[day],
			Engagement:  engagementByDay[day],
			Reach:       reachByDay[day],
			Impressions: viewsByDay[day],
		})
	}

	return metrics
}
