package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/internal/usecases/reporting/mocks"
	"github.com/vfg2006/social-metrics-api/pkg/cache"
	"go.uber.org/mock/gomock"
)

func newMockAdapter(ctrl *gomock.Controller, platform domain.Platform) *mocks.MockSourceAdapter {
	adapter := mocks.NewMockSourceAdapter(ctrl)
	adapter.EXPECT().Platform().Return(platform).AnyTimes()
	return adapter
}

func missEverything(mockCache *mocks.MockResponseCache) {
	mockCache.EXPECT().GetInfo(gomock.Any()).Return(cache.Info{}).AnyTimes()
	mockCache.EXPECT().Get(gomock.Any()).Return(nil, false).AnyTimes()
	mockCache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func credFor(platform domain.Platform, token string) domain.SourceCredential {
	return domain.SourceCredential{
		ID:          "CRED-" + string(platform),
		AccountID:   "ACC001",
		Platform:    platform,
		AccessToken: token,
	}
}

func TestGetReport_SemCredenciais(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Nenhuma expectativa nos mocks: qualquer chamada de rede ou de cache
	// falharia o teste
	mockCache := mocks.NewMockResponseCache(ctrl)

	service := NewService(DefaultConfig(), mockCache, nil)

	account := &domain.Account{ID: "ACC001", Tier: domain.TierFree}

	report, err := service.GetReport(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, domain.Overview{}, report.Overview)
	assert.Empty(t, report.Records)
	assert.Empty(t, report.Errors)
	assert.Equal(t, domain.TierFree, report.Tier)
}

func TestGetReport_ContaInvalida(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewService(DefaultConfig(), mocks.NewMockResponseCache(ctrl), nil)

	report, err := service.GetReport(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, report)
}

// Cenário de referência: A tem sucesso, B falha de autenticação sem refresh
// token, C estoura rate limit sem cache anterior
func TestGetReport_CenarioParcial(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCache := mocks.NewMockResponseCache(ctrl)
	missEverything(mockCache)

	facebook := newMockAdapter(ctrl, domain.PlatformFacebook)
	facebook.EXPECT().
		FetchPostsAnalytics(gomock.Any(), gomock.Any()).
		Return(&domain.PostsMetrics{TotalPosts: 10, AvgEngagement: 5, AvgReach: 100}, nil)

	tiktok := newMockAdapter(ctrl, domain.PlatformTikTok)
	tiktok.EXPECT().
		FetchPostsAnalytics(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAuth, "token invalido"))

	twitter := newMockAdapter(ctrl, domain.PlatformTwitter)
	twitter.EXPECT().
		FetchPostsAnalytics(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewSourceError(domain.PlatformTwitter, domain.ErrKindRateLimit, "limite excedido"))

	service := NewService(DefaultConfig(), mockCache, nil, facebook, tiktok, twitter)

	account := &domain.Account{
		ID:   "ACC001",
		Tier: domain.TierFree,
		Credentials: []domain.SourceCredential{
			credFor(domain.PlatformFacebook, "tok-fb"),
			credFor(domain.PlatformTikTok, "tok-tt"),
			credFor(domain.PlatformTwitter, "tok-tw"),
		},
	}

	report, err := service.GetReport(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Overview.TotalPosts)
	assert.Equal(t, 50.0, report.Overview.TotalEngagement)
	assert.Equal(t, 1000, report.Overview.TotalReach)
	assert.Equal(t, 5.0, report.Overview.EngagementRate)

	require.Len(t, report.Records, 1)
	assert.Contains(t, report.Records, domain.PlatformFacebook)

	require.Len(t, report.Errors, 2)
	assert.Equal(t, domain.ErrKindTokenExpired, report.Errors[domain.PlatformTikTok].Kind)
	assert.Equal(t, domain.ErrKindRateLimit, report.Errors[domain.PlatformTwitter].Kind)
}

// Os totais consolidados não podem depender da ordem de término das
// unidades, apenas do desfecho final de cada plataforma
func TestGetReport_IndependenciaDaOrdemDeTermino(t *testing.T) {
	run := func(t *testing.T, delayFacebook, delayTwitter time.Duration) *domain.AggregatedReport {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockCache := mocks.NewMockResponseCache(ctrl)
		missEverything(mockCache)

		facebook := newMockAdapter(ctrl, domain.PlatformFacebook)
		facebook.EXPECT().
			FetchPostsAnalytics(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, *domain.SourceCredential) (*domain.PostsMetrics, error) {
				time.Sleep(delayFacebook)
				return &domain.PostsMetrics{TotalPosts: 4, AvgEngagement: 2, AvgReach: 50, Followers: 100}, nil
			})

		twitter := newMockAdapter(ctrl, domain.PlatformTwitter)
		twitter.EXPECT().
			FetchPostsAnalytics(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, *domain.SourceCredential) (*domain.PostsMetrics, error) {
				time.Sleep(delayTwitter)
				return &domain.PostsMetrics{TotalPosts: 6, AvgEngagement: 3, AvgReach: 30, Followers: 250}, nil
			})

		service := NewService(DefaultConfig(), mockCache, nil, facebook, twitter)

		account := &domain.Account{
			ID:   "ACC001",
			Tier: domain.TierFree,
			Credentials: []domain.SourceCredential{
				credFor(domain.PlatformFacebook, "tok-fb"),
				credFor(domain.PlatformTwitter, "tok-tw"),
			},
		}

		report, err := service.GetReport(context.Background(), account)
		require.NoError(t, err)
		return report
	}

	first := run(t, 30*time.Millisecond, 0)
	second := run(t, 0, 30*time.Millisecond)

	assert.Equal(t, first.Overview, second.Overview)
	assert.Equal(t, 10, first.Overview.TotalPosts)
	assert.Equal(t, 350, first.Overview.TotalFollowers)
}

// Conta FREE não consolida anúncios nem quando um registro com anúncios
// aparece pelo caminho do cache
func TestGetReport_GateDefensivoParaContaFree(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cachedRecord := &domain.SourceRecord{
		Platform: domain.PlatformFacebook,
		Posts:    &domain.PostsMetrics{TotalPosts: 5, AvgEngagement: 2, AvgReach: 10},
		Ads:      &domain.AdsMetrics{Spend: 999, Impressions: 1000, Clicks: 50},
	}
	payload, err := json.Marshal(cachedRecord)
	require.NoError(t, err)

	mockCache := mocks.NewMockResponseCache(ctrl)
	mockCache.EXPECT().GetInfo(gomock.Any()).Return(cache.Info{Found: true, Expired: false}).AnyTimes()
	mockCache.EXPECT().Get(gomock.Any()).Return(payload, true).AnyTimes()

	facebook := newMockAdapter(ctrl, domain.PlatformFacebook)

	service := NewService(DefaultConfig(), mockCache, nil, facebook)

	account := &domain.Account{
		ID:          "ACC001",
		Tier:        domain.TierFree,
		Credentials: []domain.SourceCredential{credFor(domain.PlatformFacebook, "tok-fb")},
	}

	report, err := service.GetReport(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Overview.TotalPosts)
	assert.Zero(t, report.Overview.AdSpend)
	assert.Zero(t, report.Overview.AdClicks)
	assert.Zero(t, report.Overview.AverageCPC)
	assert.Nil(t, report.Records[domain.PlatformFacebook].Ads)
}

// Rate limit esgotado com entrada anterior no cache (mesmo vencida) serve o
// registro stale como sucesso degradado, sem entrada no mapa de erros
func TestGetReport_RateLimitComFallbackStale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	staleRecord := &domain.SourceRecord{
		Platform: domain.PlatformTikTok,
		Posts:    &domain.PostsMetrics{TotalPosts: 8, AvgEngagement: 4, AvgReach: 20},
	}
	payload, err := json.Marshal(staleRecord)
	require.NoError(t, err)

	mockCache := mocks.NewMockResponseCache(ctrl)
	mockCache.EXPECT().GetInfo(gomock.Any()).Return(cache.Info{Found: true, Expired: true}).AnyTimes()
	mockCache.EXPECT().Get(gomock.Any()).Return(payload, true).AnyTimes()

	tiktok := newMockAdapter(ctrl, domain.PlatformTikTok)
	tiktok.EXPECT().
		FetchPostsAnalytics(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindRateLimit, "limite excedido"))

	service := NewService(DefaultConfig(), mockCache, nil, tiktok)

	account := &domain.Account{
		ID:          "ACC001",
		Tier:        domain.TierFree,
		Credentials: []domain.SourceCredential{credFor(domain.PlatformTikTok, "tok-tt")},
	}

	report, err := service.GetReport(context.Background(), account)
	require.NoError(t, err)

	assert.Empty(t, report.Errors)
	require.Contains(t, report.Records, domain.PlatformTikTok)
	assert.True(t, report.Records[domain.PlatformTikTok].Degraded)
	assert.Equal(t, 8, report.Overview.TotalPosts)
}

func TestGetReport_RenovacaoDeCredencial(t *testing.T) {
	refreshToken := "refresh-tt"

	tests := []struct {
		name     string
		setup    func(adapter *mocks.MockSourceAdapter, refresher *mocks.MockTokenRefresher)
		validate func(t *testing.T, report *domain.AggregatedReport)
	}{
		{
			name: "auth_error com refresh token renovado usa o resultado da nova busca",
			setup: func(adapter *mocks.MockSourceAdapter, refresher *mocks.MockTokenRefresher) {
				newCred := credFor(domain.PlatformTikTok, "tok-novo")
				newCred.RefreshToken = &refreshToken

				first := adapter.EXPECT().
					FetchPostsAnalytics(gomock.Any(), gomock.Any()).
					Return(nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAuth, "token invalido"))

				refresher.EXPECT().
					Refresh(gomock.Any(), "ACC001", gomock.Any()).
					Return(&newCred, nil).
					After(first)

				adapter.EXPECT().
					FetchPostsAnalytics(gomock.Any(), gomock.Any()).
					Return(&domain.PostsMetrics{TotalPosts: 3, AvgEngagement: 1, AvgReach: 10}, nil)
			},
			validate: func(t *testing.T, report *domain.AggregatedReport) {
				assert.Empty(t, report.Errors)
				assert.Equal(t, 3, report.Overview.TotalPosts)
			},
		},
		{
			name: "auth_error com renovação que falha vira token_expired",
			setup: func(adapter *mocks.MockSourceAdapter, refresher *mocks.MockTokenRefresher) {
				adapter.EXPECT().
					FetchPostsAnalytics(gomock.Any(), gomock.Any()).
					Return(nil, domain.NewSourceError(domain.PlatformTikTok, domain.ErrKindAuth, "token invalido"))

				refresher.EXPECT().
					Refresh(gomock.Any(), "ACC001", gomock.Any()).
					Return(nil, assert.AnError)
			},
			validate: func(t *testing.T, report *domain.AggregatedReport) {
				assert.Empty(t, report.Records)
				require.Contains(t, report.Errors, domain.PlatformTikTok)
				assert.Equal(t, domain.ErrKindTokenExpired, report.Errors[domain.PlatformTikTok].Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockCache := mocks.NewMockResponseCache(ctrl)
			missEverything(mockCache)

			adapter := newMockAdapter(ctrl, domain.PlatformTikTok)
			refresher := mocks.NewMockTokenRefresher(ctrl)
			tt.setup(adapter, refresher)

			service := NewService(DefaultConfig(), mockCache, refresher, adapter)

			cred := credFor(domain.PlatformTikTok, "tok-tt")
			cred.RefreshToken = &refreshToken

			account := &domain.Account{
				ID:          "ACC001",
				Tier:        domain.TierFree,
				Credentials: []domain.SourceCredential{cred},
			}

			report, err := service.GetReport(context.Background(), account)
			require.NoError(t, err)
			tt.validate(t, report)
		})
	}
}

// Credencial conhecidamente expirada sem refresh token: curto-circuito para
// token_expired sem nenhuma tentativa de rede
func TestGetReport_CredencialConhecidamenteExpirada(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCache := mocks.NewMockResponseCache(ctrl)
	missEverything(mockCache)

	// Sem expectativa de Fetch no adaptador: qualquer chamada falha o teste
	facebook := newMockAdapter(ctrl, domain.PlatformFacebook)

	service := NewService(DefaultConfig(), mockCache, nil, facebook)

	cred := credFor(domain.PlatformFacebook, "tok-fb")
	cred.ExpiresAt = time.Now().Add(-time.Hour)

	account := &domain.Account{
		ID:          "ACC001",
		Tier:        domain.TierFree,
		Credentials: []domain.SourceCredential{cred},
	}

	report, err := service.GetReport(context.Background(), account)
	require.NoError(t, err)

	require.Contains(t, report.Errors, domain.PlatformFacebook)
	assert.Equal(t, domain.ErrKindTokenExpired, report.Errors[domain.PlatformFacebook].Kind)
	assert.Zero(t, report.Overview.TotalPosts)
}

// Conta premium consolida anúncios; falha só nos anúncios mantém o registro
// orgânico da plataforma
func TestGetReport_ContaPremiumComAnuncios(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCache := mocks.NewMockResponseCache(ctrl)
	missEverything(mockCache)

	facebook := newMockAdapter(ctrl, domain.PlatformFacebook)
	facebook.EXPECT().
		FetchPostsAnalytics(gomock.Any(), gomock.Any()).
		Return(&domain.PostsMetrics{TotalPosts: 10, AvgEngagement: 5, AvgReach: 100}, nil)
	facebook.EXPECT().
		FetchAdsAnalytics(gomock.Any(), gomock.Any()).
		Return(&domain.AdsMetrics{Spend: 150, Impressions: 4000, Clicks: 200}, nil)

	allegro := newMockAdapter(ctrl, domain.PlatformAllegroAds)
	allegro.EXPECT().
		FetchPostsAnalytics(gomock.Any(), gomock.Any()).
		Return(&domain.PostsMetrics{TotalPosts: 2, AvgEngagement: 1, AvgReach: 5}, nil)
	allegro.EXPECT().
		FetchAdsAnalytics(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewSourceError(domain.PlatformAllegroAds, domain.ErrKindAPI, "indisponivel"))

	service := NewService(DefaultConfig(), mockCache, nil, facebook, allegro)

	account := &domain.Account{
		ID:   "ACC001",
		Tier: domain.TierPremiumMonthly,
		Credentials: []domain.SourceCredential{
			credFor(domain.PlatformFacebook, "tok-fb"),
			credFor(domain.PlatformAllegroAds, "tok-al"),
		},
	}

	report, err := service.GetReport(context.Background(), account)
	require.NoError(t, err)

	assert.Empty(t, report.Errors)
	require.Len(t, report.Records, 2)

	assert.NotNil(t, report.Records[domain.PlatformFacebook].Ads)
	assert.Nil(t, report.Records[domain.PlatformAllegroAds].Ads)

	assert.Equal(t, 150.0, report.Overview.AdSpend)
	assert.Equal(t, 200, report.Overview.AdClicks)
	// CPC médio sobre cliques reais: 150 / 200
	assert.Equal(t, 0.75, report.Overview.AverageCPC)
	// CTR médio: 200 / 4000 * 100
	assert.Equal(t, 5.0, report.Overview.AverageCTR)
}
