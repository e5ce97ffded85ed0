package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
)

func testIntegrator(serverURL string) *FacebookIntegrator {
	cfg := &config.Config{}
	cfg.Facebook.URL = serverURL

	fetcher := fetchclient.New(fetchclient.Config{
		MaxRetries:       1,
		BaseDelay:        time.Millisecond,
		RateLimitMaxWait: 5 * time.Millisecond,
		TransientMaxWait: 5 * time.Millisecond,
		RequestTimeout:   time.Second,
	})

	return New(cfg, fetcher)
}

func credential(auxAccountID string) *domain.SourceCredential {
	cred := &domain.SourceCredential{
		ID:          "cred-fb",
		AccountID:   "acc-1",
		Platform:    domain.PlatformFacebook,
		AccessToken: "page-token",
	}
	if auxAccountID != "" {
		cred.AuxAccountID = &auxAccountID
	}
	return cred
}

func TestFetchPostsAnalytics_NormalizaMetricasDaPagina(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/published_posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"summary":{"total_count":4}}`))
	})
	mux.HandleFunc("/me/insights", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		w.Write([]byte(`{"data":[
			{"name":"page_post_engagements","period":"day","values":[
				{"value":10,"end_time":"2026-08-01T07:00:00+0000"},
				{"value":30,"end_time":"2026-08-02T07:00:00+0000"}]},
			{"name":"page_impressions_unique","period":"day","values":[
				{"value":80,"end_time":"2026-08-01T07:00:00+0000"},
				{"value":120,"end_time":"2026-08-02T07:00:00+0000"}]},
			{"name":"page_impressions","period":"day","values":[
				{"value":150,"end_time":"2026-08-01T07:00:00+0000"},
				{"value":250,"end_time":"2026-08-02T07:00:00+0000"}]},
			{"name":"page_fans","period":"day","values":[
				{"value":490,"end_time":"2026-08-01T07:00:00+0000"},
				{"value":500,"end_time":"2026-08-02T07:00:00+0000"}]}
		]}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	metrics, err := testIntegrator(server.URL).FetchPostsAnalytics(context.Background(), credential(""))
	require.NoError(t, err)

	assert.Equal(t, 4, metrics.TotalPosts)
	assert.Equal(t, 10.0, metrics.AvgEngagement)
	assert.Equal(t, 50, metrics.AvgReach)
	assert.Equal(t, 400, metrics.Impressions)
	assert.Equal(t, 500, metrics.Followers)

	require.Len(t, metrics.Trend, 2)
	assert.Equal(t, "2026-08-01", metrics.Trend[0].Date)
	assert.Equal(t, 10.0, metrics.Trend[0].Engagement)
	assert.Equal(t, 80, metrics.Trend[0].Reach)
	assert.Equal(t, 150, metrics.Trend[0].Impressions)
	assert.Equal(t, "2026-08-02", metrics.Trend[1].Date)
}

func TestFetchPostsAnalytics_TokenExpiradoReclassificado(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Error validating access token: Session has expired","type":"OAuthException","code":190,"fbtrace_id":"AbC"}}`))
	}))
	defer server.Close()

	_, err := testIntegrator(server.URL).FetchPostsAnalytics(context.Background(), credential(""))
	require.Error(t, err)

	var srcErr *domain.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, domain.ErrKindAuth, srcErr.Kind)
	assert.False(t, srcErr.Retryable)
	assert.Contains(t, srcErr.Message, "Session has expired")
}

func TestFetchPostsAnalytics_LimiteDeChamadasReclassificado(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Application request limit reached","type":"OAuthException","code":4,"fbtrace_id":"AbC"}}`))
	}))
	defer server.Close()

	_, err := testIntegrator(server.URL).FetchPostsAnalytics(context.Background(), credential(""))
	require.Error(t, err)

	var srcErr *domain.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, domain.ErrKindRateLimit, srcErr.Kind)
	assert.True(t, srcErr.Retryable)
}

func TestFetchAdsAnalytics_SemContaVinculada(t *testing.T) {
	_, err := testIntegrator("http://unused").FetchAdsAnalytics(context.Background(), credential(""))
	require.Error(t, err)

	var srcErr *domain.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, domain.ErrKindNoBusinessAccount, srcErr.Kind)
	assert.NotEmpty(t, srcErr.Details.Hint)
}

func TestFetchAdsAnalytics_ConverteValoresTextuais(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/act_123456/insights", r.URL.Path)
		w.Write([]byte(`{"data":[{"spend":"12.50","reach":"100","impressions":"200","clicks":"8","ctr":"4.0","cpc":"1.56"}]}`))
	}))
	defer server.Close()

	metrics, err := testIntegrator(server.URL).FetchAdsAnalytics(context.Background(), credential("123456"))
	require.NoError(t, err)

	assert.Equal(t, 12.50, metrics.Spend)
	assert.Equal(t, 100, metrics.Reach)
	assert.Equal(t, 200, metrics.Impressions)
	assert.Equal(t, 8, metrics.Clicks)
	assert.Equal(t, 4.0, metrics.CTR)
	assert.Equal(t, 1.56, metrics.CPC)
}

func TestFetchAdsAnalytics_SemVeiculacaoRetornaZerado(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	metrics, err := testIntegrator(server.URL).FetchAdsAnalytics(context.Background(), credential("123456"))
	require.NoError(t, err)
	assert.Equal(t, &domain.AdsMetrics{}, metrics)
}
