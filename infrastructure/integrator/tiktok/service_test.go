package tiktok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
)

func testIntegrator(serverURL string) *TikTokIntegrator {
	cfg := &config.Config{}
	cfg.TikTok.URL = serverURL

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
		ID:          "cred-tt",
		AccountID:   "acc-1",
		Platform:    domain.PlatformTikTok,
		AccessToken: "tiktok-token",
	}
	if auxAccountID != "" {
		cred.AuxAccountID = &auxAccountID
	}
	return cred
}

func TestFetchPostsAnalytics_NormalizaVideos(t *testing.T) {
	day1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/business/get/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tiktok-token", r.Header.Get("Access-Token"))
		assert.Equal(t, "biz-1", r.URL.Query().Get("business_id"))
		w.Write([]byte(`{"code":0,"message":"OK","data":{"username":"loja","followers_count":800,"video_count":3}}`))
	})
	mux.HandleFunc("/business/video/list/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"message":"OK","data":{"videos":[
			{"item_id":"v1","create_time":` + int64String(day1) + `,"likes":10,"comments":4,"shares":2,"reach":100,"video_views":150},
			{"item_id":"v2","create_time":` + int64String(day1) + `,"likes":6,"comments":1,"shares":1,"reach":60,"video_views":90},
			{"item_id":"v3","create_time":` + int64String(day2) + `,"likes":20,"comments":5,"shares":5,"reach":200,"video_views":300}
		]}}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	metrics, err := testIntegrator(server.URL).FetchPostsAnalytics(context.Background(), credential("biz-1"))
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.TotalPosts)
	assert.Equal(t, 800, metrics.Followers)
	assert.Equal(t, 18.0, metrics.AvgEngagement)
	assert.Equal(t, 120, metrics.AvgReach)
	assert.Equal(t, 540, metrics.Impressions)

	require.Len(t, metrics.Trend, 2)
	assert.Equal(t, "2026-08-01", metrics.Trend[0].Date)
	assert.Equal(t, 2, metrics.Trend[0].Posts)
	assert.Equal(t, 24.0, metrics.Trend[0].Engagement)
	assert.Equal(t, 160, metrics.Trend[0].Reach)
	assert.Equal(t, "2026-08-02", metrics.Trend[1].Date)
	assert.Equal(t, 1, metrics.Trend[1].Posts)
}

func TestFetchPostsAnalytics_ErroNoEnvelopeComStatusOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40100,"message":"Access token is invalid"}`))
	}))
	defer server.Close()

	_, err := testIntegrator(server.URL).FetchPostsAnalytics(context.Background(), credential(""))
	require.Error(t, err)

	var srcErr *domain.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, domain.ErrKindAuth, srcErr.Kind)
	assert.Equal(t, "Access token is invalid", srcErr.Message)
}

func TestFetchPostsAnalytics_PerfilSemContaDeNegocios(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40016,"message":"Business account not found"}`))
	}))
	defer server.Close()

	_, err := testIntegrator(server.URL).FetchPostsAnalytics(context.Background(), credential(""))
	require.Error(t, err)

	var srcErr *domain.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, domain.ErrKindNoBusinessAccount, srcErr.Kind)
	assert.NotEmpty(t, srcErr.Details.Hint)
}

func TestFetchAdsAnalytics_RelatorioVazioRetornaZerado(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "adv-1", r.URL.Query().Get("advertiser_id"))
		w.Write([]byte(`{"code":0,"message":"OK","data":{"list":[]}}`))
	}))
	defer server.Close()

	metrics, err := testIntegrator(server.URL).FetchAdsAnalytics(context.Background(), credential("adv-1"))
	require.NoError(t, err)
	assert.Equal(t, &domain.AdsMetrics{}, metrics)
}

func TestFetchAdsAnalytics_MapeiaRelatorioIntegrado(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"message":"OK","data":{"list":[{"metrics":{"spend":55.2,"reach":900,"impressions":1200,"clicks":40,"ctr":3.3,"cpc":1.38}}]}}`))
	}))
	defer server.Close()

	metrics, err := testIntegrator(server.URL).FetchAdsAnalytics(context.Background(), credential("adv-1"))
	require.NoError(t, err)

	assert.Equal(t, 55.2, metrics.Spend)
	assert.Equal(t, 900, metrics.Reach)
	assert.Equal(t, 40, metrics.Clicks)
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
