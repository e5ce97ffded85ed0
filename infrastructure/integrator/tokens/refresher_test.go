package tokens

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/social-metrics-api/infrastructure/integrator/tokens/mocks"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
	gomock "go.uber.org/mock/gomock"
)

func testFetchConfig() fetchclient.Config {
	return fetchclient.Config{
		MaxRetries:       1,
		BaseDelay:        time.Millisecond,
		RateLimitMaxWait: time.Millisecond,
		TransientMaxWait: time.Millisecond,
		RequestTimeout:   time.Second,
	}
}

func credWithRefresh(platform domain.Platform) *domain.SourceCredential {
	refresh := "refresh-token-antigo"
	return &domain.SourceCredential{
		ID:           "cred-1",
		AccountID:    "acc-1",
		Platform:     platform,
		AccessToken:  "token-antigo",
		RefreshToken: &refresh,
	}
}

func TestRefresh_SucessoPersisteCredencial(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-token-antigo", r.Form.Get("refresh_token"))

		w.Write([]byte(`{"access_token":"token-novo","refresh_token":"refresh-novo","expires_in":3600}`))
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Facebook.TokenURL = server.URL

	store := mocks.NewMockCredentialStore(ctrl)
	store.EXPECT().
		UpdateCredential(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred *domain.SourceCredential) error {
			assert.Equal(t, "token-novo", cred.AccessToken)
			return nil
		})

	refresher := NewRefresher(cfg, fetchclient.New(testFetchConfig()), store)

	original := credWithRefresh(domain.PlatformFacebook)
	renewed, err := refresher.Refresh(context.Background(), "acc-1", original)
	require.NoError(t, err)

	assert.Equal(t, "token-novo", renewed.AccessToken)
	require.NotNil(t, renewed.RefreshToken)
	assert.Equal(t, "refresh-novo", *renewed.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), renewed.ExpiresAt, time.Minute)

	// A credencial original não é mutada
	assert.Equal(t, "token-antigo", original.AccessToken)
}

// Refresh token também rejeitado pela plataforma: o erro vira
// token_expired, com a orientação de reconectar
func TestRefresh_RefreshTokenRejeitado(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.TikTok.TokenURL = server.URL

	store := mocks.NewMockCredentialStore(ctrl)

	refresher := NewRefresher(cfg, fetchclient.New(testFetchConfig()), store)

	_, err := refresher.Refresh(context.Background(), "acc-1", credWithRefresh(domain.PlatformTikTok))
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformTikTok, err)
	assert.Equal(t, domain.ErrKindTokenExpired, srcErr.Kind)
	assert.NotEmpty(t, srcErr.Details.Hint)
}

func TestRefresh_SemRefreshToken(t *testing.T) {
	ctrl := gomock.NewController(t)

	refresher := NewRefresher(&config.Config{}, fetchclient.New(testFetchConfig()), mocks.NewMockCredentialStore(ctrl))

	cred := credWithRefresh(domain.PlatformTwitter)
	cred.RefreshToken = nil

	_, err := refresher.Refresh(context.Background(), "acc-1", cred)
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformTwitter, err)
	assert.Equal(t, domain.ErrKindTokenExpired, srcErr.Kind)
}

// Falha ao persistir não invalida a renovação: a credencial nova continua
// utilizável no ciclo corrente
func TestRefresh_FalhaAoPersistirNaoDerrubaRenovacao(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"token-novo","expires_in":3600}`))
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.AllegroAds.TokenURL = server.URL

	store := mocks.NewMockCredentialStore(ctrl)
	store.EXPECT().
		UpdateCredential(gomock.Any(), gomock.Any()).
		Return(assert.AnError)

	refresher := NewRefresher(cfg, fetchclient.New(testFetchConfig()), store)

	renewed, err := refresher.Refresh(context.Background(), "acc-1", credWithRefresh(domain.PlatformAllegroAds))
	require.NoError(t, err)
	assert.Equal(t, "token-novo", renewed.AccessToken)
}
