package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/social-metrics-api/internal/config"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/fetchclient"
)

//go:generate mockgen -source=refresher.go -destination=mocks/refresher.go -package=mocks

// CredentialStore persiste credenciais renovadas
type CredentialStore interface {
	UpdateCredential(ctx context.Context, cred *domain.SourceCredential) error
}

// tokenResponse é a resposta padrão do grant de refresh token OAuth
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Refresher renova credenciais via grant de refresh token na URL de token
// de cada plataforma. Uma renovação por credencial de cada vez; chamadas
// concorrentes para a mesma credencial aguardam e reutilizam o resultado
type Refresher struct {
	cfg     *config.Config
	fetcher fetchclient.Client
	store   CredentialStore

	mu       sync.Mutex
	inFlight map[string]*refreshResult
}

type refreshResult struct {
	done chan struct{}
	cred *domain.SourceCredential
	err  error
}

func NewRefresher(cfg *config.Config, fetcher fetchclient.Client, store CredentialStore) *Refresher {
	return &Refresher{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		inFlight: make(map[string]*refreshResult),
	}
}

// Refresh executa o grant de refresh token e persiste a credencial
// renovada. A credencial original nunca é mutada
func (r *Refresher) Refresh(ctx context.Context, accountID string, cred *domain.SourceCredential) (*domain.SourceCredential, error) {
	if !cred.HasRefreshToken() {
		return nil, domain.NewSourceError(cred.Platform, domain.ErrKindTokenExpired, "credencial sem refresh token")
	}

	r.mu.Lock()
	if result, ok := r.inFlight[cred.ID]; ok {
		r.mu.Unlock()

		select {
		case <-result.done:
			return result.cred, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &refreshResult{done: make(chan struct{})}
	r.inFlight[cred.ID] = result
	r.mu.Unlock()

	result.cred, result.err = r.refresh(ctx, accountID, cred)
	close(result.done)

	r.mu.Lock()
	delete(r.inFlight, cred.ID)
	r.mu.Unlock()

	return result.cred, result.err
}

func (r *Refresher) refresh(ctx context.Context, accountID string, cred *domain.SourceCredential) (*domain.SourceCredential, error) {
	tokenURL, err := r.tokenURL(cred.Platform)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", *cred.RefreshToken)

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := r.fetcher.Do(ctx, &fetchclient.Request{
		Method:   http.MethodPost,
		URL:      tokenURL,
		Header:   header,
		Body:     []byte(form.Encode()),
		Platform: cred.Platform,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"platform":   cred.Platform,
			"account_id": accountID,
			"error":      err.Error(),
		}).Error("tokens: failed to refresh credential")

		srcErr := domain.AsSourceError(cred.Platform, err)
		if srcErr.Kind == domain.ErrKindAuth {
			// Refresh token também rejeitado: só resta reconectar
			srcErr.Kind = domain.ErrKindTokenExpired
			srcErr.Details.Hint = "reconecte a plataforma para renovar o acesso"
		}
		return nil, srcErr
	}

	var response tokenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("tokens: failed to decode token response")
		return nil, domain.NewSourceError(cred.Platform, domain.ErrKindAPI, "resposta do grant de refresh inválida")
	}

	if response.AccessToken == "" {
		return nil, domain.NewSourceError(cred.Platform, domain.ErrKindAPI, "grant de refresh não devolveu access token")
	}

	renewed := *cred
	renewed.AccessToken = response.AccessToken
	if response.RefreshToken != "" {
		renewed.RefreshToken = &response.RefreshToken
	}
	if response.ExpiresIn > 0 {
		renewed.ExpiresAt = time.Now().Add(time.Duration(response.ExpiresIn) * time.Second)
	} else {
		renewed.ExpiresAt = time.Time{}
	}

	if err := r.store.UpdateCredential(ctx, &renewed); err != nil {
		// A credencial renovada continua utilizável neste ciclo mesmo sem
		// persistir; o próximo ciclo renova de novo
		logrus.WithFields(logrus.Fields{
			"platform":   cred.Platform,
			"account_id": accountID,
			"error":      err.Error(),
		}).Error("tokens: failed to persist refreshed credential")
	} else {
		logrus.WithFields(logrus.Fields{
			"platform":   cred.Platform,
			"account_id": accountID,
		}).Info("tokens: credential refreshed")
	}

	return &renewed, nil
}

func (r *Refresher) tokenURL(platform domain.Platform) (string, error) {
	switch platform {
	case domain.PlatformFacebook:
		return r.cfg.Facebook.TokenURL, nil
	case domain.PlatformTikTok:
		return r.cfg.TikTok.TokenURL, nil
	case domain.PlatformTwitter:
		return r.cfg.Twitter.TokenURL, nil
	case domain.PlatformAllegroAds:
		return r.cfg.AllegroAds.TokenURL, nil
	default:
		return "", fmt.Errorf("plataforma sem URL de token configurada: %s", platform)
	}
}
