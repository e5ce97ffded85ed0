package fetchclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/social-metrics-api/internal/domain"
)

func testConfig() Config {
	return Config{
		MaxRetries:       3,
		BaseDelay:        time.Millisecond,
		RateLimitMaxWait: 5 * time.Millisecond,
		TransientMaxWait: 5 * time.Millisecond,
		RequestTimeout:   time.Second,
	}
}

func doGet(t *testing.T, client Client, url string) ([]byte, error) {
	t.Helper()
	return client.Do(context.Background(), &Request{
		Method:   http.MethodGet,
		URL:      url,
		Platform: domain.PlatformFacebook,
	})
}

// Rate limit na primeira tentativa e sucesso na seguinte: o resultado é o
// corpo da resposta, sem erro
func TestDo_RateLimitComSucessoNaRetentativa(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(testConfig())

	body, err := doGet(t, client, server.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_ErroTransitorioComRetry(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(testConfig())

	_, err := doGet(t, client, server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// 401 e 403 nunca são retentados
func TestDo_ErroDeAutenticacaoSemRetry(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(testConfig())

	_, err := doGet(t, client, server.URL)
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformFacebook, err)
	assert.Equal(t, domain.ErrKindAuth, srcErr.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_Erro4xxGenericoSemRetry(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(testConfig())

	_, err := doGet(t, client, server.URL)
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformFacebook, err)
	assert.Equal(t, domain.ErrKindAPI, srcErr.Kind)
	assert.False(t, srcErr.Retryable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// Após esgotar as tentativas o erro classificado volta intacto, com o
// Retry-After e o horário de reset informados pela plataforma
func TestDo_RateLimitEsgotadoPreservaDetalhes(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(testConfig())

	_, err := doGet(t, client, server.URL)
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformFacebook, err)
	assert.Equal(t, domain.ErrKindRateLimit, srcErr.Kind)
	assert.True(t, srcErr.Retryable)
	require.NotNil(t, srcErr.Details.RetryAfter)
	require.NotNil(t, srcErr.Details.ResetTime)
	assert.Equal(t, reset, srcErr.Details.ResetTime.Unix())
}

// Sem Retry-After utilizável, vale o padrão de 60 segundos nos detalhes
func TestDo_RateLimitSemCabecalhoUsaPadrao(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	// O backoff é limitado pelo teto de rate limit, então o teste não
	// espera os 60 segundos do padrão
	client := New(cfg)

	_, err := doGet(t, client, server.URL)
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformFacebook, err)
	require.NotNil(t, srcErr.Details.RetryAfter)
	assert.Equal(t, DefaultRetryAfter, *srcErr.Details.RetryAfter)
}

func TestDo_FalhaDeTransporte(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // porta fechada: conexão recusada

	cfg := testConfig()
	cfg.MaxRetries = 1
	client := New(cfg)

	_, err := doGet(t, client, server.URL)
	require.Error(t, err)

	srcErr := domain.AsSourceError(domain.PlatformFacebook, err)
	assert.Equal(t, domain.ErrKindNetwork, srcErr.Kind)
	assert.True(t, srcErr.Retryable)
}

func TestDo_CancelamentoDeContextoInterrompeBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseDelay = time.Second
	cfg.TransientMaxWait = 10 * time.Second
	client := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Do(ctx, &Request{
		Method:   http.MethodGet,
		URL:      server.URL,
		Platform: domain.PlatformTwitter,
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
