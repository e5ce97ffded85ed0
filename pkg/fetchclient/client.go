package fetchclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/pkg/metrics"
)

const (
	// DefaultMaxRetries é o limite padrão de novas tentativas por chamada
	DefaultMaxRetries = 3

	// DefaultRetryAfter é usado quando a plataforma devolve 429 sem
	// informar o cabeçalho Retry-After
	DefaultRetryAfter = 60 * time.Second
)

// Config controla a política de retry e backoff do cliente
type Config struct {
	MaxRetries       int
	BaseDelay        time.Duration
	RateLimitMaxWait time.Duration
	TransientMaxWait time.Duration
	RequestTimeout   time.Duration
}

// DefaultConfig retorna a configuração padrão do cliente
func DefaultConfig() Config {
	return Config{
		MaxRetries:       DefaultMaxRetries,
		BaseDelay:        time.Second,
		RateLimitMaxWait: 30 * time.Second,
		TransientMaxWait: 10 * time.Second,
		RequestTimeout:   30 * time.Second,
	}
}

// Request descreve uma chamada upstream. O cliente não conhece a semântica
// de nenhuma plataforma; Platform existe apenas para logs e métricas
type Request struct {
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
	Platform domain.Platform
}

// Client executa uma chamada upstream com classificação uniforme de erros,
// retry e backoff. Não tem estado entre chamadas e não conhece o cache
type Client interface {
	Do(ctx context.Context, req *Request) ([]byte, error)
}

type ResilientClient struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.RateLimitMaxWait <= 0 {
		cfg.RateLimitMaxWait = 30 * time.Second
	}
	if cfg.TransientMaxWait <= 0 {
		cfg.TransientMaxWait = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &ResilientClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Do executa a chamada com um laço explícito e limitado de tentativas.
// Após esgotar as tentativas o erro classificado é devolvido intacto;
// consultar o cache como fallback é responsabilidade do chamador
func (c *ResilientClient) Do(ctx context.Context, req *Request) ([]byte, error) {
	var lastErr *domain.SourceError

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffFor(lastErr, attempt)

			logrus.WithFields(logrus.Fields{
				"platform": req.Platform,
				"attempt":  attempt,
				"kind":     lastErr.Kind,
				"wait":     wait.String(),
			}).Warn("fetch: aguardando antes de nova tentativa")

			metrics.UpstreamRetries.WithLabelValues(string(req.Platform)).Inc()

			if err := sleepContext(ctx, wait); err != nil {
				return nil, domain.AsSourceError(req.Platform, err)
			}
		}

		body, srcErr := c.doOnce(ctx, req)
		if srcErr == nil {
			metrics.UpstreamRequests.WithLabelValues(string(req.Platform), "success").Inc()
			return body, nil
		}

		metrics.UpstreamRequests.WithLabelValues(string(req.Platform), string(srcErr.Kind)).Inc()
		lastErr = srcErr

		if !srcErr.Retryable {
			return nil, srcErr
		}

		// Se o contexto da unidade já morreu, não adianta insistir
		if ctx.Err() != nil {
			return nil, srcErr
		}
	}

	logrus.WithFields(logrus.Fields{
		"platform":    req.Platform,
		"kind":        lastErr.Kind,
		"max_retries": c.cfg.MaxRetries,
	}).Warn("fetch: tentativas esgotadas")

	return nil, lastErr
}

// doOnce executa uma única chamada e classifica o resultado
func (c *ResilientClient) doOnce(ctx context.Context, req *Request) ([]byte, *domain.SourceError) {
	var reqBody io.Reader
	if len(req.Body) > 0 {
		reqBody = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reqBody)
	if err != nil {
		return nil, &domain.SourceError{
			Platform: req.Platform,
			Kind:     domain.ErrKindAPI,
			Message:  fmt.Sprintf("erro ao montar requisição: %v", err),
		}
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Falha de transporte: timeout, conexão recusada, DNS
		return nil, &domain.SourceError{
			Platform:  req.Platform,
			Kind:      domain.ErrKindNetwork,
			Message:   transportErrorMessage(err),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.SourceError{
			Platform:  req.Platform,
			Kind:      domain.ErrKindNetwork,
			Message:   fmt.Sprintf("erro ao ler resposta: %v", err),
			Retryable: true,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	return nil, c.classifyStatus(req.Platform, resp, body)
}

// classifyStatus converte uma resposta não-2xx na taxonomia compartilhada
func (c *ResilientClient) classifyStatus(platform domain.Platform, resp *http.Response, body []byte) *domain.SourceError {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, resetTime := parseRateLimitHeaders(resp.Header)

		return &domain.SourceError{
			Platform:  platform,
			Kind:      domain.ErrKindRateLimit,
			Message:   "limite de requisições da plataforma excedido",
			Retryable: true,
			Details: domain.ErrorDetails{
				RetryAfter: &retryAfter,
				ResetTime:  resetTime,
				StatusCode: resp.StatusCode,
				Raw:        body,
			},
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.SourceError{
			Platform: platform,
			Kind:     domain.ErrKindAuth,
			Message:  fmt.Sprintf("credencial rejeitada pela plataforma (status %d)", resp.StatusCode),
			Details:  domain.ErrorDetails{StatusCode: resp.StatusCode, Raw: body},
		}

	default:
		return &domain.SourceError{
			Platform:  platform,
			Kind:      domain.ErrKindAPI,
			Message:   fmt.Sprintf("resposta inesperada da plataforma. Status: %d, Corpo: %s", resp.StatusCode, truncate(body, 256)),
			Retryable: resp.StatusCode >= 500,
			Details:   domain.ErrorDetails{StatusCode: resp.StatusCode, Raw: body},
		}
	}
}

// backoffFor calcula a espera antes da tentativa informada. Para rate limit
// vale o maior entre o backoff exponencial e o Retry-After informado
func (c *ResilientClient) backoffFor(lastErr *domain.SourceError, attempt int) time.Duration {
	maxWait := c.cfg.TransientMaxWait
	if lastErr.Kind == domain.ErrKindRateLimit {
		maxWait = c.cfg.RateLimitMaxWait
	}

	wait := time.Duration(float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if wait > maxWait {
		wait = maxWait
	}

	if lastErr.Kind == domain.ErrKindRateLimit && lastErr.Details.RetryAfter != nil {
		if *lastErr.Details.RetryAfter > wait {
			wait = *lastErr.Details.RetryAfter
		}
		if wait > maxWait {
			wait = maxWait
		}
	}

	return wait
}

// parseRateLimitHeaders extrai Retry-After e o horário de reset da janela.
// Sem cabeçalhos utilizáveis, assume o padrão de 60 segundos
func parseRateLimitHeaders(header http.Header) (time.Duration, *time.Time) {
	retryAfter := DefaultRetryAfter
	var resetTime *time.Time

	if raw := header.Get("Retry-After"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds >= 0 {
			retryAfter = time.Duration(seconds) * time.Second
		} else if t, err := http.ParseTime(raw); err == nil {
			retryAfter = time.Until(t)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
	}

	if raw := header.Get("X-RateLimit-Reset"); raw != "" {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil && epoch > 0 {
			t := time.Unix(epoch, 0)
			resetTime = &t
		}
	}

	return retryAfter, resetTime
}

// sleepContext aguarda respeitando o cancelamento do contexto
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func transportErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout na chamada à plataforma"
	}
	return fmt.Sprintf("falha de transporte: %v", err)
}

func truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
