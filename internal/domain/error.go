package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind é a taxonomia fechada de erros de integração. Todo adaptador
// converte o formato de erro da sua plataforma para um destes valores na
// própria fronteira; o orquestrador nunca inspeciona formatos específicos
type ErrorKind string

const (
	ErrKindRateLimit         ErrorKind = "rate_limit"
	ErrKindAuth              ErrorKind = "auth_error"
	ErrKindTokenExpired      ErrorKind = "token_expired"
	ErrKindAPI               ErrorKind = "api_error"
	ErrKindNetwork           ErrorKind = "network_error"
	ErrKindNoBusinessAccount ErrorKind = "no_business_account"
)

// ErrorDetails carrega dados estruturados opcionais do erro. Raw guarda o
// corpo devolvido pela plataforma para que o adaptador refine a
// classificação na fronteira; nunca é serializado na resposta
type ErrorDetails struct {
	RetryAfter *time.Duration `json:"retry_after,omitempty"`
	ResetTime  *time.Time     `json:"reset_time,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Hint       string         `json:"hint,omitempty"`
	Raw        []byte         `json:"-"`
}

// SourceError é o erro classificado de uma plataforma em um ciclo de
// agregação. Um por plataforma que falhou; nunca entra nos totais
type SourceError struct {
	Platform  Platform     `json:"platform"`
	Kind      ErrorKind    `json:"kind"`
	Message   string       `json:"message"`
	Details   ErrorDetails `json:"details,omitempty"`
	Retryable bool         `json:"-"`
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Message)
}

// NewSourceError cria um erro classificado para uma plataforma
func NewSourceError(platform Platform, kind ErrorKind, message string) *SourceError {
	return &SourceError{
		Platform: platform,
		Kind:     kind,
		Message:  message,
	}
}

// AsSourceError extrai um *SourceError de uma cadeia de erros. Erros que
// não foram classificados pelo adaptador viram network_error genérico
func AsSourceError(platform Platform, err error) *SourceError {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		if srcErr.Platform == "" {
			srcErr.Platform = platform
		}
		return srcErr
	}

	return &SourceError{
		Platform:  platform,
		Kind:      ErrKindNetwork,
		Message:   err.Error(),
		Retryable: true,
	}
}
