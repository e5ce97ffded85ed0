package facebookdomain

// ErrorResponse representa a estrutura de erro da API Graph
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails contém os detalhes de erro da API Graph
type ErrorDetails struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id"`
}

// IsTokenExpired verifica se o erro é de token expirado
func (e *ErrorResponse) IsTokenExpired() bool {
	// O código 190 representa "token expirado" nas respostas da API Graph
	// Subcódigos relacionados a problemas de token: 460, 463, 467
	return e.Error.Code == 190 ||
		(e.Error.Type == "OAuthException" && (e.Error.ErrorSubcode == 460 || e.Error.ErrorSubcode == 463 || e.Error.ErrorSubcode == 467))
}

// IsRateLimited verifica se o erro é de limite de chamadas da aplicação
func (e *ErrorResponse) IsRateLimited() bool {
	// Códigos 4, 17 e 32 representam limites de chamadas por aplicação,
	// usuário e página na API Graph
	return e.Error.Code == 4 || e.Error.Code == 17 || e.Error.Code == 32
}
