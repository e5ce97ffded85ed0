package domain

import "github.com/golang-jwt/jwt/v5"

// Papéis aceitos nos tokens emitidos pela plataforma principal
const (
	RoleAdmin   = 1
	RoleService = 2
	RoleClient  = 3
)

// Claims são as credenciais de acesso à API, emitidas pela plataforma
// principal. AccountID identifica o titular cujo relatório pode ser lido
type Claims struct {
	AccountID string `json:"account_id"`
	Role      int    `json:"role"`
	jwt.RegisteredClaims
}

// CanReadAccount indica se o portador pode ler o relatório da conta.
// Administradores e serviços internos leem qualquer conta; clientes leem
// apenas a própria
func (c *Claims) CanReadAccount(accountID string) bool {
	if c.Role == RoleAdmin || c.Role == RoleService {
		return true
	}
	return c.AccountID == accountID
}
