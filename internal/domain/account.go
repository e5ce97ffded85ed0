package domain

import "time"

// Platform identifica uma origem externa de métricas
type Platform string

const (
	PlatformFacebook   Platform = "facebook"
	PlatformTikTok     Platform = "tiktok"
	PlatformTwitter    Platform = "twitter"
	PlatformAllegroAds Platform = "allegro_ads"
)

// SubscriptionTier representa o plano de assinatura do titular da conta
type SubscriptionTier string

const (
	TierFree           SubscriptionTier = "FREE"
	TierPremiumMonthly SubscriptionTier = "PREMIUM_MONTHLY"
	TierPremiumYearly  SubscriptionTier = "PREMIUM_YEARLY"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account é o titular das integrações. O tier é mutado por eventos de
// cobrança em outro serviço; aqui a conta é somente leitura.
type Account struct {
	ID          string             `json:"id"`
	Nickname    *string            `json:"nickname,omitempty"`
	Tier        SubscriptionTier   `json:"tier"`
	Status      AccountStatus      `json:"status"`
	Credentials []SourceCredential `json:"-"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SourceCredential é a credencial de acesso de uma plataforma conectada.
// O payload auxiliar guarda dados específicos da plataforma (ex.: o id de
// sub-conta de anúncios do Allegro).
type SourceCredential struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Platform     Platform  `json:"platform"`
	AccessToken  string    `json:"-"`
	RefreshToken *string   `json:"-"`
	AuxAccountID *string   `json:"aux_account_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired indica se a credencial já é conhecidamente inválida,
// sem necessidade de consultar a plataforma
func (c *SourceCredential) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// HasRefreshToken indica se há um refresh token utilizável
func (c *SourceCredential) HasRefreshToken() bool {
	return c.RefreshToken != nil && *c.RefreshToken != ""
}
