package allegrodomain

// OfferStatsResponse representa a resposta de estatísticas de ofertas
type OfferStatsResponse struct {
	Offers     []OfferStat `json:"offers"`
	TotalCount int         `json:"totalCount"`
}

type OfferStat struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Visits   int    `json:"visits"`
	Views    int    `json:"views"`
	Watchers int    `json:"watchers"`
	Orders   int    `json:"orders"`
}

// Engagement acumula as interações da oferta
func (o *OfferStat) Engagement() int {
	return o.Watchers + o.Orders
}

// Money é o formato de valores monetários da plataforma
type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// CampaignStatsResponse representa a resposta de estatísticas das
// campanhas de anúncios de uma conta de anúncios
type CampaignStatsResponse struct {
	Stats CampaignStats `json:"stats"`
}

type CampaignStats struct {
	TotalCost   Money   `json:"totalCost"`
	Views       int     `json:"views"`
	Reach       int     `json:"reach"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
	AvgCPC      Money   `json:"avgCpc"`
	Impressions int     `json:"impressions"`
}

// ErrorResponse representa a estrutura de erro da plataforma
type ErrorResponse struct {
	Errors []UserError `json:"errors"`
}

type UserError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	Path        string `json:"path,omitempty"`
}

const (
	// CodeNotLinkedBusinessProfile indica que a conta não tem perfil de
	// negócios vinculado à central de anúncios
	CodeNotLinkedBusinessProfile = "NotLinkedBusinessProfile"

	// CodeInvalidToken indica token inválido ou revogado
	CodeInvalidToken = "InvalidToken"
)
