package tiktokdomain

// Envelope é a casca comum das respostas da API de negócios do TikTok.
// Erros chegam com status 200 e código diferente de zero no corpo
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

const (
	// CodeOK indica sucesso no envelope
	CodeOK = 0

	// CodeUnauthorized indica token inválido ou expirado
	CodeUnauthorized = 40100

	// CodeNoBusinessAccount indica que o usuário não tem conta de
	// negócios vinculada
	CodeNoBusinessAccount = 40016
)

// BusinessGetResponse representa a resposta de /business/get/
type BusinessGetResponse struct {
	Envelope
	Data BusinessProfile `json:"data"`
}

type BusinessProfile struct {
	Username       string `json:"username"`
	FollowersCount int    `json:"followers_count"`
	VideoCount     int    `json:"video_count"`
}

// VideoListResponse representa a resposta de /business/video/list/
type VideoListResponse struct {
	Envelope
	Data struct {
		Videos []Video `json:"videos"`
	} `json:"data"`
}

type Video struct {
	ItemID     string `json:"item_id"`
	CreateTime int64  `json:"create_time"`
	Likes      int    `json:"likes"`
	Comments   int    `json:"comments"`
	Shares     int    `json:"shares"`
	Reach      int    `json:"reach"`
	VideoViews int    `json:"video_views"`
}

// Engagement acumula as interações do vídeo
func (v *Video) Engagement() int {
	return v.Likes + v.Comments + v.Shares
}

// AdReportResponse representa a resposta de /report/integrated/get/
type AdReportResponse struct {
	Envelope
	Data struct {
		List []AdReportRow `json:"list"`
	} `json:"data"`
}

type AdReportRow struct {
	Metrics AdMetrics `json:"metrics"`
}

type AdMetrics struct {
	Spend       float64 `json:"spend"`
	Reach       int     `json:"reach"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
}
