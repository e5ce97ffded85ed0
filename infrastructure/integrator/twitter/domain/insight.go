package twitterdomain

// APIError é um item do array errors das respostas v2. A API pode
// devolvê-lo junto com dados parciais em respostas 200
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status,omitempty"`
}

const (
	// TitleUsageCapExceeded indica estouro da cota mensal de leitura
	TitleUsageCapExceeded = "UsageCapExceeded"

	// TitleUnauthorized indica token inválido ou revogado
	TitleUnauthorized = "Unauthorized"
)

// UserResponse representa a resposta de /users/me
type UserResponse struct {
	Data   User       `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
		TweetCount     int `json:"tweet_count"`
	} `json:"public_metrics"`
}

// TweetsResponse representa a resposta de /users/:id/tweets
type TweetsResponse struct {
	Data   []Tweet    `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
	Meta   struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

type Tweet struct {
	ID            string `json:"id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount       int `json:"like_count"`
		ReplyCount      int `json:"reply_count"`
		RetweetCount    int `json:"retweet_count"`
		QuoteCount      int `json:"quote_count"`
		ImpressionCount int `json:"impression_count"`
	} `json:"public_metrics"`
}

// Engagement acumula as interações da publicação
func (t *Tweet) Engagement() int {
	return t.PublicMetrics.LikeCount +
		t.PublicMetrics.ReplyCount +
		t.PublicMetrics.RetweetCount +
		t.PublicMetrics.QuoteCount
}

// AdsStatsResponse representa a resposta de estatísticas de uma conta de
// anúncios
type AdsStatsResponse struct {
	Data struct {
		Spend       float64 `json:"spend"`
		Reach       int     `json:"reach"`
		Impressions int     `json:"impressions"`
		Clicks      int     `json:"clicks"`
		CTR         float64 `json:"ctr"`
		CPC         float64 `json:"cpc"`
	} `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
}
