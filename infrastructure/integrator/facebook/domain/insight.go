package facebookdomain

// PageInsightsResponse representa a resposta de /insights da API Graph
type PageInsightsResponse struct {
	Data []Metric `json:"data"`
}

// Metric é uma série de valores de uma métrica da página
type Metric struct {
	Name   string        `json:"name"`
	Period string        `json:"period"`
	Values []MetricValue `json:"values"`
}

type MetricValue struct {
	Value   float64 `json:"value"`
	EndTime string  `json:"end_time"`
}

// PostsSummaryResponse representa a resposta de /published_posts com
// summary=total_count
type PostsSummaryResponse struct {
	Summary struct {
		TotalCount int `json:"total_count"`
	} `json:"summary"`
}

// AdInsightsResponse representa a resposta de /insights de uma conta de
// anúncios (act_<id>)
type AdInsightsResponse struct {
	Data []AdInsight `json:"data"`
}

type AdInsight struct {
	Spend       string `json:"spend"`
	Reach       string `json:"reach"`
	Impressions string `json:"impressions"`
	Clicks      string `json:"clicks"`
	CTR         string `json:"ctr"`
	CPC         string `json:"cpc"`
}

// Latest retorna o valor mais recente da série, ou zero se vazia
func (m *Metric) Latest() float64 {
	if len(m.Values) == 0 {
		return 0
	}
	return m.Values[len(m.Values)-1].Value
}

// Sum acumula todos os valores da série
func (m *Metric) Sum() float64 {
	var total float64
	for _, v := range m.Values {
		total += v.Value
	}
	return total
}
