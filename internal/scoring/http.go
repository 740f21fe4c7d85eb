package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/salesrouter/backend/internal/models"
)

// HTTPScorer calls an external model service. Callers bound the request with
// a context deadline; a tripped deadline is reported as ErrTimeout.
type HTTPScorer struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	LeadID      string   `json:"lead_id"`
	CompanySize int      `json:"company_size"`
	Region      string   `json:"region"`
	Industry    string   `json:"industry"`
	Source      string   `json:"source"`
	Needs       []string `json:"needs"`
	RepID       string   `json:"rep_id"`
	RepTags     []string `json:"rep_tags"`
	RepRegions  []string `json:"rep_regions"`
	RepConvRate float64  `json:"rep_conversion_rate"`
}

type responseBody struct {
	Score        float64 `json:"score"`
	ModelVersion string  `json:"model_version"`
}

func (s HTTPScorer) Score(ctx context.Context, lead models.Lead, rep models.SalesRep) (float64, error) {
	if s.Client == nil {
		s.Client = &http.Client{Timeout: 5 * time.Second}
	}

	payload := requestBody{
		LeadID:      lead.ID,
		CompanySize: lead.CompanySize,
		Region:      lead.Region,
		Industry:    lead.Industry,
		Source:      lead.Source,
		Needs:       lead.Needs,
		RepID:       rep.ID,
		RepTags:     rep.Specializations,
		RepRegions:  rep.Territories,
		RepConvRate: rep.ConversionRate,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/score", bytes.NewBuffer(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ErrTimeout
		}
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errors.New("scoring service error")
	}

	var r responseBody
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, err
	}
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}
	return r.Score, nil
}
