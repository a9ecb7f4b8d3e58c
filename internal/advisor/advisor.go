package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/opsdesk/support-engine/internal/config"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

// Suggestion is a candidate resolution for a freshly created ticket.
// RetrievalScore grades how well the answer is grounded in retrieved
// documents; ShouldEscalate is set when that grounding falls below the
// escalation threshold and the answer needs human review.
type Suggestion struct {
	Answer         string
	Confidence     float64
	AutoAnswered   bool
	RetrievalScore float64
	ShouldEscalate bool
}

// Advisor produces AI-suggested resolutions. Implementations must fail with
// an error rather than block; the engine recovers advisor failures and
// creates the ticket without a suggestion.
type Advisor interface {
	Suggest(ctx context.Context, subject, message string) (*Suggestion, error)
}

type httpAdvisor struct {
	cfg    config.AdvisorConfig
	client *http.Client
}

// NewHTTPAdvisor builds an advisor speaking JSON over HTTP to the text
// generation capability.
func NewHTTPAdvisor(cfg config.AdvisorConfig) Advisor {
	return &httpAdvisor{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

type suggestRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type retrievalStats struct {
	DocCount       int      `json:"doc_count"`
	KeywordMatches int      `json:"keyword_matches"`
	Keywords       []string `json:"keywords"`
}

type suggestResponse struct {
	Answer         string          `json:"answer"`
	RelevanceScore *float64        `json:"relevance_score"`
	AutoAnswered   bool            `json:"auto_answered"`
	Retrieval      *retrievalStats `json:"retrieval"`
}

func (a *httpAdvisor) Suggest(ctx context.Context, subject, message string) (*Suggestion, error) {
	if a.cfg.BaseURL == "" {
		return nil, apperrors.NewDependencyError("ai advisor", fmt.Errorf("advisor not configured"))
	}

	body, err := json.Marshal(suggestRequest{Subject: subject, Message: message})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+"/suggest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDependencyError("ai advisor", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDependencyError("ai advisor", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewDependencyError("ai advisor", err)
	}
	if strings.TrimSpace(parsed.Answer) == "" || parsed.RelevanceScore == nil {
		return nil, apperrors.NewDependencyError("ai advisor", fmt.Errorf("no usable suggestion"))
	}

	// Missing retrieval stats score as zero documents: an ungrounded
	// answer is flagged for review the same as a poorly grounded one.
	stats := retrievalStats{}
	if parsed.Retrieval != nil {
		stats = *parsed.Retrieval
	}
	retrievalScore := RetrievalConfidence(stats.DocCount, stats.KeywordMatches, stats.Keywords)

	return &Suggestion{
		Answer:         parsed.Answer,
		Confidence:     ClampConfidence(*parsed.RelevanceScore),
		AutoAnswered:   parsed.AutoAnswered,
		RetrievalScore: retrievalScore,
		ShouldEscalate: ShouldEscalateForReview(retrievalScore, a.cfg.RetrievalEscalationThreshold),
	}, nil
}
