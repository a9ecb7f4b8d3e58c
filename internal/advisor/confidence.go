package advisor

// Two related but distinct confidence values drive two different decisions:
//
//   - RetrievalConfidence scores how well a support auto-response is grounded
//     in retrieved documents. Below the retrieval escalation threshold
//     (default 0.65) the response is flagged for human review.
//   - The conversational suggestion confidence (relevance score of the
//     top-ranked retrieved document) gates admin notification at ticket
//     creation against the suppression threshold (default 0.8).
//
// The two thresholds are independent knobs and are configured separately.

// RetrievalConfidence computes the grounding score for an auto-response.
//
// docCountScore contributes up to 0.5, saturating at five documents.
// keywordScore contributes up to 0.5, saturating at two matches per keyword;
// with no keywords it contributes a flat 0.25.
func RetrievalConfidence(docCount, keywordMatches int, keywords []string) float64 {
	docCountScore := minFloat(float64(docCount)/5, 1) * 0.5

	keywordScore := 0.25
	if len(keywords) > 0 {
		keywordScore = minFloat(float64(keywordMatches)/float64(len(keywords)*2), 1) * 0.5
	}

	return docCountScore + keywordScore
}

// ShouldEscalateForReview reports whether an auto-response with the given
// retrieval confidence must be flagged for human review. This flag never
// changes ticket status by itself.
func ShouldEscalateForReview(score, threshold float64) bool {
	return score < threshold
}

// SuppressAdminNotification reports whether admin notification of a newly
// created ticket may be skipped: only when the advisor auto-answered and its
// confidence clears the suppression threshold.
func SuppressAdminNotification(autoAnswered bool, confidence, threshold float64) bool {
	return autoAnswered && confidence >= threshold
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
