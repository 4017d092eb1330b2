package analysis

import (
	"context"
	"strings"
)

// Result is the outcome of scoring one message. Sentiment is in
// [-1, 1]; Suggestion is an optional assistant reply and may be empty.
type Result struct {
	Sentiment  float64 `json:"sentiment"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// Scorer produces a sentiment score (and optionally a suggestion) for
// a piece of negotiation text.
type Scorer interface {
	Score(ctx context.Context, text string) (*Result, error)
}

// LexiconScorer is the offline fallback scorer. It counts weighted
// term hits and produces no suggestions. Used when no Gemini API key
// is configured and in tests.
type LexiconScorer struct{}

var positiveTerms = map[string]float64{
	"agree": 1, "agreed": 1, "deal": 1, "great": 1, "good": 0.5,
	"accept": 1, "happy": 1, "fair": 0.5, "yes": 0.5, "thanks": 0.5,
	"perfect": 1, "excellent": 1, "wonderful": 1, "love": 1,
}

var negativeTerms = map[string]float64{
	"refuse": 1, "reject": 1, "no": 0.5, "unfair": 1, "bad": 0.5,
	"dispute": 1, "cancel": 1, "unacceptable": 1, "never": 0.5,
	"disappointed": 1, "terrible": 1, "insulting": 1, "lowball": 1,
}

func (LexiconScorer) Score(_ context.Context, text string) (*Result, error) {
	var pos, neg float64
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if v, ok := positiveTerms[w]; ok {
			pos += v
		}
		if v, ok := negativeTerms[w]; ok {
			neg += v
		}
	}
	total := pos + neg
	if total == 0 {
		return &Result{Sentiment: 0}, nil
	}
	return &Result{Sentiment: (pos - neg) / total}, nil
}
