// Package ai provides the built-in sentiment classifier used as the default
// moderation capability. Any implementation of moderation.Classifier can be
// swapped in; this one is a small lexicon-weighted logistic model so the
// relay works out of the box without an external model service.
package ai

import (
	"context"
	"math"
	"strings"

	"campus-connect/moderation"
)

// Weighted term lexicons. Scores feed a logistic function, so weights are
// log-odds contributions, not probabilities.
var negativeTerms = map[string]float64{
	"hate":       2.6,
	"stupid":     2.2,
	"idiot":      2.8,
	"awful":      2.0,
	"terrible":   2.0,
	"worst":      1.8,
	"trash":      1.6,
	"garbage":    1.6,
	"useless":    1.4,
	"disgusting": 2.4,
	"loser":      2.2,
	"shut":       1.0,
	"kill":       2.6,
	"die":        2.2,
}

var positiveTerms = map[string]float64{
	"love":      2.0,
	"great":     1.6,
	"good":      1.2,
	"nice":      1.2,
	"thanks":    1.4,
	"thank":     1.4,
	"awesome":   1.8,
	"happy":     1.4,
	"welcome":   1.0,
	"hello":     0.8,
	"congrats":  1.6,
	"excellent": 1.8,
}

// SentimentClassifier scores text with token-level lexicon features.
// It is stateless and safe for concurrent use.
type SentimentClassifier struct{}

func NewSentimentClassifier() *SentimentClassifier {
	return &SentimentClassifier{}
}

// Classify returns the dominant class and a confidence in [0,1].
// Neutral text (no lexicon hits) is reported positive with low confidence so
// it never trips a high rejection threshold.
func (c *SentimentClassifier) Classify(_ context.Context, text string) (moderation.Sentiment, error) {
	var negative, positive float64

	for _, token := range tokenize(text) {
		if w, ok := negativeTerms[token]; ok {
			negative += w
		}
		if w, ok := positiveTerms[token]; ok {
			positive += w
		}
	}

	// Logistic over the score margin: |margin| large -> confidence near 1.
	margin := negative - positive
	confidence := 1.0 / (1.0 + math.Exp(-math.Abs(margin)))

	label := moderation.LabelPositive
	if margin > 0 {
		label = moderation.LabelNegative
	}
	return moderation.Sentiment{Label: label, Score: confidence}, nil
}

// tokenize lowercases and strips surrounding punctuation.
// Punctuation inside a token is kept: "f*ck" is a different signal than "fck".
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.Trim(f, ".,;:!?\"'()[]")
		if trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}
