// Package moderation decides whether inbound chat content may be relayed.
// The gate is stateless and safe for concurrent use from many sessions.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Verdict is the outcome of classifying one message.
type Verdict int

const (
	Allow Verdict = iota
	Reject
)

// Label identifies the class returned by a sentiment classifier.
type Label string

const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
)

// Sentiment is the result of the injected classifier capability.
type Sentiment struct {
	Label Label
	Score float64
}

// Classifier is the external capability the gate falls back to when the
// lexical pre-filter finds nothing. Implementations must tolerate concurrent
// invocation.
type Classifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

// Gate screens content in two stages: a cheap Aho-Corasick denylist scan,
// then the classifier. The common case of obviously banned content never
// reaches the classifier.
type Gate struct {
	matcher    *goahocorasick.Machine
	classifier Classifier
	threshold  float64
	log        *slog.Logger
}

// NewGate builds the Aho-Corasick automaton from a normalized version of the
// denylist entries. A message is rejected outright when its sentiment score
// for the negative class exceeds threshold.
func NewGate(denylist []string, classifier Classifier, threshold float64, log *slog.Logger) (*Gate, error) {
	var patterns [][]rune
	for _, entry := range denylist {
		normalized := normalizeRunes([]rune(entry))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, fmt.Errorf("building denylist automaton: %w", err)
	}
	return &Gate{matcher: m, classifier: classifier, threshold: threshold, log: log}, nil
}

// Classify returns Reject on a denylist hit without invoking the classifier.
// A classifier fault yields Reject together with a non-nil error so the
// caller can report an internal failure instead of a moderation verdict.
func (g *Gate) Classify(ctx context.Context, text string) (Verdict, error) {
	if g.matchesDenylist(text) {
		g.logReject(text, "denylist")
		return Reject, nil
	}

	sentiment, err := g.classifier.Classify(ctx, text)
	if err != nil {
		return Reject, fmt.Errorf("classifier: %w", err)
	}

	if sentiment.Label == LabelNegative && sentiment.Score > g.threshold {
		g.logReject(text, "sentiment")
		return Reject, nil
	}
	return Allow, nil
}

func (g *Gate) matchesDenylist(text string) bool {
	normalized := normalizeRunes([]rune(text))
	if len(normalized) == 0 {
		return false
	}
	return len(g.matcher.MultiPatternSearch(normalized, true)) > 0
}

func (g *Gate) logReject(text, stage string) {
	info := whatlanggo.Detect(text)
	g.log.Info("message rejected",
		"stage", stage,
		"lang", info.Lang.Iso6391(),
		"length", len(text))
}

// normalizeRunes lowercases the input, maps common Leet speak substitutions
// back to their alphabet counterparts, and drops punctuation and spacing so
// obfuscated denylist entries still match.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
