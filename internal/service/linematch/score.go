package linematch

import (
	"strings"

	"github.com/finchley/expense-recon/internal/domain"
)

// Scoring weights. Description similarity dominates; the exact-field
// signals break ties between lines with similar wording.
const (
	weightDescription = 0.5
	weightVendor      = 0.2
	weightCategory    = 0.2
	weightDate        = 0.1
)

// Confidence tier thresholds on the blended score.
const (
	highThreshold   = 0.70
	mediumThreshold = 0.50
)

// Score blends the similarity signals between one receipt line and one CAR
// line into a value in [0,1].
//
//	score = 0.5*descJaccard + 0.2*vendorExact + 0.2*categoryExact + 0.1*dateExact
//
// Missing optional fields contribute 0; Score is defined for every input
// and never panics.
func Score(receipt, car domain.LineItem) float64 {
	s := weightDescription*descriptionSimilarity(receipt, car) +
		weightVendor*exactMatch(receipt.Vendor, car.Vendor) +
		weightCategory*exactMatch(receipt.Category, car.Category) +
		weightDate*exactMatch(receipt.Date, car.Date)

	return clamp01(s)
}

// Tier thresholds a score into a confidence tier.
func Tier(score float64) domain.ConfidenceTier {
	switch {
	case score >= highThreshold:
		return domain.ConfidenceHigh
	case score >= mediumThreshold:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// descriptionSimilarity is the Jaccard similarity over 2-character gram
// sets built from the normalized description text of each line. Two lines
// with no description text at all are considered identical (1.0); if only
// one side has text there is nothing to compare against (0.0).
func descriptionSimilarity(a, b domain.LineItem) float64 {
	ga := bigrams(descriptionText(a))
	gb := bigrams(descriptionText(b))

	if len(ga) == 0 && len(gb) == 0 {
		return 1.0
	}
	if len(ga) == 0 || len(gb) == 0 {
		return 0.0
	}

	intersection := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			intersection++
		}
	}
	union := len(ga) + len(gb) - intersection
	return float64(intersection) / float64(union)
}

// descriptionText concatenates the line's textual fields into one
// normalized string: uppercased, alphanumeric and spaces only.
func descriptionText(l domain.LineItem) string {
	parts := make([]string, 0, 3)
	for _, p := range []*string{l.Vendor, l.Category, l.Descriptor} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	joined := strings.ToUpper(strings.Join(parts, " "))

	var b strings.Builder
	b.Grow(len(joined))
	for _, r := range joined {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// bigrams extracts the set of consecutive 2-character grams from each
// whitespace-separated token. Single-character tokens contribute
// themselves, so short vendor codes still participate.
func bigrams(text string) map[string]struct{} {
	grams := make(map[string]struct{})
	for _, token := range strings.Fields(text) {
		if len(token) < 2 {
			grams[token] = struct{}{}
			continue
		}
		for i := 0; i+2 <= len(token); i++ {
			grams[token[i:i+2]] = struct{}{}
		}
	}
	return grams
}

// exactMatch returns 1.0 when both values are present and equal ignoring
// case, 0.0 otherwise.
func exactMatch(a, b *string) float64 {
	if a == nil || b == nil || *a == "" || *b == "" {
		return 0.0
	}
	if strings.EqualFold(*a, *b) {
		return 1.0
	}
	return 0.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
