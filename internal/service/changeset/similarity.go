package changeset

import (
	"strings"

	"github.com/finchley/expense-recon/internal/domain"
)

func indexByKey(snapshots []domain.EmployeeSnapshot) map[string][]*domain.EmployeeSnapshot {
	index := make(map[string][]*domain.EmployeeSnapshot, len(snapshots))
	for i := range snapshots {
		key := domain.NormalizeEmployeeKey(snapshots[i].EmployeeID)
		index[key] = append(index[key], &snapshots[i])
	}
	return index
}

// similarity scores two names in [0,1] using Jaccard similarity over
// 2-character grams of the normalized forms. Kept as a narrow helper so a
// different comparison engine can supply its own without touching the
// detector.
func similarity(a, b string) float64 {
	na, nb := domain.NormalizeText(a), domain.NormalizeText(b)
	if na == nb {
		return 1.0
	}
	ga, gb := nameGrams(na), nameGrams(nb)
	if len(ga) == 0 || len(gb) == 0 {
		return 0.0
	}
	intersection := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			intersection++
		}
	}
	return float64(intersection) / float64(len(ga)+len(gb)-intersection)
}

func nameGrams(name string) map[string]struct{} {
	grams := make(map[string]struct{})
	for _, token := range strings.Fields(name) {
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
