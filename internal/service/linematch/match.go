// Package linematch reconciles individual expense lines between an
// employee's receipt bundle and their cardholder activity report.
//
// Lines are partitioned into buckets by exact amount in cents; within a
// shared bucket, receipt lines are assigned greedily in input order to the
// highest-scoring remaining CAR line. The assignment is deliberately
// greedy and order-dependent rather than a globally optimal bipartite
// matching; downstream audit output depends on this ordering.
package linematch

import (
	"github.com/finchley/expense-recon/internal/domain"
)

// Match reconciles receipt lines against CAR lines and returns the full
// accounting: every input line appears exactly once, either in a match or
// in an unmatched list. Match is a pure function and never panics on
// malformed input records.
func Match(receipts, car []domain.LineItem) domain.MatchSet {
	set := domain.MatchSet{
		Matches:           []domain.LineMatch{},
		UnmatchedReceipts: []domain.LineItem{},
		UnmatchedCAR:      []domain.LineItem{},
	}

	receiptBuckets := bucketByAmount(receipts)
	carBuckets := bucketByAmount(car)

	// used[amount][i] marks carBuckets[amount][i] as consumed. Only
	// amounts present on both sides can produce matches.
	used := make(map[int64][]bool)
	for amount, candidates := range carBuckets {
		if _, ok := receiptBuckets[amount]; ok {
			used[amount] = make([]bool, len(candidates))
		}
	}

	// Receipt lines in input order: greedy pick of the highest-scoring
	// remaining CAR line in the same bucket.
	for _, r := range receipts {
		consumed, shared := used[r.AmountCents]
		if !shared {
			// Amount absent on the CAR side.
			set.UnmatchedReceipts = append(set.UnmatchedReceipts, r)
			continue
		}
		candidates := carBuckets[r.AmountCents]

		best := -1
		bestScore := -1.0
		for i, c := range candidates {
			if consumed[i] {
				continue
			}
			// Strict greater-than keeps the first-encountered line
			// on ties.
			if s := Score(r, c); s > bestScore {
				best = i
				bestScore = s
			}
		}

		if best < 0 {
			// Bucket exhausted: more receipt lines than CAR lines.
			set.UnmatchedReceipts = append(set.UnmatchedReceipts, r)
			continue
		}

		consumed[best] = true
		set.Matches = append(set.Matches, domain.LineMatch{
			Receipt:    r,
			CAR:        candidates[best],
			Score:      bestScore,
			Confidence: Tier(bestScore),
		})
	}

	// CAR lines never consumed, in input order. The k-th occurrence of
	// an amount in the input is the k-th element of that amount's bucket.
	cursor := make(map[int64]int, len(used))
	for _, c := range car {
		consumed, shared := used[c.AmountCents]
		if !shared {
			set.UnmatchedCAR = append(set.UnmatchedCAR, c)
			continue
		}
		pos := cursor[c.AmountCents]
		cursor[c.AmountCents]++
		if !consumed[pos] {
			set.UnmatchedCAR = append(set.UnmatchedCAR, c)
		}
	}

	return set
}

func bucketByAmount(lines []domain.LineItem) map[int64][]domain.LineItem {
	buckets := make(map[int64][]domain.LineItem)
	for _, l := range lines {
		buckets[l.AmountCents] = append(buckets[l.AmountCents], l)
	}
	return buckets
}
