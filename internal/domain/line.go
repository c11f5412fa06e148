package domain

// LineItem is one expense line extracted from a document by the parser.
// Immutable; optional fields are nil when the parser could not produce
// them.
type LineItem struct {
	// AmountCents is the line amount in integer cents.
	AmountCents int64   `json:"amount_cents"`
	Vendor      *string `json:"vendor,omitempty"`
	Category    *string `json:"category,omitempty"`
	// Date is the parsed transaction date in YYYY-MM-DD form, nil when
	// unparsable.
	Date       *string `json:"date,omitempty"`
	Descriptor *string `json:"descriptor,omitempty"`
}

// LineMatch pairs one receipt line with one CAR line, with the similarity
// score that justified the pairing.
type LineMatch struct {
	Receipt    LineItem       `json:"receipt"`
	CAR        LineItem       `json:"car"`
	Score      float64        `json:"score"`
	Confidence ConfidenceTier `json:"confidence"`
}

// MatchSet is the reconciliation result for one employee: every input line
// appears exactly once, either in a match or in an unmatched list.
type MatchSet struct {
	Matches           []LineMatch `json:"matches"`
	UnmatchedReceipts []LineItem  `json:"unmatched_receipts"`
	UnmatchedCAR      []LineItem  `json:"unmatched_car"`
}

// Conserves reports whether the set accounts for every input line exactly
// once on each side.
func (m MatchSet) Conserves(receiptCount, carCount int) bool {
	return len(m.Matches)+len(m.UnmatchedReceipts) == receiptCount &&
		len(m.Matches)+len(m.UnmatchedCAR) == carCount
}
