package changeset

import "github.com/shopspring/decimal"

// Config tunes change detection between a base session's snapshots and the
// current parse.
type Config struct {
	// AmountThreshold is the absolute currency tolerance under which two
	// amounts count as equal. Guards against rounding drift between
	// document exports.
	AmountThreshold decimal.Decimal

	// ForceReprocessValidationIssues reprocesses employees whose base
	// record was flagged NEEDS_ATTENTION even when no tracked field
	// changed.
	ForceReprocessValidationIssues bool

	// SkipUnchanged is the master switch for the copy-forward
	// optimization.
	SkipUnchanged bool

	// MinSkipRatio is the floor on unchanged/total below which the
	// optimization is abandoned: reprocessing everything is cheaper than
	// the bookkeeping needed to copy forward a handful of records.
	MinSkipRatio float64
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		AmountThreshold:                decimal.NewFromFloat(0.01),
		ForceReprocessValidationIssues: true,
		SkipUnchanged:                  true,
		MinSkipRatio:                   0.1,
	}
}
