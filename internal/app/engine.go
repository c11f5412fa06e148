package app

import (
	"github.com/finchley/expense-recon/internal/config"
	"github.com/finchley/expense-recon/internal/service/changeset"
)

// changesetConfig maps the engine tunables from configuration onto the
// change detector's configuration.
func changesetConfig(ec config.EngineConfig) changeset.Config {
	return changeset.Config{
		AmountThreshold:                ec.AmountThreshold,
		ForceReprocessValidationIssues: ec.ForceRevalidation,
		SkipUnchanged:                  ec.SkipUnchanged,
		MinSkipRatio:                   ec.MinSkipRatio,
	}
}
