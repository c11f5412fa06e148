package reprocess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finchley/expense-recon/internal/domain"
)

// pausePollInterval is how often a paused run re-checks the control.
const pausePollInterval = 200 * time.Millisecond

// Run executes the batch. Between employees it checks the control handle:
// a pause request blocks here (committed work stays committed) until
// resumed or cancelled; a cancel request ends the run with ErrCancelled.
// Control is never consulted in the middle of scoring a single employee.
//
// One employee's failure never aborts the batch: the error is logged, the
// failed counter incremented, and the loop moves on.
func (s *Service) Run(ctx context.Context, batch Batch, control *Control) (Result, error) {
	var res Result

	if err := s.sessions.UpdateProgress(ctx, batch.SessionID, domain.SessionStatusProcessing, 0, 0, 0); err != nil {
		return res, fmt.Errorf("reprocess: mark session processing: %w", err)
	}

	// The trail is best effort: losing it does not invalidate the run.
	changes := make([]domain.EmployeeChange, 0, len(batch.Employees))
	for _, work := range batch.Employees {
		changes = append(changes, work.Change)
	}
	if err := s.changeLog.RecordBatch(ctx, batch.SessionID, changes); err != nil {
		s.log.Error("change trail write failed",
			slog.String("session_id", batch.SessionID.String()),
			slog.Any("error", err),
		)
	}

	for _, work := range batch.Employees {
		if err := s.checkpoint(ctx, control); err != nil {
			res.Cancelled = true
			s.finish(ctx, batch, domain.SessionStatusCancelled, &res)
			return res, err
		}

		if work.Change.ChangeType == domain.ChangeTypeRemoved {
			// Recorded for audit during change analysis; nothing to run.
			continue
		}

		if batch.SkipUnchanged &&
			work.Change.ChangeType == domain.ChangeTypeUnchanged &&
			batch.BaseSessionID != nil {
			if err := s.copyForward(ctx, batch, work); err != nil {
				res.Failed++
				s.log.Error("copy-forward failed",
					slog.String("employee_key", work.Change.EmployeeKey),
					slog.Any("error", err),
				)
				continue
			}
			res.Skipped++
			continue
		}

		if err := s.processOne(ctx, batch, work); err != nil {
			res.Failed++
			s.log.Error("employee reprocessing failed",
				slog.String("employee_key", work.Change.EmployeeKey),
				slog.Any("error", err),
			)
			continue
		}
		res.Processed++
	}

	s.finish(ctx, batch, domain.SessionStatusCompleted, &res)
	return res, nil
}

// checkpoint blocks while paused and returns ErrCancelled once the control
// or the context is cancelled.
func (s *Service) checkpoint(ctx context.Context, control *Control) error {
	for {
		if control.ShouldCancel() {
			return domain.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !control.ShouldPause() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}
}

func (s *Service) copyForward(ctx context.Context, batch Batch, work EmployeeWork) error {
	return s.snapshots.CopyForward(ctx, *batch.BaseSessionID, batch.SessionID, work.Change.EmployeeKey)
}

// processOne runs the full path for one employee: reconcile the lines,
// then persist the snapshot and its match set in one transaction so a
// failure leaves neither behind. Panics from a malformed record are
// converted to errors so the batch survives.
func (s *Service) processOne(ctx context.Context, batch Batch, work EmployeeWork) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process employee %q: %v", work.Change.EmployeeKey, r)
		}
	}()

	snap := work.Snapshot
	snap.SessionID = batch.SessionID
	set := s.reconcile(work.ReceiptLines, work.CARLines)

	return s.txm.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.snapshots.Insert(ctx, &snap); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if err := s.matchSets.Save(ctx, batch.SessionID, work.Change.EmployeeKey, set); err != nil {
			return fmt.Errorf("save match set: %w", err)
		}
		return nil
	})
}

// finish records final counters. A failure here is logged, not returned:
// the batch outcome itself is already decided.
func (s *Service) finish(ctx context.Context, batch Batch, status domain.SessionStatus, res *Result) {
	if err := s.sessions.UpdateProgress(ctx, batch.SessionID, status, res.Processed, res.Skipped, res.Failed); err != nil {
		s.log.Error("final progress update failed",
			slog.String("session_id", batch.SessionID.String()),
			slog.Any("error", err),
		)
	}
}
