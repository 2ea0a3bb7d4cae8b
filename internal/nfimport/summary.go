package nfimport

// Summarize counts lines per status.
func Summarize(lines []*Line) BatchSummary {
	summary := BatchSummary{Total: len(lines)}
	for _, line := range lines {
		switch line.Status {
		case StatusReady:
			summary.Ready++
		case StatusInvalid:
			summary.Invalid++
		case StatusPendingMapping:
			summary.PendingMapping++
		case StatusPendingConversion:
			summary.PendingConversion++
		case StatusApplied:
			summary.Applied++
		case StatusSkippedDuplicate:
			summary.SkippedDuplicate++
		case StatusError:
			summary.Error++
		}
	}
	return summary
}

// DerivePreApplyStatus derives the batch status before any apply has run:
// draft while empty or while any line still needs attention, validated once
// everything is ready or skipped.
func DerivePreApplyStatus(summary BatchSummary) BatchStatus {
	if summary.Total == 0 {
		return BatchDraft
	}
	if summary.Invalid > 0 || summary.PendingMapping > 0 || summary.PendingConversion > 0 {
		return BatchDraft
	}
	return BatchValidated
}

// DeriveBatchStatus derives the batch status from the summary and the
// applied/rolled-back timestamps. Archived batches are handled by the caller;
// archival is a terminal override independent of line states.
func DeriveBatchStatus(batch *Batch, summary BatchSummary) BatchStatus {
	status := DerivePreApplyStatus(summary)
	if batch.AppliedAt != nil && batch.RolledBackAt == nil {
		if summary.Ready > 0 || summary.PendingMapping > 0 || summary.PendingConversion > 0 || summary.Error > 0 {
			status = BatchPartial
		} else {
			status = BatchApplied
		}
	}
	if batch.RolledBackAt != nil {
		// A rollback that hit conflicts or errors leaves the batch partial;
		// recompute must not upgrade it to rolled_back.
		if batch.Status == BatchPartial {
			return BatchPartial
		}
		status = BatchRolledBack
	}
	return status
}
