package nfimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func linesWithStatuses(statuses ...LineStatus) []*Line {
	lines := make([]*Line, len(statuses))
	for i, status := range statuses {
		lines[i] = &Line{Status: status}
	}
	return lines
}

func TestSummarize(t *testing.T) {
	lines := linesWithStatuses(
		StatusReady, StatusReady,
		StatusInvalid,
		StatusPendingMapping,
		StatusPendingConversion,
		StatusApplied,
		StatusSkippedDuplicate,
		StatusError,
	)
	summary := Summarize(lines)

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 2, summary.Ready)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.PendingMapping)
	assert.Equal(t, 1, summary.PendingConversion)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.SkippedDuplicate)
	assert.Equal(t, 1, summary.Error)
}

func TestDerivePreApplyStatus(t *testing.T) {
	tests := []struct {
		name     string
		summary  BatchSummary
		expected BatchStatus
	}{
		{"empty batch", BatchSummary{}, BatchDraft},
		{"has invalid", BatchSummary{Total: 2, Ready: 1, Invalid: 1}, BatchDraft},
		{"has pending mapping", BatchSummary{Total: 2, Ready: 1, PendingMapping: 1}, BatchDraft},
		{"has pending conversion", BatchSummary{Total: 2, Ready: 1, PendingConversion: 1}, BatchDraft},
		{"all ready", BatchSummary{Total: 3, Ready: 3}, BatchValidated},
		{"ready plus skipped", BatchSummary{Total: 3, Ready: 2, SkippedDuplicate: 1}, BatchValidated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DerivePreApplyStatus(tt.summary))
		})
	}
}

func TestDeriveBatchStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		batch    *Batch
		summary  BatchSummary
		expected BatchStatus
	}{
		{
			name:     "applied clean",
			batch:    &Batch{AppliedAt: &now},
			summary:  BatchSummary{Total: 2, Applied: 2},
			expected: BatchApplied,
		},
		{
			name:     "applied with leftover ready",
			batch:    &Batch{AppliedAt: &now},
			summary:  BatchSummary{Total: 2, Applied: 1, Ready: 1},
			expected: BatchPartial,
		},
		{
			name:     "applied with errors",
			batch:    &Batch{AppliedAt: &now},
			summary:  BatchSummary{Total: 2, Applied: 1, Error: 1},
			expected: BatchPartial,
		},
		{
			name:     "rolled back clean",
			batch:    &Batch{Status: BatchRolledBack, AppliedAt: &now, RolledBackAt: &now},
			summary:  BatchSummary{Total: 2, Ready: 2},
			expected: BatchRolledBack,
		},
		{
			name:     "rollback with conflicts stays partial",
			batch:    &Batch{Status: BatchPartial, AppliedAt: &now, RolledBackAt: &now},
			summary:  BatchSummary{Total: 2, Ready: 1, Applied: 1},
			expected: BatchPartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveBatchStatus(tt.batch, tt.summary))
		})
	}
}
