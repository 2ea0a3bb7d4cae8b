package nfimport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// linesClassified tracks classification outcomes per status.
	linesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfimport_lines_classified_total",
		Help: "Total number of import lines classified by status",
	}, []string{"status"})

	// linesApplied tracks apply outcomes.
	linesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfimport_lines_applied_total",
		Help: "Total number of import lines applied by outcome",
	}, []string{"outcome"}) // outcome: applied, skipped_duplicate, error

	// changesRolledBack tracks rollback outcomes.
	changesRolledBack = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfimport_changes_rolled_back_total",
		Help: "Total number of applied changes rolled back by outcome",
	}, []string{"outcome"}) // outcome: success, conflict, error

	// applyDuration tracks the duration of batch apply operations.
	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nfimport_apply_duration_seconds",
		Help:    "Time taken to apply a batch",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// batchLines tracks the distribution of batch sizes at upload.
	batchLines = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nfimport_batch_lines_count",
		Help:    "Number of lines parsed per uploaded batch",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})
)
