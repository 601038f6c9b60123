package authoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storiesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkpath_stories_created_total",
		Help: "Total number of stories created and linked to their author.",
	})

	storiesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkpath_stories_deleted_total",
		Help: "Total number of stories deleted and unlinked from their author.",
	})

	sagaRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpath_saga_rollbacks_total",
			Help: "Total number of linked-write workflows that failed and ran their compensations.",
		},
		[]string{"workflow"},
	)

	orphanedStoriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkpath_orphaned_stories_total",
		Help: "Total number of stories left without an owner reference after a failed cleanup.",
	})

	compensationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpath_saga_compensation_failures_total",
			Help: "Total number of compensating actions that failed, by workflow and step.",
		},
		[]string{"workflow", "step"},
	)
)
