package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeEmitted         = "emitted"
	outcomeCached          = "cached"
	outcomeFallback        = "fallback"
	outcomeEmpty           = "empty"
	outcomeValidationError = "validation_error"
	outcomeProviderError   = "provider_error"
	outcomeStorageError    = "storage_error"
)

var evaluationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "appset_gate",
		Name:      "evaluations_total",
		Help:      "Evaluation requests by outcome.",
	},
	[]string{"outcome"},
)
