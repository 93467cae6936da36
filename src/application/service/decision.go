package service

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/argoproj-labs/appset-gate/src/domain"
)

// DecisionService decides whether a candidate commit is deployable now and,
// if not, whether the branch's last known good commit can stand in for it.
type DecisionService interface {
	Evaluate(context.Context, domain.EvaluationRequest) (domain.EvaluationResult, error)
}

type decisionService struct {
	logger          zerolog.Logger
	stateService    StateService
	checkService    CheckService
	providerTimeout time.Duration
}

func NewDecisionService(stateService StateService, checkService CheckService, providerTimeout time.Duration, logger *zerolog.Logger) DecisionService {
	return &decisionService{
		logger:          logger.With().Str("component", "DecisionService").Logger(),
		stateService:    stateService,
		checkService:    checkService,
		providerTimeout: providerTimeout,
	}
}

func (self *decisionService) Evaluate(ctx context.Context, request domain.EvaluationRequest) (domain.EvaluationResult, error) {
	if err := request.Validate(); err != nil {
		evaluationsTotal.WithLabelValues(outcomeValidationError).Inc()
		return domain.EvaluationResult{}, err
	}

	// Validate has already proven both of these derivable.
	requirement, _ := request.Requirement()
	key, _ := request.Key()
	sha := request.Sha()

	logger := self.logger.With().
		Str("evaluation", uuid.New().String()).
		Stringer("branch", key).
		Str("sha", sha).
		Logger()

	record, err := self.stateService.GetByKey(ctx, key)
	if err != nil {
		evaluationsTotal.WithLabelValues(outcomeStorageError).Inc()
		return domain.EvaluationResult{}, err
	}

	if record != nil && record.Fingerprint == request.Fingerprint() {
		// The commit stays validated when a non-SHA parameter changes, but
		// the stored bag has to follow or a later fallback would emit the
		// stale one.
		if !maps.Equal(record.Parameters, request.Forwarded) {
			record.Parameters = request.Forwarded
			record.RecordedAt = time.Now().UTC()
			if err := self.stateService.Save(ctx, key, *record); err != nil {
				evaluationsTotal.WithLabelValues(outcomeStorageError).Inc()
				return domain.EvaluationResult{}, err
			}
		}
		logger.Debug().Msg("Commit already validated against these patterns")
		evaluationsTotal.WithLabelValues(outcomeCached).Inc()
		return domain.EmitResult(request.Forwarded), nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, self.providerTimeout)
	defer cancel()

	checks, err := self.checkService.ListCheckRuns(checkCtx, key.Organization, key.Repository, sha)
	if err != nil {
		// A provider outage is not a check failure. No fallback, no write.
		evaluationsTotal.WithLabelValues(outcomeProviderError).Inc()
		return domain.EvaluationResult{}, err
	}

	violation := requirement.Unsatisfied(checks)

	if violation == nil {
		if err := self.stateService.Save(ctx, key, domain.KnownGoodRecord{
			Sha:         sha,
			Fingerprint: request.Fingerprint(),
			RecordedAt:  time.Now().UTC(),
			Parameters:  request.Forwarded,
		}); err != nil {
			// Checks passed but the good state was not durably recorded.
			// The caller has to know so it can retry.
			evaluationsTotal.WithLabelValues(outcomeStorageError).Inc()
			return domain.EvaluationResult{}, err
		}
		logger.Info().Msg("All matched checks passed, recorded known-good commit")
		evaluationsTotal.WithLabelValues(outcomeEmitted).Inc()
		return domain.EmitResult(request.Forwarded), nil
	}

	event := logger.Info().Str("pattern", violation.Pattern)
	if violation.Check == nil {
		event.Msg("No check run matched pattern")
	} else {
		event.
			Str("check", violation.Check.Name).
			Str("status", violation.Check.Status).
			Str("conclusion", violation.Check.Conclusion).
			Msg("Matched check did not succeed")
	}

	if record != nil {
		logger.Info().Str("fallbackSha", record.Sha).Msg("Falling back to last known good commit")
		evaluationsTotal.WithLabelValues(outcomeFallback).Inc()
		return domain.EmitResult(record.Parameters), nil
	}

	logger.Info().Msg("No known good commit to fall back to, emitting nothing")
	evaluationsTotal.WithLabelValues(outcomeEmpty).Inc()
	return domain.EmptyResult(), nil
}
