package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/argoproj-labs/appset-gate/src/domain"
	"github.com/argoproj-labs/appset-gate/src/domain/repository"
)

type StateService interface {
	GetByKey(context.Context, domain.BranchKey) (*domain.KnownGoodRecord, error)
	Save(context.Context, domain.BranchKey, domain.KnownGoodRecord) error
}

type stateService struct {
	logger          zerolog.Logger
	stateRepository repository.StateRepository
}

func NewStateService(stateRepository repository.StateRepository, logger *zerolog.Logger) StateService {
	return &stateService{
		logger:          logger.With().Str("component", "StateService").Logger(),
		stateRepository: stateRepository,
	}
}

func (self *stateService) GetByKey(ctx context.Context, key domain.BranchKey) (*domain.KnownGoodRecord, error) {
	self.logger.Debug().Stringer("key", key).Msg("Getting known-good record")
	record, err := self.stateRepository.GetByKey(ctx, key)
	if err != nil {
		return nil, domain.StorageError{Err: errors.WithMessagef(err, "Could not read known-good record for %q", key)}
	}
	return record, nil
}

func (self *stateService) Save(ctx context.Context, key domain.BranchKey, record domain.KnownGoodRecord) error {
	self.logger.Debug().Stringer("key", key).Str("sha", record.Sha).Msg("Saving known-good record")
	if err := self.stateRepository.Save(ctx, key, record); err != nil {
		return domain.StorageError{Err: errors.WithMessagef(err, "Could not save known-good record for %q", key)}
	}
	self.logger.Debug().Stringer("key", key).Msg("Saved known-good record")
	return nil
}
