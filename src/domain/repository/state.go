package repository

import (
	"context"

	"github.com/argoproj-labs/appset-gate/src/domain"
)

// StateRepository is the durable mapping from a branch to its last known good
// record.
//
// GetByKey returns nil for an absent key, never an error. Save overwrites any
// existing record for the key and must be durable before it returns.
// Read-modify-write sequences for one key are serialized by the
// implementation; distinct keys proceed concurrently.
type StateRepository interface {
	GetByKey(context.Context, domain.BranchKey) (*domain.KnownGoodRecord, error)
	Save(context.Context, domain.BranchKey, domain.KnownGoodRecord) error
}
