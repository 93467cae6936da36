package persistence

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/pkg/errors"

	"github.com/argoproj-labs/appset-gate/src/config"
	"github.com/argoproj-labs/appset-gate/src/domain"
	"github.com/argoproj-labs/appset-gate/src/domain/repository"
)

type postgresStateRepository struct {
	DB config.PgxIface
}

const knownGoodSchema = `
CREATE TABLE IF NOT EXISTS known_good (
	application_set_name text NOT NULL,
	organization text NOT NULL,
	repository text NOT NULL,
	branch text NOT NULL,
	sha text NOT NULL,
	fingerprint text NOT NULL,
	recorded_at timestamptz NOT NULL,
	parameters jsonb NOT NULL,
	PRIMARY KEY (application_set_name, organization, repository, branch)
)`

// NewPostgresStateRepository keeps known-good records in the known_good
// table. Row-level locking on the primary key serializes writers per branch
// while leaving other branches untouched.
func NewPostgresStateRepository(ctx context.Context, db config.PgxIface) (repository.StateRepository, error) {
	if _, err := db.Exec(ctx, knownGoodSchema); err != nil {
		return nil, errors.WithMessage(err, "While creating known_good table")
	}
	return &postgresStateRepository{DB: db}, nil
}

type knownGoodRow struct {
	Sha         string            `db:"sha"`
	Fingerprint string            `db:"fingerprint"`
	RecordedAt  time.Time         `db:"recorded_at"`
	Parameters  map[string]string `db:"parameters"`
}

func (self *postgresStateRepository) GetByKey(ctx context.Context, key domain.BranchKey) (*domain.KnownGoodRecord, error) {
	row := knownGoodRow{}
	err := pgxscan.Get(
		ctx, self.DB, &row,
		`SELECT sha, fingerprint, recorded_at, parameters FROM known_good
		 WHERE application_set_name = $1 AND organization = $2 AND repository = $3 AND branch = $4`,
		key.ApplicationSetName, key.Organization, key.Repository, key.Branch,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.KnownGoodRecord{
		Sha:         row.Sha,
		Fingerprint: row.Fingerprint,
		RecordedAt:  row.RecordedAt,
		Parameters:  row.Parameters,
	}, nil
}

func (self *postgresStateRepository) Save(ctx context.Context, key domain.BranchKey, record domain.KnownGoodRecord) error {
	_, err := self.DB.Exec(
		ctx,
		`INSERT INTO known_good (application_set_name, organization, repository, branch, sha, fingerprint, recorded_at, parameters)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (application_set_name, organization, repository, branch)
		 DO UPDATE SET sha = EXCLUDED.sha, fingerprint = EXCLUDED.fingerprint, recorded_at = EXCLUDED.recorded_at, parameters = EXCLUDED.parameters`,
		key.ApplicationSetName, key.Organization, key.Repository, key.Branch,
		record.Sha, record.Fingerprint, record.RecordedAt, record.Parameters,
	)
	return err
}
