package service

import (
	"context"

	"github.com/google/go-github/v61/github"
	"github.com/rs/zerolog"

	"github.com/argoproj-labs/appset-gate/src/domain"
)

// CheckService is the CI-status provider collaborator: the complete current
// check list for a commit. Failures are domain.ProviderError and must never
// be read as "checks failed".
type CheckService interface {
	ListCheckRuns(ctx context.Context, organization, repository, sha string) ([]domain.CheckRun, error)
}

type githubCheckService struct {
	logger zerolog.Logger
	client *github.Client
}

func NewGithubCheckService(client *github.Client, logger *zerolog.Logger) CheckService {
	return &githubCheckService{
		logger: logger.With().Str("component", "GithubCheckService").Logger(),
		client: client,
	}
}

func (self *githubCheckService) ListCheckRuns(ctx context.Context, organization, repository, sha string) ([]domain.CheckRun, error) {
	self.logger.Debug().
		Str("organization", organization).
		Str("repository", repository).
		Str("sha", sha).
		Msg("Listing check runs")

	var checks []domain.CheckRun
	opts := &github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		result, response, err := self.client.Checks.ListCheckRunsForRef(ctx, organization, repository, sha, opts)
		if err != nil {
			return nil, domain.ProviderError{
				Err:     err,
				Timeout: ctx.Err() == context.DeadlineExceeded,
			}
		}

		for _, run := range result.CheckRuns {
			checks = append(checks, domain.CheckRun{
				Name:       run.GetName(),
				Status:     run.GetStatus(),
				Conclusion: run.GetConclusion(),
			})
		}

		if response.NextPage == 0 {
			break
		}
		opts.Page = response.NextPage
	}

	self.logger.Debug().Int("checks", len(checks)).Msg("Listed check runs")
	return checks, nil
}
