package config

import (
	"os"
	"strings"

	"github.com/google/go-github/v61/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// NewGithubClient builds the client used to list check runs. The token is
// read from tokenFile if given, falling back to the GITHUB_TOKEN environment
// variable. baseUrl points the client at a GitHub Enterprise instance; empty
// means github.com.
func NewGithubClient(tokenFile, baseUrl string, logger *zerolog.Logger) (*github.Client, error) {
	token := GetenvStr("GITHUB_TOKEN")
	if tokenFile != "" {
		if v, err := os.ReadFile(tokenFile); err != nil {
			return nil, errors.WithMessage(err, "While reading GitHub token file")
		} else {
			token = strings.TrimSpace(string(v))
		}
	}
	if token == "" {
		return nil, errors.New("No GitHub token: give --github-token-file or set GITHUB_TOKEN")
	}

	retrying := retryablehttp.NewClient()
	retrying.RetryMax = 3
	retrying.Logger = &SupervisorLogger{Logger: logger}

	client := github.NewClient(retrying.StandardClient()).WithAuthToken(token)
	if baseUrl != "" {
		var err error
		if client, err = client.WithEnterpriseURLs(baseUrl, baseUrl); err != nil {
			return nil, errors.WithMessagef(err, "While setting GitHub base URL %q", baseUrl)
		}
	}
	return client, nil
}
