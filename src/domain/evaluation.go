package domain

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// Forwarded parameter fields required per source generator type. The pr
// generator forwards the head SHA and repo URL of the pull request while the
// scm generator forwards plain organization/repository fields.
const (
	FieldOrganization = "organization"
	FieldRepository   = "repository"
	FieldBranch       = "branch"
	FieldSha          = "sha"
	FieldRepoURL      = "repoURL"
	FieldHeadSha      = "head_sha"
)

// EvaluationRequest is one "is this commit deployable" question: a candidate
// commit plus the check name patterns that must have succeeded for it.
type EvaluationRequest struct {
	ApplicationSetName string
	SourceType         SourceType
	CheckPatterns      []string
	Forwarded          map[string]string
}

// ShaKey is the forwarded field holding the candidate commit SHA.
func (self EvaluationRequest) ShaKey() string {
	if self.SourceType == SourceTypePr {
		return FieldHeadSha
	}
	return FieldSha
}

func (self EvaluationRequest) Sha() string {
	return self.Forwarded[self.ShaKey()]
}

// Fingerprint identifies a (SHA, pattern set) combination that already passed
// validation. A stored record carrying the same fingerprint lets the engine
// skip the provider lookup entirely, so the encoding must keep distinct
// pattern sets distinct.
func (self EvaluationRequest) Fingerprint() string {
	// A []string always marshals.
	patterns, _ := json.Marshal(self.CheckPatterns)
	return self.Sha() + "\x00" + string(patterns)
}

// Validate rejects malformed requests before any network or store access.
func (self EvaluationRequest) Validate() error {
	if _, err := self.Requirement(); err != nil {
		return err
	}

	var required []string
	switch self.SourceType {
	case SourceTypePr:
		required = []string{FieldRepoURL, FieldBranch, FieldHeadSha}
	default:
		required = []string{FieldOrganization, FieldRepository, FieldBranch, FieldSha}
	}
	for _, field := range required {
		if self.Forwarded[field] == "" {
			return NewValidationError("Missing forwarded parameter %q", field)
		}
	}

	if _, err := self.Key(); err != nil {
		return err
	}

	return nil
}

// Key derives the branch identity the known-good record is kept under.
func (self EvaluationRequest) Key() (BranchKey, error) {
	key := BranchKey{
		ApplicationSetName: self.ApplicationSetName,
		Branch:             self.Forwarded[FieldBranch],
	}

	switch self.SourceType {
	case SourceTypePr:
		org, repo, err := splitRepoURL(self.Forwarded[FieldRepoURL])
		if err != nil {
			return key, err
		}
		key.Organization = org
		key.Repository = repo
	default:
		key.Organization = self.Forwarded[FieldOrganization]
		key.Repository = self.Forwarded[FieldRepository]
	}

	return key, nil
}

// Requirement compiles the check patterns. Patterns are matched against the
// beginning of a check name, case-sensitive.
func (self EvaluationRequest) Requirement() (CheckRequirement, error) {
	if len(self.CheckPatterns) == 0 {
		return nil, NewValidationError("No check patterns given")
	}

	requirement := make(CheckRequirement, 0, len(self.CheckPatterns))
	for _, pattern := range self.CheckPatterns {
		compiled, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return nil, NewValidationError("Invalid check pattern %q: %s", pattern, err)
		}
		requirement = append(requirement, compiledPattern{pattern, compiled})
	}
	return requirement, nil
}

// splitRepoURL extracts organization and repository from the repo URLs the pr
// generator forwards, accepting both
// "https://github.com/org/repo.git" and "git@github.com:org/repo.git".
func splitRepoURL(repoURL string) (string, string, error) {
	path := ""
	if strings.Contains(repoURL, "://") {
		parsed, err := url.Parse(repoURL)
		if err != nil {
			return "", "", NewValidationError("Invalid repo URL %q: %s", repoURL, err)
		}
		path = parsed.Path
	} else if i := strings.Index(repoURL, ":"); i >= 0 {
		path = repoURL[i+1:]
	} else {
		return "", "", NewValidationError("Invalid repo URL %q", repoURL)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", NewValidationError("Repo URL %q has no organization/repository path", repoURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// CheckRequirement is an ordered set of compiled check name patterns. It is
// satisfied iff every pattern matches at least one reported check and every
// matched check succeeded. A pattern that matches no reported check fails the
// requirement: a required check that has not reported must never count as
// passing.
type CheckRequirement []compiledPattern

type compiledPattern struct {
	Source   string
	Compiled *regexp.Regexp
}

// RequirementViolation is the first reason a requirement is not satisfied.
// Check is nil when the pattern matched no reported check at all.
type RequirementViolation struct {
	Pattern string
	Check   *CheckRun
}

// Unsatisfied returns nil iff the requirement is satisfied by the reported
// checks.
func (self CheckRequirement) Unsatisfied(checks []CheckRun) *RequirementViolation {
	for _, pattern := range self {
		matched := false
		for i, check := range checks {
			if !pattern.Compiled.MatchString(check.Name) {
				continue
			}
			matched = true
			if !check.Succeeded() {
				return &RequirementViolation{Pattern: pattern.Source, Check: &checks[i]}
			}
		}
		if !matched {
			return &RequirementViolation{Pattern: pattern.Source}
		}
	}
	return nil
}

// EvaluationResult carries zero or one parameter mappings. Zero parameters
// means "generate nothing downstream".
type EvaluationResult struct {
	Parameters []map[string]string
}

func EmitResult(parameters map[string]string) EvaluationResult {
	return EvaluationResult{Parameters: []map[string]string{parameters}}
}

func EmptyResult() EvaluationResult {
	return EvaluationResult{Parameters: []map[string]string{}}
}

// Emitted returns the single emitted parameter mapping, or nil.
func (self EvaluationResult) Emitted() map[string]string {
	if len(self.Parameters) == 0 {
		return nil
	}
	return self.Parameters[0]
}
