package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

var BuildInfo struct {
	Version string
	Commit  string
}

type SourceType uint

const (
	SourceTypeScm SourceType = iota
	SourceTypePr
)

func (self *SourceType) String() (string, error) {
	switch *self {
	case SourceTypeScm:
		return "scm", nil
	case SourceTypePr:
		return "pr", nil
	default:
		return "", fmt.Errorf("Unknown value %d", *self)
	}
}

func (self *SourceType) FromString(str string) error {
	switch str {
	case "scm":
		*self = SourceTypeScm
	case "pr":
		*self = SourceTypePr
	default:
		return fmt.Errorf("Unknown value %q", str)
	}
	return nil
}

func (self *SourceType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	return self.FromString(str)
}

func (self SourceType) MarshalJSON() ([]byte, error) {
	if str, err := self.String(); err != nil {
		return nil, err
	} else {
		return json.Marshal(str)
	}
}

// BranchKey identifies the single known-good record kept for a branch.
// ApplicationSetName disambiguates identical repo/branch pairs used by
// different ApplicationSets and may be empty.
type BranchKey struct {
	ApplicationSetName string `json:"application_set_name"`
	Organization       string `json:"organization"`
	Repository         string `json:"repository"`
	Branch             string `json:"branch"`
}

func (self BranchKey) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", self.ApplicationSetName, self.Organization, self.Repository, self.Branch)
}

// KnownGoodRecord is the last parameter set that passed validation for a
// branch. Parameters holds everything needed to re-emit the generator output
// if the record is later used as a fallback.
type KnownGoodRecord struct {
	Sha         string            `json:"sha"`
	Fingerprint string            `json:"fingerprint"`
	RecordedAt  time.Time         `json:"recorded_at"`
	Parameters  map[string]string `json:"parameters"`
}

// CheckRun is one check reported against a commit by the CI-status provider.
type CheckRun struct {
	Name       string
	Status     string
	Conclusion string
}

// Succeeded reports whether the check has concluded successfully. A check
// that is still queued or in progress has not succeeded.
func (self CheckRun) Succeeded() bool {
	return self.Status == "completed" && self.Conclusion == "success"
}
