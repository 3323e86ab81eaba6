// Package commit contains code for reading, parsing, and analyzing
// commits, and for rendering and reading version tags.
package commit

import (
	"fmt"
	"strings"

	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/model"
)

// ReleaseType describes what kind of release a commit (or a set of
// commits) calls for.
type ReleaseType int

const (
	_ ReleaseType = iota
	ReleaseSkip
	ReleasePatch
	ReleaseMinor
	ReleaseMajor
)

func (rt ReleaseType) String() string {
	switch rt {
	case ReleaseSkip:
		return "SKIP"
	case ReleasePatch:
		return "PATCH"
	case ReleaseMinor:
		return "MINOR"
	case ReleaseMajor:
		return "MAJOR"
	}
	return fmt.Sprintf("<unknown release type %d>", int(rt))
}

func (rt ReleaseType) Valid() bool {
	return rt >= ReleaseSkip && rt <= ReleaseMajor
}

// ReleaseTypeFromString reads a release type name as it appears in
// policy configuration.
func ReleaseTypeFromString(s string) (ReleaseType, error) {
	switch strings.ToUpper(s) {
	case "SKIP":
		return ReleaseSkip, nil
	case "PATCH":
		return ReleasePatch, nil
	case "MINOR":
		return ReleaseMinor, nil
	case "MAJOR":
		return ReleaseMajor, nil
	}
	return 0, fmt.Errorf("commit: unknown release type %q", s)
}

// AnalyzedCommit is a commit that has been matched against the
// configured policies.
type AnalyzedCommit struct {
	*model.Commit
	Message     *Message       `json:"message,omitempty"`
	ReleaseType ReleaseType    `json:"release_type"`
	CommitType  string         `json:"commit_type,omitempty"`
	Scope       string         `json:"scope,omitempty"`
	Annotations []string       `json:"annotations,omitempty"`
	Policy      *config.Policy `json:"-"`
	Valid       bool           `json:"valid"`
}

// Breaking reports whether the commit itself declares a breaking
// change, either with a "!" in the subject or with a breaking change
// footer or body annotation.
func (ac *AnalyzedCommit) Breaking() bool {
	if len(ac.Annotations) > 0 {
		return true
	}
	return ac.Message != nil && ac.Message.Breaking
}

// Description returns the commit description with any type and scope
// prefix removed. Falls back to the subject when the commit didn't
// parse.
func (ac *AnalyzedCommit) Description() string {
	if ac.Message != nil && ac.Message.Description != "" {
		return ac.Message.Description
	}
	return ac.Subject
}

type AnalyzedCommits []*AnalyzedCommit

// MaxReleaseType returns the largest release type found in the set of
// commits. It returns an invalid release type when the set is empty.
func (acs AnalyzedCommits) MaxReleaseType() ReleaseType {
	var max ReleaseType
	for _, ac := range acs {
		if ac.ReleaseType > max {
			max = ac.ReleaseType
		}
	}
	return max
}

// BreakingChanges returns the commits that declare a breaking change.
func (acs AnalyzedCommits) BreakingChanges() AnalyzedCommits {
	var res AnalyzedCommits
	for _, ac := range acs {
		if ac.Breaking() {
			res = append(res, ac)
		}
	}
	return res
}
