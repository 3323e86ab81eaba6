package commit

import (
	"time"

	"github.com/blang/semver/v4"
)

// Version is the result of analyzing one release scope: the next
// version, the commit it points at, and the commits that go into it.
type Version struct {
	semver.Version
	Scope      string          `json:"scope,omitempty"`
	AllCommits AnalyzedCommits `json:"all_commits"`
	Commit     string          `json:"commit"`
	RC         string
	Date       time.Time `json:"date"`
	forGlob    bool
	forPrefix  bool
}

func (v *Version) String() string { return v.V() }

// V renders the main (major.minor.patch) part of the version. The
// prerelease part is rendered separately so tag templates can turn it
// into a glob.
func (v *Version) V() string {
	if v.forGlob {
		if v.Version.GT(semver.Version{}) && len(v.Version.Pre) == 2 {
			globVer := v.Version
			globVer.Pre = nil
			return globVer.String()
		}
		return "*"
	}
	if v.forPrefix {
		return ""
	}
	ver := v.Version
	ver.Pre = nil
	return ver.String()
}

func (v *Version) Pre() []string {
	res := make([]string, len(v.Version.Pre))
	for i, part := range v.Version.Pre {
		res[i] = part.String()
	}
	return res
}

func (v *Version) ShortCommit() string {
	if len(v.Commit) >= 8 {
		return v.Commit[:8]
	}
	return v.Commit
}
