package commit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/model"
	"github.com/relkit/relkit/vcs"
)

// ErrNoCommits is returned when there are no new commits since the
// latest release.
var ErrNoCommits = errors.New("commit: no commits to release")

// Analyzer reads commits from the repository and determines the next
// version for each release scope.
type Analyzer struct {
	cfg config.Config
	vcs vcs.Interface
	tag *Tag
}

func NewAnalyzer(cfg config.Config, vcsi vcs.Interface, tag *Tag) *Analyzer {
	if tag == nil {
		tag = mustTag("")
	}
	return &Analyzer{
		cfg: cfg,
		vcs: vcsi,
		tag: tag,
	}
}

func mustTag(s string) *Tag {
	t, err := NewTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Analyze determines the next version for each release scope in play:
// just the root scope by default, a single scope when one is
// configured, or the root scope plus all release scopes.
func (a *Analyzer) Analyze(ctx context.Context, rc string) ([]*Version, error) {
	scopes := []string{""}
	if a.cfg.All {
		scopes = append(scopes, a.cfg.ReleaseScopes...)
	} else if a.cfg.Scope != "" {
		scopes = []string{a.cfg.Scope}
	}

	var versions []*Version
	for _, scope := range scopes {
		ver, err := a.AnalyzeScope(ctx, scope, rc)
		if err != nil {
			if a.cfg.All && (errors.Is(err, ErrNoTags) || errors.Is(err, ErrNoCommits)) {
				a.cfg.Debugf("analyze: skipping scope %q: %v", scope, err)
				continue
			}
			return nil, err
		}
		if ver == nil {
			a.cfg.Debugf("analyze: no release needed for scope %q", scope)
			continue
		}
		versions = append(versions, ver)
	}
	return versions, nil
}

// AnalyzeScope determines the next version for a single scope, or nil
// when the commits since the latest release don't call for one.
func (a *Analyzer) AnalyzeScope(ctx context.Context, scope, rc string) (*Version, error) {
	latest, err := a.LatestRelease(ctx, scope, "")
	if err != nil {
		if errors.Is(err, ErrNoTags) && a.forcedReleaseType().Valid() {
			a.cfg.Printf("No release tags found, starting from v0.0.0")
			latest = semver.Version{}
		} else {
			return nil, err
		}
	}
	a.cfg.Debugf("analyze: scope %q: latest version: %s", scope, latest)

	commits, err := a.ReadCommitsSince(ctx, scope, latest)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, ErrNoCommits
	}

	policies := a.cfg.GetPolicies()
	var acs AnalyzedCommits
	for _, mc := range commits {
		ac, err := a.Match(mc, policies)
		if err != nil {
			return nil, err
		}
		if !a.scopeMatches(scope, ac.Scope) {
			a.cfg.Debugf("analyze: skipping commit %s (scope %q)", ac.ShortID(), ac.Scope)
			continue
		}
		acs = append(acs, ac)
	}

	rt := acs.MaxReleaseType()
	if forced := a.forcedReleaseType(); forced > rt {
		rt = forced
	}
	if rt <= ReleaseSkip {
		return nil, nil
	}

	next := bumpVersion(latest, rt)
	if rc != "" {
		serial, err := a.nextRCSerial(ctx, scope, rc, next)
		if err != nil {
			return nil, err
		}
		next.Pre = []semver.PRVersion{
			{VersionStr: rc},
			{VersionNum: serial, IsNum: true},
		}
	}

	tagCommit := commits[0]
	if len(acs) > 0 {
		tagCommit = acs[0].Commit
	}
	return &Version{
		Version:    next,
		Scope:      scope,
		AllCommits: acs,
		Commit:     tagCommit.ID,
		RC:         rc,
		Date:       tagCommit.CommitterDate,
	}, nil
}

// Match matches a commit against the policies in order. The first
// policy whose subject expression matches, and which can resolve a
// release type for the commit, wins.
func (a *Analyzer) Match(c *model.Commit, policies []*config.Policy) (*AnalyzedCommit, error) {
	if len(policies) == 0 {
		return &AnalyzedCommit{Commit: c, ReleaseType: ReleasePatch, Valid: true}, nil
	}
	for _, pol := range policies {
		ac, ok, err := a.matchPolicy(c, pol)
		if err != nil {
			return nil, err
		}
		if ok {
			return ac, nil
		}
	}
	if a.cfg.IgnorePolicies {
		return &AnalyzedCommit{Commit: c, ReleaseType: ReleasePatch}, nil
	}
	return nil, fmt.Errorf("commit: %s %q matched no policy", c.ShortID(), c.Subject)
}

func (a *Analyzer) matchPolicy(c *model.Commit, pol *config.Policy) (*AnalyzedCommit, bool, error) {
	re := pol.GetSubjectRE()
	if re == nil {
		if pol.FallbackReleaseType == "" {
			return nil, false, nil
		}
		rt, err := ReleaseTypeFromString(pol.FallbackReleaseType)
		if err != nil {
			return nil, false, err
		}
		return &AnalyzedCommit{Commit: c, ReleaseType: rt, Policy: pol, Valid: true}, true, nil
	}

	m := re.FindStringSubmatch(c.Subject)
	if m == nil {
		return nil, false, nil
	}
	groups := reGroups(re, m)
	commitType := strings.ToLower(groups["type"])
	scope := strings.Trim(groups["scope"], "()")

	rtName := pol.FallbackReleaseType
	if commitType != "" {
		if name, ok := pol.CommitTypes[commitType]; ok {
			rtName = name
		}
	}
	if rtName == "" {
		return nil, false, nil
	}
	rt, err := ReleaseTypeFromString(rtName)
	if err != nil {
		return nil, false, err
	}

	ac := &AnalyzedCommit{
		Commit:     c,
		CommitType: commitType,
		Scope:      scope,
		Policy:     pol,
		Valid:      true,
	}

	breaking := groups["bang"] == "!"
	ac.Annotations = matchAnnotations(c, pol)
	if len(ac.Annotations) > 0 {
		breaking = true
	}
	if pol.Conventional {
		ac.Message = ParseCommit(c)
		if ac.Message.Breaking {
			breaking = true
		}
	}
	if breaking {
		rt = ReleaseMajor
	}
	ac.ReleaseType = rt
	return ac, true, nil
}

func matchAnnotations(c *model.Commit, pol *config.Policy) []string {
	re := pol.GetBodyAnnotationRE()
	if re == nil || c.Body == "" {
		return nil
	}
	var res []string
	for _, line := range strings.Split(c.Body, "\n") {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if name := reGroups(re, m)["name"]; inStrs(name, pol.BreakingChangeTypes) {
			res = append(res, name)
		}
	}
	return res
}

// LatestRelease returns the largest released version in a scope. With
// rc set, it returns the largest prerelease with that name instead.
func (a *Analyzer) LatestRelease(ctx context.Context, scope, rc string) (semver.Version, error) {
	glob, err := a.tag.Glob(scope, rc)
	if err != nil {
		return semver.Version{}, err
	}
	tags, err := a.vcs.ReadTags(ctx, glob)
	if err != nil {
		return semver.Version{}, err
	}
	a.cfg.Debugf("analyze: scope %q: %d tag(s) match %q", scope, len(tags), glob)
	return a.tag.SemverLatest(tags, scope, rc)
}

// ReadCommitsSince reads the commits between a released version and
// HEAD. A zero version reads the whole history.
func (a *Analyzer) ReadCommitsSince(ctx context.Context, scope string, latest semver.Version) ([]*model.Commit, error) {
	query := "HEAD"
	if latest.GT(semver.Version{}) {
		tag, err := a.tag.ExecuteString(TagData{Version: &Version{Version: latest, Scope: scope}})
		if err != nil {
			return nil, err
		}
		query = tag + "..HEAD"
	}
	return a.vcs.ReadCommits(ctx, query)
}

func (a *Analyzer) nextRCSerial(ctx context.Context, scope, rc string, next semver.Version) (uint64, error) {
	glob, err := a.tag.GlobVersion(scope, rc, next)
	if err != nil {
		return 0, err
	}
	tags, err := a.vcs.ReadTags(ctx, glob)
	if err != nil {
		return 0, err
	}
	latest, err := a.tag.SemverLatest(tags, scope, rc)
	if err != nil {
		if errors.Is(err, ErrNoTags) {
			return 0, nil
		}
		return 0, err
	}
	if len(latest.Pre) == 2 && latest.Pre[1].IsNum {
		return latest.Pre[1].VersionNum + 1, nil
	}
	return 0, nil
}

func (a *Analyzer) forcedReleaseType() ReleaseType {
	switch {
	case a.cfg.Major:
		return ReleaseMajor
	case a.cfg.Minor:
		return ReleaseMinor
	case a.cfg.Patch:
		return ReleasePatch
	}
	return 0
}

// scopeMatches reports whether a commit with commitScope belongs to a
// release in scope. The root scope owns commits with no scope, plus
// commits whose scope isn't a configured release scope.
func (a *Analyzer) scopeMatches(scope, commitScope string) bool {
	if scope == "" {
		if commitScope == "" {
			return true
		}
		return !inStrs(commitScope, a.cfg.ReleaseScopes)
	}
	return scope == commitScope
}

func bumpVersion(v semver.Version, rt ReleaseType) semver.Version {
	next := semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
	switch rt {
	case ReleaseMajor:
		next.Major++
		next.Minor = 0
		next.Patch = 0
	case ReleaseMinor:
		next.Minor++
		next.Patch = 0
	case ReleasePatch:
		next.Patch++
	}
	return next
}

func reGroups(re *regexp.Regexp, m []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		groups[name] = m[i]
	}
	return groups
}

func inStrs(s string, cands []string) bool {
	for _, cand := range cands {
		if s == cand {
			return true
		}
	}
	return false
}
