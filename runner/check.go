package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/relkit/relkit/commit"
	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/model"
)

type CheckFailure struct {
	Failures []FailureEntry
}

type FailureEntry struct {
	rawLine     string
	commitID    string
	commitTitle string
	err         error
}

type failuresByCommit struct {
	commits []CheckFailure
}

func (cf CheckFailure) Error() string {
	return fmt.Sprintf("%d check(s) failed", len(cf.Failures))
}

func (cf CheckFailure) Is(other error) bool {
	_, ok := other.(CheckFailure)
	return ok
}

func (cf CheckFailure) WriteFailure(w io.Writer) error {
	if len(cf.Failures) == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)

	byCommit := failuresByCommit{}
	for _, failure := range cf.Failures {
		foundPrev := false
		for i := range byCommit.commits {
			c := &byCommit.commits[i]
			match := false
			for _, prevFailure := range c.Failures {
				if failure.commitID != "" && prevFailure.commitID != "" && failure.commitID == prevFailure.commitID {
					match = true
					break
				}
				if failure.commitTitle != "" && prevFailure.commitTitle != "" && failure.commitTitle == prevFailure.commitTitle {
					match = true
					break
				}
			}
			if match {
				foundPrev = true
				c.Failures = append(c.Failures, failure)
				break
			}
		}

		if !foundPrev {
			byCommit.commits = append(byCommit.commits, CheckFailure{Failures: []FailureEntry{failure}})
		}
	}

	for _, c := range byCommit.commits {
		if len(c.Failures) == 0 {
			continue
		}
		title := c.Failures[0].commitTitle
		if title == "" {
			if raw := c.Failures[0].rawLine; raw != "" {
				title = strings.SplitN(raw, "\n", 2)[0]
			} else {
				title = "(empty commit)"
			}
		}
		bw.WriteString(title)
		bw.WriteString("\n")
		for _, failure := range c.Failures {
			bw.WriteString("  ")
			bw.WriteString(failure.err.Error())
			bw.WriteString("\n")
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return nil
}

// CheckCommits validates raw commit message bodies against policies and
// configured checks.
func (r *Runner) CheckCommits(ctx context.Context, commits []string) (commit.AnalyzedCommits, error) {
	var failures []FailureEntry
	policies := r.cfg.GetPolicies()
	var acs commit.AnalyzedCommits
	for _, c := range commits {
		mc, err := r.parseCommit(c)
		if err != nil {
			failures = append(failures, FailureEntry{rawLine: c, err: err})
			continue
		}
		if isMergeCommit(mc) {
			r.cfg.Debugf("skipping merge commit %q", mc.Subject)
			continue
		}

		ac, err := r.analyzer.Match(mc, policies)
		if err != nil {
			failures = append(failures, FailureEntry{commitID: mc.ID, commitTitle: mc.Subject, err: err})
			continue
		}
		acs = append(acs, ac)

		failures = append(failures, r.checkCommit(ac, policies)...)
	}
	if len(failures) > 0 {
		return nil, CheckFailure{Failures: failures}
	}
	return acs, nil
}

func (r *Runner) checkCommit(ac *commit.AnalyzedCommit, policies []*config.Policy) []FailureEntry {
	var failures []FailureEntry
	fail := func(err error) {
		failures = append(failures, FailureEntry{commitID: ac.ID, commitTitle: ac.Subject, err: err})
	}

	if ac.Scope != "" && len(r.cfg.AllowedScopes) > 0 && !inStrs(ac.Scope, r.cfg.AllowedScopes) {
		fail(fmt.Errorf("scope %q is disallowed", ac.Scope))
	}
	if ac.CommitType != "" && len(r.cfg.AllowedTypes) > 0 && !inStrs(ac.CommitType, r.cfg.AllowedTypes) {
		fail(fmt.Errorf("commit type %q is disallowed", ac.CommitType))
	}

	if max := r.cfg.SubjectMaxLength(); max > 0 {
		if n := utf8.RuneCountInString(ac.Subject); n > max {
			fail(fmt.Errorf("subject is %d characters, max %d", n, max))
		}
	}
	if !r.cfg.Checks.AllowTrailingPeriod && strings.HasSuffix(ac.Subject, ".") {
		fail(errors.New("subject ends with a period"))
	}
	if r.cfg.Checks.RequireType && ac.CommitType == "" {
		fail(errors.New("commit type is required"))
	}
	if width := r.cfg.BodyMaxLineWidth(); width > 0 {
		for i, line := range strings.Split(ac.Body, "\n") {
			if n := utf8.RuneCountInString(line); n > width {
				fail(fmt.Errorf("body line %d is %d characters, max %d", i+1, n, width))
			}
		}
	}

	return failures
}

// parseCommit reads a raw commit message
func (r *Runner) parseCommit(s string) (*model.Commit, error) {
	subject, body, err := commit.SplitRaw(s)
	if err != nil {
		return nil, err
	}
	return &model.Commit{Subject: subject, Body: body}, nil
}

func isMergeCommit(mc *model.Commit) bool {
	return strings.HasPrefix(mc.Subject, "Merge ")
}

// CheckReadCommit validates a single commit message read from rdr.
func (r *Runner) CheckReadCommit(ctx context.Context, rdr io.Reader) (commit.AnalyzedCommits, error) {
	var failures []FailureEntry
	raw, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	acs, err := r.CheckCommits(ctx, []string{string(raw)})
	if err != nil {
		cf := CheckFailure{}
		if !errors.As(err, &cf) {
			return nil, err
		}
		failures = append(failures, cf.Failures...)
	}

	if len(failures) > 0 {
		return nil, CheckFailure{Failures: failures}
	}
	return acs, nil
}

// CheckCommitMsgFile validates the message in a commit message file, the
// form the commit-msg hook receives.
func (r *Runner) CheckCommitMsgFile(ctx context.Context, p string) (commit.AnalyzedCommits, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.CheckReadCommit(ctx, f)
}

// CheckCommitsFromGit checks all commits since the last release.
func (r *Runner) CheckCommitsFromGit(ctx context.Context, scope string) (commit.AnalyzedCommits, error) {
	if err := r.Check(ctx, ""); err != nil && !isWrongBranchError(err) {
		return nil, err
	}
	latest, err := r.analyzer.LatestRelease(ctx, scope, "")
	if err != nil && !errors.Is(err, commit.ErrNoTags) {
		return nil, err
	}
	commits, err := r.analyzer.ReadCommitsSince(ctx, scope, latest)
	if err != nil {
		return nil, err
	}
	policies := r.cfg.GetPolicies()
	var failures []FailureEntry
	var acs commit.AnalyzedCommits
	for _, mc := range commits {
		if isMergeCommit(mc) {
			r.cfg.Debugf("skipping merge commit %q", mc.Subject)
			continue
		}
		ac, err := r.analyzer.Match(mc, policies)
		if err != nil {
			failures = append(failures, FailureEntry{commitID: mc.ID, commitTitle: mc.Subject, err: err})
			continue
		}
		fs := r.checkCommit(ac, policies)
		failures = append(failures, fs...)
		acs = append(acs, ac)
	}

	if len(failures) > 0 {
		return nil, CheckFailure{Failures: failures}
	}
	return acs, nil
}

func inStrs(s string, cands []string) bool {
	for _, cand := range cands {
		if s == cand {
			return true
		}
	}
	return false
}
