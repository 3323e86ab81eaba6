// Package runner manages command-line execution
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/blang/semver/v4"

	"github.com/relkit/relkit/changelog"
	"github.com/relkit/relkit/commit"
	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/vcs"
)

// Publisher publishes a release for a tag on a hosting service.
type Publisher interface {
	Publish(ctx context.Context, tag, name, notes string, prerelease bool) error
}

type Runner struct {
	cfg        config.Config
	vcs        vcs.Interface
	analyzer   *commit.Analyzer
	tag        *commit.Tag
	changelog  *changelog.Changelog
	publisher  Publisher
	mainBranch string
}

func New(cfg config.Config, vcs vcs.Interface) (*Runner, error) {
	tag, err := commit.NewTag(cfg.TagTemplate)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:       cfg,
		vcs:       vcs,
		tag:       tag,
		analyzer:  commit.NewAnalyzer(cfg, vcs, tag),
		changelog: changelog.New(cfg),
	}, nil
}

// SetPublisher attaches a release publisher for Release to use.
func (r *Runner) SetPublisher(p Publisher) { r.publisher = p }

type wrongBranchError struct {
	branch     string
	mainBranch string
}

func (e wrongBranchError) Error() string {
	return fmt.Sprintf("commit must be on branch %s, not %s", e.mainBranch, e.branch)
}

func isWrongBranchError(err error) bool {
	var wbe wrongBranchError
	return errors.As(err, &wbe)
}

func (r *Runner) Check(ctx context.Context, rc string) error {
	if r.mainBranch == "" {
		branches := r.cfg.Branches
		if r.cfg.InCI && !r.cfg.BranchesSet {
			branches = nil
		}
		mainBranch, err := r.vcs.GetMainBranch(ctx, branches)
		if err != nil {
			r.cfg.Printf("Get remote failed, falling back to defaults: %v", r.cfg.Branches)
			mainBranch, err = r.vcs.GetMainBranch(ctx, r.cfg.Branches)
			if err != nil {
				return err
			}
		}
		r.mainBranch = mainBranch
		r.cfg.Printf("Main branch is %q", mainBranch)
	}

	currBranch, err := r.vcs.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if currBranch != r.mainBranch && !r.cfg.Dryrun {
		return wrongBranchError{branch: currBranch, mainBranch: r.mainBranch}
	}
	return nil
}

func (r *Runner) Analyze(ctx context.Context, rc string) ([]*commit.Version, error) {
	return r.analyzer.Analyze(ctx, rc)
}

func (r *Runner) LatestRelease(ctx context.Context, scope, rc string) (semver.Version, error) {
	return r.analyzer.LatestRelease(ctx, scope, rc)
}

func (r *Runner) CreateTags(ctx context.Context, versions []*commit.Version) error {
	for _, ver := range versions {
		tag, err := RenderTag(r.cfg, r.tag, ver)
		if err != nil {
			return err
		}
		r.cfg.Printf("creating tag %q for commit %s...", tag, ver.ShortCommit())

		commitID := ver.Commit
		if r.cfg.ChangelogFile != "" {
			changelogCommit, err := r.writeChangelog(ctx, ver, tag)
			if err != nil {
				return err
			}
			if changelogCommit != "" {
				commitID = changelogCommit
			}
		}

		b := &bytes.Buffer{}
		if err := r.shortlog(ctx, b, ver, r.cfg.Name); err != nil {
			return err
		}
		shortlog := b.String()
		r.cfg.Debugf("shortlog:\n\n---\n%s", shortlog)

		opts := vcs.TagOpts{
			Message: shortlog,
			Edit:    !r.cfg.NoEdit && !r.cfg.InCI,
		}
		if err := r.vcs.CreateTag(ctx, commitID, tag, opts); err != nil {
			return err
		}
	}
	return nil
}

// writeChangelog prepends the release entry to the changelog file and
// commits it. The returned commit becomes the tag target so the tag
// contains the changelog.
func (r *Runner) writeChangelog(ctx context.Context, ver *commit.Version, tag string) (string, error) {
	entry, err := r.changelog.RenderString(ver, tag)
	if err != nil {
		return "", err
	}
	if r.cfg.Dryrun {
		r.cfg.Printf("+ update %s (dryrun)", r.cfg.ChangelogFile)
		return "", nil
	}
	if err := r.changelog.Prepend(r.cfg.ChangelogFile, entry); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("chore: release %s", tag)
	if ver.Scope != "" {
		msg = fmt.Sprintf("chore(%s): release %s", ver.Scope, tag)
	}
	opts := vcs.CommitOpts{Message: msg, Paths: []string{r.cfg.ChangelogFile}}
	if err := r.vcs.Commit(ctx, opts); err != nil {
		return "", err
	}
	return r.vcs.CurrentCommit(ctx)
}

// ChangelogEntry renders the changelog entry for one pending version
// without writing anything.
func (r *Runner) ChangelogEntry(ver *commit.Version) (string, error) {
	tag, err := RenderTag(r.cfg, r.tag, ver)
	if err != nil {
		return "", err
	}
	return r.changelog.RenderString(ver, tag)
}

func (r *Runner) PushTags(ctx context.Context) error {
	if err := r.vcs.Push(ctx, "origin", r.mainBranch, vcs.PushOpts{FollowTags: true}); err != nil {
		return err
	}
	return nil
}

// Release publishes hosted releases for the tagged versions, with the
// changelog entry as the release notes.
func (r *Runner) Release(ctx context.Context, versions []*commit.Version) error {
	if r.publisher == nil {
		return errors.New("runner: no release publisher configured")
	}
	for _, ver := range versions {
		tag, err := RenderTag(r.cfg, r.tag, ver)
		if err != nil {
			return err
		}
		notes, err := r.changelog.RenderString(ver, tag)
		if err != nil {
			return err
		}
		if err := r.publisher.Publish(ctx, tag, tag, notes, ver.RC != ""); err != nil {
			return err
		}
	}
	return nil
}

func RenderTag(cfg config.Config, t *commit.Tag, ver *commit.Version) (string, error) {
	return t.ExecuteString(commit.TagData{Version: ver})
}
