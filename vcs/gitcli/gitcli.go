// Package gitcli implements vcs.Interface using the git commandline tool.
package gitcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/model"
	"github.com/relkit/relkit/vcs"
)

const (
	ciAuthor      = "relkit"
	ciAuthorEmail = "relkit@example.com"
)

// Git implements vcs.Interface using the git commandline tool.
type Git struct {
	cfg config.Config
	wd  string
}

func New(cfg config.Config, wd string) *Git {
	return &Git{
		cfg: cfg,
		wd:  wd,
	}
}

func (g *Git) Fetch(ctx context.Context, upstream, ref string) error {
	if upstream == "" {
		upstream = "origin"
	}
	args := []string{"fetch", "--tags", upstream}
	if ref != "" {
		args = append(args, ref)
	}
	if g.cfg.Dryrun {
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(args))
		return nil
	}
	_, err := g.call(ctx, args)
	return err
}

func (g *Git) Push(ctx context.Context, upstream, ref string, opts vcs.PushOpts) error {
	if upstream == "" {
		upstream = "origin"
	}
	if g.cfg.InCI {
		if err := g.setUpstreamAuth(ctx, upstream); err != nil {
			return err
		}
	}

	args := []string{"push"}
	if opts.FollowTags {
		args = append(args, "--follow-tags")
	}
	if opts.Tags {
		args = append(args, "--tags")
	}
	args = append(args, upstream)
	if ref != "" {
		args = append(args, ref)
	}

	if g.cfg.Dryrun {
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(args))
		return nil
	}
	_, err := g.call(ctx, args)
	return err
}

// setUpstreamAuth rewrites http(s) remote urls to embed the CI token.
// Remotes that already carry credentials, and non-http remotes, are
// left alone.
func (g *Git) setUpstreamAuth(ctx context.Context, upstream string) error {
	token := os.Getenv("GIT_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return errors.New("gitcli: GIT_TOKEN or GITHUB_TOKEN is required in CI")
	}

	curr, err := g.RemoteURL(ctx, upstream)
	if err != nil {
		return err
	}
	u, err := url.Parse(curr)
	if err != nil || u.Host == "" || !strings.HasPrefix(u.Scheme, "http") {
		return nil
	}
	if u.User != nil && u.User.String() != "" {
		return nil
	}
	u.User = url.UserPassword("git", token)

	scrubbed := *u
	scrubbed.User = url.UserPassword("git", "xxxxxx")
	args := []string{"remote", "set-url", upstream}
	g.cfg.Debugf("+ git %s %s", ArgsString(args), scrubbed.String())
	if g.cfg.Dryrun {
		return nil
	}
	_, err = g.call(ctx, append(args, u.String()))
	return err
}

func (g *Git) Commit(ctx context.Context, opts vcs.CommitOpts) error {
	if opts.Message == "" {
		return errors.New("gitcli: message is required")
	}
	if g.cfg.InCI && (opts.Author == "" || opts.AuthorEmail == "") {
		g.cfg.Printf("CI: setting author, author email")
		opts.Author = ciAuthor
		opts.AuthorEmail = ciAuthorEmail
	}
	if g.cfg.InCI {
		if err := g.setAuthor(ctx, opts.Author, opts.AuthorEmail); err != nil {
			return err
		}
	}

	if len(opts.Paths) > 0 {
		addArgs := append([]string{"add", "--"}, opts.Paths...)
		if g.cfg.Dryrun {
			g.cfg.Printf("+ git %s (dryrun)", ArgsString(addArgs))
		} else if _, err := g.call(ctx, addArgs); err != nil {
			return err
		}
	}

	args := []string{"commit", "-m", opts.Message}
	if len(opts.Paths) > 0 {
		args = append(append(args, "--"), opts.Paths...)
	}
	if g.cfg.Dryrun {
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(args))
		return nil
	}
	_, err := g.call(ctx, args)
	return err
}

const EXPECTED_LOG_PARTS = 9

func (g *Git) ReadCommits(ctx context.Context, query string) ([]*model.Commit, error) {
	args := []string{
		"log", "--pretty=tformat:_START_%H_SEP_%aN_SEP_%ae_SEP_%ai_SEP_%cN_SEP_%ce_SEP_%ci_SEP_%s_SEP_%b_END_", query,
	}
	b, err := g.call(ctx, args)
	if err != nil {
		return nil, err
	}

	var commits []*model.Commit
	scanner := bufio.NewScanner(bytes.NewBuffer(b))
	for scanner.Scan() {
		s := scanner.Text()
		parts := strings.Split(s, "_SEP_")
		if len(parts) != EXPECTED_LOG_PARTS {
			return nil, fmt.Errorf("gitcli: expected %d parts from git log, got %d", EXPECTED_LOG_PARTS, len(parts))
		}

		commitID := parts[0]
		if !strings.HasPrefix(commitID, "_START_") {
			return nil, fmt.Errorf("gitcli: unexpected git log line: %q", s)
		}
		commitID = strings.TrimPrefix(commitID, "_START_")

		// body can be multiple lines.
		var body string
		bodypart := parts[len(parts)-1]
		if strings.HasSuffix(bodypart, "_END_") {
			body = strings.TrimSuffix(bodypart, "_END_")
		} else {
			var bodyb strings.Builder
			bodyb.WriteString(bodypart)
			bodyb.WriteString("\n")
			for scanner.Scan() {
				bodyline := scanner.Text()
				if strings.HasSuffix(bodyline, "_END_") {
					if trimmed := strings.TrimSpace(strings.TrimSuffix(bodyline, "_END_")); trimmed != "" {
						bodyb.WriteString(trimmed)
					}
					break
				}
				bodyb.WriteString(bodyline)
				bodyb.WriteString("\n")
			}
			body = bodyb.String()
		}

		authorDateStr := parts[3]
		authorDate, err := ParseGitISO8601(authorDateStr)
		if err != nil {
			return nil, err
		}
		committerDateStr := parts[6]
		committerDate, err := ParseGitISO8601(committerDateStr)
		if err != nil {
			return nil, err
		}

		commits = append(commits, &model.Commit{
			ID:             commitID,
			Author:         parts[1],
			AuthorEmail:    parts[2],
			AuthorDate:     authorDate,
			Committer:      parts[4],
			CommitterEmail: parts[5],
			CommitterDate:  committerDate,
			Subject:        parts[7],
			Body:           strings.TrimRight(body, "\n"),
		})
	}
	return commits, nil
}

func (g *Git) CreateTag(ctx context.Context, commit, tag string, opts vcs.TagOpts) error {
	if opts.Message == "" {
		return errors.New("gitcli: message is required")
	}
	if g.cfg.InCI && (opts.Author == "" || opts.AuthorEmail == "") {
		g.cfg.Printf("CI: setting author, author email")
		opts.Author = ciAuthor
		opts.AuthorEmail = ciAuthorEmail
	}
	if g.cfg.InCI {
		if err := g.setAuthor(ctx, opts.Author, opts.AuthorEmail); err != nil {
			return err
		}
	}

	args := []string{"tag", "-a", tag}
	if commit != "" {
		args = append(args, commit)
	}
	args = append(args, "-m", opts.Message)
	if opts.Edit {
		args = append(args, "--edit")
	}

	if g.cfg.Dryrun {
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(args))
		return nil
	}
	_, err := g.call(ctx, args)
	return err
}

func (g *Git) DeleteTag(ctx context.Context, commit, tag string) error {
	args := []string{"tag", "-d", tag}
	if g.cfg.Dryrun {
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(args))
		return nil
	}
	_, err := g.call(ctx, args)
	return err
}

func (g *Git) ReadTags(ctx context.Context, query string) ([]string, error) {
	args := []string{
		"tag",
	}
	if query != "" {
		args = append(args, "-l", query)
	}
	b, err := g.call(ctx, args)
	if err != nil {
		return nil, err
	}
	var tags []string
	scanner := bufio.NewScanner(bytes.NewBuffer(b))
	for scanner.Scan() {
		s := scanner.Text()
		tags = append(tags, s)
	}
	return tags, nil
}

func (g *Git) GetMainBranch(ctx context.Context, candidates []string) (string, error) {
	for _, cand := range candidates {
		if _, err := g.call(ctx, []string{"show-ref", "--verify", "--quiet", "refs/heads/" + cand}); err == nil {
			return cand, nil
		}
		if _, err := g.call(ctx, []string{"show-ref", "--verify", "--quiet", "refs/remotes/origin/" + cand}); err == nil {
			return cand, nil
		}
	}
	return "", vcs.NotFoundError{Ref: strings.Join(candidates, ", ")}
}

func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	b, err := g.call(ctx, []string{"rev-parse", "--abbrev-ref", "HEAD"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (g *Git) BranchContains(ctx context.Context, commit, branch string) (bool, error) {
	_, err := g.call(ctx, []string{"merge-base", "--is-ancestor", commit, branch})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (g *Git) CurrentCommit(ctx context.Context) (string, error) {
	b, err := g.call(ctx, []string{"rev-parse", "HEAD"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (g *Git) RemoteURL(ctx context.Context, upstream string) (string, error) {
	if upstream == "" {
		upstream = "origin"
	}
	b, err := g.call(ctx, []string{"remote", "get-url", upstream})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (g *Git) ReadNameFromRemoteURL(ctx context.Context, upstream string) (string, error) {
	u, err := g.RemoteURL(ctx, upstream)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(u, ".git")
	name = strings.TrimRight(name, "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return name, nil
}

func (g *Git) GitDir(ctx context.Context) (string, error) {
	b, err := g.call(ctx, []string{"rev-parse", "--absolute-git-dir"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (g *Git) setAuthor(ctx context.Context, author, email string) error {
	userArgs := []string{"config", "user.name", author}
	emailArgs := []string{"config", "user.email", email}
	if g.cfg.Dryrun {
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(userArgs))
		g.cfg.Printf("+ git %s (dryrun)", ArgsString(emailArgs))
		return nil
	}
	if _, err := g.call(ctx, userArgs); err != nil {
		return err
	}
	if _, err := g.call(ctx, emailArgs); err != nil {
		return err
	}
	return nil
}
