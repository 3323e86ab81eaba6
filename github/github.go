// Package github publishes releases for tags created by the release
// pipeline.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/relkit/relkit/config"
	"github.com/relkit/relkit/vcs"
)

// ReleasesService is the slice of the GitHub API the publisher needs.
// *github.RepositoriesService satisfies it.
type ReleasesService interface {
	CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error)
	EditRelease(ctx context.Context, owner, repo string, id int64, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
}

type Client struct {
	cfg      config.Config
	vcs      vcs.Interface
	releases ReleasesService
	token    string
}

// NewClient builds a client from GITHUB_TOKEN (falling back to
// GIT_TOKEN). A missing token isn't an error until Publish needs it, so
// dryruns work without one.
func NewClient(cfg config.Config, vcsi vcs.Interface) (*Client, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GIT_TOKEN")
	}

	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	gh := github.NewClient(hc)
	if base := cfg.GitHub.APIBase; base != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("github: invalid api base %q: %w", base, err)
		}
	}
	return &Client{cfg: cfg, vcs: vcsi, releases: gh.Repositories, token: token}, nil
}

// NewClientWithServices injects the release service, for tests.
func NewClientWithServices(cfg config.Config, vcsi vcs.Interface, releases ReleasesService) *Client {
	return &Client{cfg: cfg, vcs: vcsi, releases: releases, token: "test"}
}

// Publish creates a release for tag, or edits the existing release for
// that tag so re-running a release is idempotent.
func (c *Client) Publish(ctx context.Context, tag, name, notes string, prerelease bool) error {
	owner, repo, err := c.repoPath(ctx)
	if err != nil {
		return err
	}

	if c.cfg.Dryrun {
		c.cfg.Printf("+ publish github release %s/%s %s (dryrun)", owner, repo, tag)
		return nil
	}
	if c.token == "" {
		return errors.New("github: GITHUB_TOKEN or GIT_TOKEN is required to publish releases")
	}

	rel := &github.RepositoryRelease{
		TagName:    github.Ptr(tag),
		Name:       github.Ptr(name),
		Body:       github.Ptr(notes),
		Prerelease: github.Ptr(prerelease),
	}

	existing, resp, err := c.releases.GetReleaseByTag(ctx, owner, repo, tag)
	if err == nil {
		if _, _, err := c.releases.EditRelease(ctx, owner, repo, existing.GetID(), rel); err != nil {
			return fmt.Errorf("github: failed to update release %s: %w", tag, err)
		}
		c.cfg.Printf("updated github release %s/%s %s", owner, repo, tag)
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("github: failed to look up release %s: %w", tag, err)
	}

	if _, _, err := c.releases.CreateRelease(ctx, owner, repo, rel); err != nil {
		return fmt.Errorf("github: failed to create release %s: %w", tag, err)
	}
	c.cfg.Printf("created github release %s/%s %s", owner, repo, tag)
	return nil
}

func (c *Client) repoPath(ctx context.Context) (string, string, error) {
	owner, repo := c.cfg.GitHub.Owner, c.cfg.GitHub.Repo
	if owner != "" && repo != "" {
		return owner, repo, nil
	}

	u, err := c.vcs.RemoteURL(ctx, "origin")
	if err != nil {
		return "", "", err
	}
	remoteOwner, remoteRepo, err := ParseRemote(u)
	if err != nil {
		return "", "", err
	}
	if owner == "" {
		owner = remoteOwner
	}
	if repo == "" {
		repo = remoteRepo
	}
	return owner, repo, nil
}

// ParseRemote extracts owner and repo from a git remote URL. It
// understands https, ssh, and scp-like (git@host:owner/repo) forms.
func ParseRemote(remote string) (owner, repo string, err error) {
	s := strings.TrimSuffix(strings.TrimSuffix(remote, "/"), ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.IndexByte(s, '/'); j >= 0 {
			s = s[j+1:]
		}
	} else if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
		if j := strings.IndexByte(s, ':'); j >= 0 {
			s = s[j+1:]
		}
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("github: no owner/repo in remote url %q", remote)
	}
	owner, repo = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("github: no owner/repo in remote url %q", remote)
	}
	return owner, repo, nil
}
