package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relkit/relkit/model"
)

// Mock implements Interface in memory. Tags created through it become
// visible to subsequent ReadTags calls, and commits created through it
// are prepended to the log.
type Mock struct {
	t          time.Time
	tags       []string
	commits    []*model.Commit
	branch     string
	current    string
	remoteURL  string
	gitDir     string
	nextCommit int

	created   []TagCreation
	deleted   []string
	committed []CommitOpts
	pushed    []string
}

// TagCreation records one CreateTag call.
type TagCreation struct {
	Commit string
	Tag    string
	Opts   TagOpts
}

func NewMock() *Mock {
	return &Mock{
		t:         time.Now(),
		branch:    "main",
		remoteURL: "https://github.com/mock/mockrepo.git",
		gitDir:    ".git",
	}
}

func (m *Mock) SetTags(tags ...string) *Mock {
	m.tags = tags
	return m
}

func (m *Mock) SetCommits(commits ...*model.Commit) *Mock {
	finalCommits := make([]*model.Commit, len(commits))
	for i, commit := range commits {
		c := *commit
		if c.CommitterDate.IsZero() {
			c.CommitterDate = m.t
			m.t = m.t.Add(-time.Minute)
		}
		finalCommits[i] = &c
	}
	m.commits = finalCommits
	return m
}

func (m *Mock) SetBranch(branch string) *Mock {
	m.branch = branch
	return m
}

// SetCurrentBranch checks out a branch other than the main branch.
func (m *Mock) SetCurrentBranch(branch string) *Mock {
	m.current = branch
	return m
}

func (m *Mock) SetRemoteURL(u string) *Mock {
	m.remoteURL = u
	return m
}

func (m *Mock) SetGitDir(dir string) *Mock {
	m.gitDir = dir
	return m
}

// CreatedTags returns the tags created through the mock, in order.
func (m *Mock) CreatedTags() []string {
	tags := make([]string, len(m.created))
	for i, tc := range m.created {
		tags[i] = tc.Tag
	}
	return tags
}

// CreatedTagOps returns the full CreateTag calls, in order.
func (m *Mock) CreatedTagOps() []TagCreation { return m.created }

// DeletedTags returns the tags deleted through the mock, in order.
func (m *Mock) DeletedTags() []string { return m.deleted }

// Committed returns the commits created through the mock, in order.
func (m *Mock) Committed() []CommitOpts { return m.committed }

// Pushed returns the refs pushed through the mock, in order.
func (m *Mock) Pushed() []string { return m.pushed }

func (m *Mock) Fetch(ctx context.Context, upstream, ref string) error {
	return nil
}

func (m *Mock) Push(ctx context.Context, upstream, ref string, opts PushOpts) error {
	m.pushed = append(m.pushed, ref)
	return nil
}

func (m *Mock) Commit(ctx context.Context, opts CommitOpts) error {
	m.committed = append(m.committed, opts)
	subject := opts.Message
	var body string
	if parts := strings.SplitN(opts.Message, "\n\n", 2); len(parts) == 2 {
		subject, body = parts[0], parts[1]
	}
	c := &model.Commit{
		ID:            fmt.Sprintf("c0ffee%02d", m.nextCommit),
		Subject:       subject,
		Body:          body,
		CommitterDate: time.Now(),
	}
	m.nextCommit++
	m.commits = append([]*model.Commit{c}, m.commits...)
	return nil
}

func (m *Mock) CreateTag(ctx context.Context, commit, tag string, opts TagOpts) error {
	m.created = append(m.created, TagCreation{Commit: commit, Tag: tag, Opts: opts})
	m.tags = append(m.tags, tag)
	return nil
}

func (m *Mock) DeleteTag(ctx context.Context, commit, tag string) error {
	m.deleted = append(m.deleted, tag)
	var tags []string
	for _, t := range m.tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	m.tags = tags
	return nil
}

func (m *Mock) ReadTags(ctx context.Context, query string) ([]string, error) {
	var tags []string
	for _, t := range m.tags {
		if globMatches(t, query) {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

func (m *Mock) ReadCommits(ctx context.Context, query string) ([]*model.Commit, error) {
	return m.commits, nil
}

func (m *Mock) GetMainBranch(ctx context.Context, candidates []string) (string, error) {
	for _, cand := range candidates {
		if cand == m.branch {
			return cand, nil
		}
	}
	if len(candidates) > 0 {
		return "", NotFoundError{Ref: strings.Join(candidates, ", ")}
	}
	return m.branch, nil
}

func (m *Mock) CurrentBranch(ctx context.Context) (string, error) {
	if m.current != "" {
		return m.current, nil
	}
	return m.branch, nil
}

func (m *Mock) BranchContains(ctx context.Context, commit, branch string) (bool, error) {
	return true, nil
}

func (m *Mock) CurrentCommit(ctx context.Context) (string, error) {
	if len(m.commits) > 0 {
		return m.commits[0].ID, nil
	}
	return "", NotFoundError{Ref: "HEAD"}
}

func (m *Mock) RemoteURL(ctx context.Context, upstream string) (string, error) {
	return m.remoteURL, nil
}

func (m *Mock) ReadNameFromRemoteURL(ctx context.Context, upstream string) (string, error) {
	name := strings.TrimSuffix(m.remoteURL, ".git")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name, nil
}

func (m *Mock) GitDir(ctx context.Context) (string, error) {
	return m.gitDir, nil
}

func globMatches(s string, glob string) bool {
	parts := strings.Split(glob, "*")
	remaining := s
	for {
		if len(parts) == 0 {
			break
		}
		part := parts[0]
		parts = parts[1:]

		if !strings.HasPrefix(remaining, part) {
			return false
		}
		remaining = strings.TrimPrefix(remaining, part)
	}
	if len(glob) > 0 && glob[len(glob)-1] == '*' {
		return true
	}
	return remaining == ""
}
