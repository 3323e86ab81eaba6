package github

import (
	"context"

	"github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/mock"
)

type MockReleasesService struct {
	mock.Mock
}

func (m *MockReleasesService) CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error) {
	args := m.Called(ctx, owner, repo, release)
	return releaseArg(args.Get(0)), responseArg(args.Get(1)), args.Error(2)
}

func (m *MockReleasesService) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error) {
	args := m.Called(ctx, owner, repo, tag)
	return releaseArg(args.Get(0)), responseArg(args.Get(1)), args.Error(2)
}

func (m *MockReleasesService) EditRelease(ctx context.Context, owner, repo string, id int64, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error) {
	args := m.Called(ctx, owner, repo, id, release)
	return releaseArg(args.Get(0)), responseArg(args.Get(1)), args.Error(2)
}

func releaseArg(v interface{}) *github.RepositoryRelease {
	if v == nil {
		return nil
	}
	return v.(*github.RepositoryRelease)
}

func responseArg(v interface{}) *github.Response {
	if v == nil {
		return nil
	}
	return v.(*github.Response)
}
