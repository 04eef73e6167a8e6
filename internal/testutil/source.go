package testutil

import (
	"context"
	"fmt"

	"harbor-go/internal/harbor"
)

// FakeSource is a canned harbor.ContentSource. Fixtures are keyed the
// way the real client would look them up; lookups with no fixture
// return an error so tests notice unexpected calls.
type FakeSource struct {
	Posts        map[string][]*harbor.PostSnapshot    // by subreddit, or subreddit + "/" + sort
	SearchHits   map[string][]*harbor.PostSnapshot    // by subreddit + "/" + query
	PostsByUser  map[string][]*harbor.PostSnapshot    // by username
	CommentsBy   map[string][]*harbor.CommentSnapshot // by username
	Trees        map[string][]*harbor.CommentSnapshot // by post id
	Profiles     map[string]*harbor.AuthorProfile     // by username
	Metrics      map[string]*harbor.PostMetrics       // by post id
	ProfileErrs  map[string]error                     // by username
	MetricsErrs  map[string]error                     // by post id
	ProfileCalls int
	MetricsCalls int
	TreeCalls    int
}

var _ harbor.ContentSource = (*FakeSource)(nil)

func NewFakeSource() *FakeSource {
	return &FakeSource{
		Posts:       make(map[string][]*harbor.PostSnapshot),
		SearchHits:  make(map[string][]*harbor.PostSnapshot),
		PostsByUser: make(map[string][]*harbor.PostSnapshot),
		CommentsBy:  make(map[string][]*harbor.CommentSnapshot),
		Trees:       make(map[string][]*harbor.CommentSnapshot),
		Profiles:    make(map[string]*harbor.AuthorProfile),
		Metrics:     make(map[string]*harbor.PostMetrics),
		ProfileErrs: make(map[string]error),
		MetricsErrs: make(map[string]error),
	}
}

func (f *FakeSource) SubredditPosts(_ context.Context, subreddit string, sort harbor.SortOrder, limit int) ([]*harbor.PostSnapshot, error) {
	if posts, ok := f.Posts[subreddit+"/"+string(sort)]; ok {
		return clip(posts, limit), nil
	}
	posts, ok := f.Posts[subreddit]
	if !ok {
		return nil, fmt.Errorf("no fixture for r/%s %s", subreddit, sort)
	}
	return clip(posts, limit), nil
}

func (f *FakeSource) SearchPosts(_ context.Context, subreddit, query string, _ harbor.SortOrder, limit int) ([]*harbor.PostSnapshot, error) {
	posts, ok := f.SearchHits[subreddit+"/"+query]
	if !ok {
		return nil, fmt.Errorf("no fixture for search %q in r/%s", query, subreddit)
	}
	return clip(posts, limit), nil
}

func (f *FakeSource) UserPosts(_ context.Context, username string, _ harbor.SortOrder, limit int) ([]*harbor.PostSnapshot, error) {
	posts, ok := f.PostsByUser[username]
	if !ok {
		return nil, fmt.Errorf("no fixture for posts of u/%s", username)
	}
	return clip(posts, limit), nil
}

func (f *FakeSource) UserComments(_ context.Context, username string, _ harbor.SortOrder, limit int) ([]*harbor.CommentSnapshot, error) {
	comments, ok := f.CommentsBy[username]
	if !ok {
		return nil, fmt.Errorf("no fixture for comments of u/%s", username)
	}
	return clip(comments, limit), nil
}

func (f *FakeSource) PostComments(_ context.Context, postID string, _ int) ([]*harbor.CommentSnapshot, error) {
	f.TreeCalls++
	tree, ok := f.Trees[postID]
	if !ok {
		return nil, fmt.Errorf("no fixture for comment tree of %s", postID)
	}
	return tree, nil
}

func (f *FakeSource) AuthorProfile(_ context.Context, name string) (*harbor.AuthorProfile, error) {
	f.ProfileCalls++
	if err, ok := f.ProfileErrs[name]; ok {
		return nil, err
	}
	profile, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("no fixture for u/%s", name)
	}
	return profile, nil
}

func (f *FakeSource) PostMetrics(_ context.Context, postID string) (*harbor.PostMetrics, error) {
	f.MetricsCalls++
	if err, ok := f.MetricsErrs[postID]; ok {
		return nil, err
	}
	m, ok := f.Metrics[postID]
	if !ok {
		return nil, fmt.Errorf("no metrics fixture for %s", postID)
	}
	return m, nil
}

func clip[T any](items []T, limit int) []T {
	if limit > 0 && limit < len(items) {
		return items[:limit]
	}
	return items
}
