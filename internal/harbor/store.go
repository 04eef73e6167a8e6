package harbor

import (
	"time"

	"harbor-go/internal/model"
)

// Store persists harvested records. Implementations live in
// internal/store; tests use the in-memory variant.
type Store interface {
	// Authors.
	AuthorExists(id string) (bool, error)
	// FindAuthorIDByName returns the stored id for a username, or ""
	// when the name is unknown.
	FindAuthorIDByName(name string) (string, error)
	InsertAuthor(a *model.Author) error
	MarkAuthorSuspended(id string) error
	CountAuthors() (int, error)
	AuthorsPage(offset, limit int) ([]*model.Author, error)

	// Posts.
	PostExists(id string) (bool, error)
	InsertPost(p *model.Post) error
	CountPosts() (int, error)
	CountActivePosts() (int, error)
	// ActivePostIDs pages through posts that are neither removed nor
	// archived, newest first.
	ActivePostIDs(offset, limit int) ([]string, error)
	AppendPostMetrics(id string, at time.Time, m PostMetrics) error
	PostsPage(offset, limit int) ([]*model.Post, error)

	// Comments.
	CommentExists(id string) (bool, error)
	HasCommentsForPost(postID string) (bool, error)
	InsertComment(c *model.Comment) error
	CountComments() (int, error)
	CommentsPage(offset, limit int) ([]*model.Comment, error)

	// Runs record each harvest invocation for the history command.
	CreateRun(operation, parameters string, startedAt time.Time) (*model.Run, error)
	FinishRun(id int64, status string, finishedAt time.Time) error
	ListRuns(limit int) ([]*model.Run, error)

	Close() error
}
