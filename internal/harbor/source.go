package harbor

import (
	"context"
	"fmt"
	"time"

	"harbor-go/internal/model"
)

// SortOrder selects a subreddit or profile listing.
type SortOrder string

const (
	SortHot           SortOrder = "hot"
	SortNew           SortOrder = "new"
	SortRising        SortOrder = "rising"
	SortTop           SortOrder = "top"
	SortControversial SortOrder = "controversial"
)

// ParseSortOrder validates a user-supplied sort name.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case SortHot, SortNew, SortRising, SortTop, SortControversial:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// ExpandAll requests unbounded expansion of deferred comment nodes
// when fetching a post's comment tree.
const ExpandAll = -1

// AuthorRef identifies the author of a post or comment as it appears
// on the item itself. Deleted is set when the account no longer exists
// and no name is available.
type AuthorRef struct {
	Name    string
	Deleted bool
}

// AuthorState classifies a looked-up account.
type AuthorState int

const (
	AuthorActive AuthorState = iota
	AuthorSuspended
)

// AuthorProfile is the result of a full account lookup. Suspended
// accounts keep State, Name and the awardee, awarder and total karma
// counters; the id, creation time and the remaining karma fields are
// withheld.
type AuthorProfile struct {
	State     AuthorState
	ID        string
	Name      string
	CreatedAt *time.Time
	Karma     model.Karma
	IsGold    *bool
	Moderates map[string]model.ModeratedCommunity
	Trophies  []string
}

// PollOption is a single poll choice with its vote count. Votes is
// nil while voting is still open.
type PollOption struct {
	Text  string
	Votes *int
}

// PollData carries the raw poll attached to a post.
type PollData struct {
	TotalVotes   int
	VotingEndsAt time.Time
	Options      []PollOption
}

// AwardSnapshot is one award type attached to a post.
type AwardSnapshot struct {
	Name      string
	Count     int
	CoinPrice int
}

// PostSnapshot is a post exactly as the source returned it, before any
// mapping or redaction.
type PostSnapshot struct {
	ID          string
	Author      AuthorRef
	CreatedAt   time.Time
	Title       string
	Body        string
	Subreddit   string
	Permalink   string
	URL         string
	IsMedia     bool
	IsVideo     bool
	IsSelf      bool
	Poll        *PollData
	LinkFlair   *string
	AuthorFlair *string
	Awards      []AwardSnapshot
	Score       int
	UpvoteRatio float64
	NumComments int
	Edited      bool
	Archived    bool
	// RemovedCategory is empty for visible posts; any non-empty value
	// means the post was taken down.
	RemovedCategory string
}

// CommentSnapshot is a comment exactly as the source returned it.
// LinkID keeps the source's type prefix (t3_...).
type CommentSnapshot struct {
	ID        string
	LinkID    string
	Subreddit string
	ParentID  string
	Author    AuthorRef
	CreatedAt time.Time
	Body      string
	Score     int
	Edited    bool
}

// PostMetrics is the subset of post state re-read during a refresh pass.
type PostMetrics struct {
	Score       int
	UpvoteRatio float64
	NumComments int
	Archived    bool
}

// ContentSource fetches content from the platform. Implementations are
// responsible for rate limiting and pagination; limit is the total
// number of items wanted, not a page size.
type ContentSource interface {
	SubredditPosts(ctx context.Context, subreddit string, sort SortOrder, limit int) ([]*PostSnapshot, error)
	SearchPosts(ctx context.Context, subreddit, query string, sort SortOrder, limit int) ([]*PostSnapshot, error)
	UserPosts(ctx context.Context, username string, sort SortOrder, limit int) ([]*PostSnapshot, error)
	UserComments(ctx context.Context, username string, sort SortOrder, limit int) ([]*CommentSnapshot, error)
	// PostComments returns the full comment tree for a post, expanding
	// up to expand deferred nodes (ExpandAll for no bound).
	PostComments(ctx context.Context, postID string, expand int) ([]*CommentSnapshot, error)
	AuthorProfile(ctx context.Context, name string) (*AuthorProfile, error)
	PostMetrics(ctx context.Context, postID string) (*PostMetrics, error)
}
