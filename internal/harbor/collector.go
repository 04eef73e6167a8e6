package harbor

import (
	"context"
	"fmt"

	"harbor-go/internal/model"
)

// PostOptions controls a post-collection pass.
type PostOptions struct {
	// Redact masks identifying text in body text before insert.
	Redact bool
	// PersistAuthors resolves and stores full author rows. When false,
	// posts record the raw username and no author lookup happens.
	PersistAuthors bool
}

// CommentOptions controls a comment-collection pass.
type CommentOptions struct {
	Redact         bool
	PersistAuthors bool
	// Expand bounds how many deferred tree nodes are loaded per post.
	// ExpandAll removes the bound.
	Expand int
}

// Stats summarizes one collection pass. Skipped counts items already
// present in the store; Failed counts items recorded to the error sink.
// AuthorsInserted counts author rows created while resolving items.
type Stats struct {
	Inserted        int
	Skipped         int
	Failed          int
	AuthorsInserted int
}

func (s *Stats) add(o Stats) {
	s.Inserted += o.Inserted
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.AuthorsInserted += o.AuthorsInserted
}

// Collector harvests content from a source into the store. Individual
// item failures go to the error sink and never abort a batch; only
// listing-level fetch errors and context cancellation do.
type Collector struct {
	source   ContentSource
	store    Store
	mapper   *Mapper
	redactor Redactor
	sink     ErrorSink
	logger   Logger
}

func NewCollector(source ContentSource, store Store, mapper *Mapper, redactor Redactor, sink ErrorSink, logger Logger) *Collector {
	return &Collector{
		source:   source,
		store:    store,
		mapper:   mapper,
		redactor: redactor,
		sink:     sink,
		logger:   logger,
	}
}

// CollectSubredditPosts harvests every requested listing from each
// subreddit, covering the full subreddit and sort-order cross product.
func (c *Collector) CollectSubredditPosts(ctx context.Context, subreddits []string, sorts []SortOrder, limit int, opts PostOptions) (Stats, error) {
	var stats Stats
	for _, sub := range subreddits {
		for _, sort := range sorts {
			posts, err := c.source.SubredditPosts(ctx, sub, sort, limit)
			if err != nil {
				return stats, fmt.Errorf("list r/%s %s: %w", sub, sort, err)
			}
			c.logger.Info("listing fetched", "subreddit", sub, "sort", string(sort), "count", len(posts))
			s, err := c.storePosts(ctx, posts, opts)
			stats.add(s)
			if err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// CollectSubredditComments harvests the comment tree of every post in
// the requested listings. Post rows themselves are not touched.
func (c *Collector) CollectSubredditComments(ctx context.Context, subreddits []string, sorts []SortOrder, limit int, opts CommentOptions) (Stats, error) {
	var stats Stats
	for _, sub := range subreddits {
		for _, sort := range sorts {
			posts, err := c.source.SubredditPosts(ctx, sub, sort, limit)
			if err != nil {
				return stats, fmt.Errorf("list r/%s %s: %w", sub, sort, err)
			}
			for _, p := range posts {
				s, err := c.collectTree(ctx, p.ID, opts)
				stats.add(s)
				if err != nil {
					return stats, err
				}
			}
		}
	}
	return stats, nil
}

// CollectSubredditAll harvests posts and their full comment trees in
// one pass.
func (c *Collector) CollectSubredditAll(ctx context.Context, subreddits []string, sorts []SortOrder, limit int, postOpts PostOptions, commentOpts CommentOptions) (Stats, error) {
	var stats Stats
	for _, sub := range subreddits {
		for _, sort := range sorts {
			posts, err := c.source.SubredditPosts(ctx, sub, sort, limit)
			if err != nil {
				return stats, fmt.Errorf("list r/%s %s: %w", sub, sort, err)
			}
			for _, p := range posts {
				s, err := c.storePosts(ctx, []*PostSnapshot{p}, postOpts)
				stats.add(s)
				if err != nil {
					return stats, err
				}
				s, err = c.collectTree(ctx, p.ID, commentOpts)
				stats.add(s)
				if err != nil {
					return stats, err
				}
			}
		}
	}
	return stats, nil
}

// SearchPosts harvests posts matching a query within each subreddit.
// Callers that want anonymous datasets leave PersistAuthors off, which
// is the default for keyword harvests.
func (c *Collector) SearchPosts(ctx context.Context, subreddits []string, query string, sorts []SortOrder, limit int, opts PostOptions) (Stats, error) {
	var stats Stats
	for _, sub := range subreddits {
		for _, sort := range sorts {
			posts, err := c.source.SearchPosts(ctx, sub, query, sort, limit)
			if err != nil {
				return stats, fmt.Errorf("search r/%s %q: %w", sub, query, err)
			}
			s, err := c.storePosts(ctx, posts, opts)
			stats.add(s)
			if err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// CollectUserPosts harvests each user's submitted posts.
func (c *Collector) CollectUserPosts(ctx context.Context, usernames []string, sorts []SortOrder, limit int, opts PostOptions) (Stats, error) {
	var stats Stats
	for _, name := range usernames {
		for _, sort := range sorts {
			posts, err := c.source.UserPosts(ctx, name, sort, limit)
			if err != nil {
				return stats, fmt.Errorf("list posts of u/%s: %w", name, err)
			}
			s, err := c.storePosts(ctx, posts, opts)
			stats.add(s)
			if err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// CollectUserComments harvests each user's comment history.
func (c *Collector) CollectUserComments(ctx context.Context, usernames []string, sorts []SortOrder, limit int, opts CommentOptions) (Stats, error) {
	var stats Stats
	for _, name := range usernames {
		for _, sort := range sorts {
			comments, err := c.source.UserComments(ctx, name, sort, limit)
			if err != nil {
				return stats, fmt.Errorf("list comments of u/%s: %w", name, err)
			}
			s, err := c.storeComments(ctx, comments, opts)
			stats.add(s)
			if err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// CollectPostComments harvests full comment trees for explicit post ids.
func (c *Collector) CollectPostComments(ctx context.Context, postIDs []string, opts CommentOptions) (Stats, error) {
	var stats Stats
	for _, id := range postIDs {
		s, err := c.collectTree(ctx, id, opts)
		stats.add(s)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// RefreshPosts runs one metric pass over every stored post that is
// still live, appending a fresh score, upvote-ratio and comment-count
// observation to each. Posts that have since been archived are flagged
// and drop out of future passes. It returns the number of posts still
// eligible after the pass so callers can size the next interval.
func (c *Collector) RefreshPosts(ctx context.Context) (int, Stats, error) {
	var stats Stats

	// Snapshot the live set before touching any row. Visiting a post
	// can archive it, and an offset cursor over a shrinking result set
	// would skip posts that were live when the pass began.
	var ids []string
	const page = 1000
	for offset := 0; ; offset += page {
		batch, err := c.store.ActivePostIDs(offset, page)
		if err != nil {
			return 0, stats, fmt.Errorf("page active posts: %w", err)
		}
		ids = append(ids, batch...)
		if len(batch) < page {
			break
		}
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, stats, err
		}
		metrics, err := c.source.PostMetrics(ctx, id)
		if err != nil {
			c.sink.Record("post", id, fmt.Errorf("refresh metrics: %w", err))
			stats.Failed++
			continue
		}
		if err := c.store.AppendPostMetrics(id, c.mapper.clock.Now(), *metrics); err != nil {
			c.sink.Record("post", id, fmt.Errorf("append metrics: %w", err))
			stats.Failed++
			continue
		}
		stats.Inserted++
	}

	remaining, err := c.store.CountActivePosts()
	if err != nil {
		return 0, stats, fmt.Errorf("count active posts: %w", err)
	}
	return remaining, stats, nil
}

func (c *Collector) storePosts(ctx context.Context, posts []*PostSnapshot, opts PostOptions) (Stats, error) {
	var stats Stats
	for _, snap := range posts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		exists, err := c.store.PostExists(snap.ID)
		if err != nil {
			return stats, fmt.Errorf("check post %s: %w", snap.ID, err)
		}
		if exists {
			stats.Skipped++
			continue
		}
		authorID, authorInserted, err := c.resolveAuthor(ctx, snap.Author, opts.PersistAuthors)
		if err != nil {
			c.sink.Record("post", snap.ID, fmt.Errorf("resolve author %q: %w", snap.Author.Name, err))
			stats.Failed++
			continue
		}
		if authorInserted {
			stats.AuthorsInserted++
		}
		post := c.mapper.MapPost(snap, authorID)
		// Only body text is masked; titles stay verbatim.
		if opts.Redact {
			post.Body, err = c.redactText(ctx, post.Body)
			if err != nil {
				c.sink.Record("post", snap.ID, fmt.Errorf("redact: %w", err))
				stats.Failed++
				continue
			}
		}
		if err := c.store.InsertPost(post); err != nil {
			c.sink.Record("post", snap.ID, fmt.Errorf("insert: %w", err))
			stats.Failed++
			continue
		}
		stats.Inserted++
	}
	return stats, nil
}

func (c *Collector) storeComments(ctx context.Context, comments []*CommentSnapshot, opts CommentOptions) (Stats, error) {
	var stats Stats
	for _, snap := range comments {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		exists, err := c.store.CommentExists(snap.ID)
		if err != nil {
			return stats, fmt.Errorf("check comment %s: %w", snap.ID, err)
		}
		if exists {
			stats.Skipped++
			continue
		}
		authorID, authorInserted, err := c.resolveAuthor(ctx, snap.Author, opts.PersistAuthors)
		if err != nil {
			c.sink.Record("comment", snap.ID, fmt.Errorf("resolve author %q: %w", snap.Author.Name, err))
			stats.Failed++
			continue
		}
		if authorInserted {
			stats.AuthorsInserted++
		}
		comment := c.mapper.MapComment(snap, authorID)
		// Taken-down comments have no body left to mask.
		if opts.Redact && comment.Body != nil {
			masked, err := c.redactText(ctx, *comment.Body)
			if err != nil {
				c.sink.Record("comment", snap.ID, fmt.Errorf("redact: %w", err))
				stats.Failed++
				continue
			}
			comment.Body = &masked
		}
		if err := c.store.InsertComment(comment); err != nil {
			c.sink.Record("comment", snap.ID, fmt.Errorf("insert: %w", err))
			stats.Failed++
			continue
		}
		stats.Inserted++
	}
	return stats, nil
}

// collectTree fetches and stores one post's comment tree at most once:
// if any comment for the post is already stored, the whole tree is
// skipped rather than partially re-merged.
func (c *Collector) collectTree(ctx context.Context, postID string, opts CommentOptions) (Stats, error) {
	var stats Stats
	collected, err := c.store.HasCommentsForPost(postID)
	if err != nil {
		return stats, fmt.Errorf("check comments of %s: %w", postID, err)
	}
	if collected {
		c.logger.Debug("comment tree already collected", "post", postID)
		stats.Skipped++
		return stats, nil
	}
	comments, err := c.source.PostComments(ctx, postID, opts.Expand)
	if err != nil {
		c.sink.Record("post", postID, fmt.Errorf("fetch comment tree: %w", err))
		stats.Failed++
		return stats, nil
	}
	return c.storeComments(ctx, comments, opts)
}

// resolveAuthor turns an on-item author reference into the id stored on
// the row, reporting whether a new author row was inserted. Deleted
// accounts map to a sentinel and are never persisted. Active accounts
// are inserted once under their stable id. Suspended accounts keep
// their original id when the name was seen before the suspension;
// otherwise a reduced row is stored under a synthetic id.
func (c *Collector) resolveAuthor(ctx context.Context, ref AuthorRef, persist bool) (string, bool, error) {
	if ref.Deleted {
		return model.SentinelDeleted, false, nil
	}
	if !persist {
		return ref.Name, false, nil
	}
	profile, err := c.source.AuthorProfile(ctx, ref.Name)
	if err != nil {
		return "", false, err
	}
	switch profile.State {
	case AuthorSuspended:
		existing, err := c.store.FindAuthorIDByName(ref.Name)
		if err != nil {
			return "", false, fmt.Errorf("find author by name: %w", err)
		}
		if existing != "" {
			if err := c.store.MarkAuthorSuspended(existing); err != nil {
				return "", false, fmt.Errorf("mark suspended: %w", err)
			}
			return existing, false, nil
		}
		id := model.SuspendedID(ref.Name)
		author := &model.Author{
			AuthorID: id,
			Name:     ref.Name,
			Karma:    profile.Karma,
			Status:   model.AuthorSuspended,
		}
		if err := c.store.InsertAuthor(author); err != nil {
			return "", false, fmt.Errorf("insert suspended author: %w", err)
		}
		return id, true, nil
	default:
		exists, err := c.store.AuthorExists(profile.ID)
		if err != nil {
			return "", false, fmt.Errorf("check author: %w", err)
		}
		if exists {
			return profile.ID, false, nil
		}
		author := &model.Author{
			AuthorID:  profile.ID,
			Name:      profile.Name,
			CreatedAt: profile.CreatedAt,
			Karma:     profile.Karma,
			IsGold:    profile.IsGold,
			Moderates: profile.Moderates,
			Trophies:  profile.Trophies,
			Status:    model.AuthorActive,
		}
		if err := c.store.InsertAuthor(author); err != nil {
			return "", false, fmt.Errorf("insert author: %w", err)
		}
		return profile.ID, true, nil
	}
}

func (c *Collector) redactText(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	findings, err := c.redactor.Analyze(ctx, text, "en")
	if err != nil {
		return "", fmt.Errorf("analyze: %w", err)
	}
	if len(findings) == 0 {
		return text, nil
	}
	masked, err := c.redactor.Anonymize(ctx, text, findings)
	if err != nil {
		return "", fmt.Errorf("anonymize: %w", err)
	}
	return masked, nil
}
