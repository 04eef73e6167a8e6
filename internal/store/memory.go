package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
)

// Memory implements harbor.Store entirely in memory. It backs the
// "memory" storage type for throwaway harvests and is what most unit
// tests run against.
type Memory struct {
	mu       sync.Mutex
	authors  map[string]*model.Author
	posts    map[string]*model.Post
	comments map[string]*model.Comment
	runs     []*model.Run
	nextRun  int64
}

var _ harbor.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		authors:  make(map[string]*model.Author),
		posts:    make(map[string]*model.Post),
		comments: make(map[string]*model.Comment),
		nextRun:  1,
	}
}

func (m *Memory) Close() error { return nil }

// Authors

func (m *Memory) AuthorExists(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.authors[id]
	return ok, nil
}

func (m *Memory) FindAuthorIDByName(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.authors {
		if a.Name == name {
			return id, nil
		}
	}
	return "", nil
}

func (m *Memory) InsertAuthor(a *model.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.authors[a.AuthorID]; ok {
		return fmt.Errorf("author %s already exists", a.AuthorID)
	}
	clone := *a
	m.authors[a.AuthorID] = &clone
	return nil
}

func (m *Memory) MarkAuthorSuspended(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[id]
	if !ok {
		return fmt.Errorf("author %s not found", id)
	}
	a.Status = model.AuthorSuspended
	return nil
}

func (m *Memory) CountAuthors() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.authors), nil
}

func (m *Memory) AuthorsPage(offset, limit int) ([]*model.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.authors))
	for id := range m.authors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.Author, 0, limit)
	for _, id := range page(ids, offset, limit) {
		clone := *m.authors[id]
		out = append(out, &clone)
	}
	return out, nil
}

// Posts

func (m *Memory) PostExists(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.posts[id]
	return ok, nil
}

func (m *Memory) InsertPost(p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[p.PostID]; ok {
		return fmt.Errorf("post %s already exists", p.PostID)
	}
	clone := *p
	m.posts[p.PostID] = &clone
	return nil
}

func (m *Memory) CountPosts() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts), nil
}

func (m *Memory) CountActivePosts() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.posts {
		if !p.Archived && !p.Removed {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ActivePostIDs(offset, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := make([]*model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if !p.Archived && !p.Removed {
			live = append(live, p)
		}
	}
	// Newest first, matching the sqlite store.
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].PostID > live[j].PostID
	})
	ids := make([]string, len(live))
	for i, p := range live {
		ids[i] = p.PostID
	}
	return page(ids, offset, limit), nil
}

func (m *Memory) AppendPostMetrics(id string, at time.Time, metrics harbor.PostMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return fmt.Errorf("post %s not found", id)
	}
	p.Score.Append(at, metrics.Score)
	p.UpvoteRatio.Append(at, metrics.UpvoteRatio)
	p.NumComments.Append(at, metrics.NumComments)
	if metrics.Archived {
		p.Archived = true
	}
	return nil
}

func (m *Memory) PostsPage(offset, limit int) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		all = append(all, p)
	}
	sortPosts(all)
	out := make([]*model.Post, 0, limit)
	for _, p := range page(all, offset, limit) {
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

// Comments

func (m *Memory) CommentExists(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.comments[id]
	return ok, nil
}

func (m *Memory) HasCommentsForPost(postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.comments {
		if c.LinkID == postID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) InsertComment(c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.CommentID]; ok {
		return fmt.Errorf("comment %s already exists", c.CommentID)
	}
	clone := *c
	m.comments[c.CommentID] = &clone
	return nil
}

func (m *Memory) CountComments() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.comments), nil
}

func (m *Memory) CommentsPage(offset, limit int) ([]*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*model.Comment, 0, len(m.comments))
	for _, c := range m.comments {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CommentID < all[j].CommentID
	})
	out := make([]*model.Comment, 0, limit)
	for _, c := range page(all, offset, limit) {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

// Runs

func (m *Memory) CreateRun(operation, parameters string, startedAt time.Time) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &model.Run{
		ID:         m.nextRun,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     "running",
	}
	m.nextRun++
	m.runs = append(m.runs, r)
	clone := *r
	return &clone, nil
}

func (m *Memory) FinishRun(id int64, status string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			r.Status = status
			t := finishedAt
			r.FinishedAt = &t
			return nil
		}
	}
	return fmt.Errorf("run %d not found", id)
}

func (m *Memory) ListRuns(limit int) ([]*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Run, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		clone := *m.runs[i]
		out = append(out, &clone)
	}
	return out, nil
}

func sortPosts(posts []*model.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].PostID < posts[j].PostID
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
