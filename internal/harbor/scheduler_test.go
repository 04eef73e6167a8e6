package harbor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRefreshInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		posts int
		want  time.Duration
	}{
		{0, 10 * time.Minute},
		{1000, 10 * time.Minute},
		{1001, 30 * time.Minute},
		{3000, 30 * time.Minute},
		{3001, time.Hour},
		{6000, time.Hour},
		{6001, 6 * time.Hour},
		{36000, 6 * time.Hour},
		{36001, 12 * time.Hour},
		{72000, 12 * time.Hour},
		{72001, 24 * time.Hour},
		{500000, 24 * time.Hour},
	}
	for _, tc := range tests {
		if got := refreshInterval(tc.posts); got != tc.want {
			t.Errorf("refreshInterval(%d) = %v, want %v", tc.posts, got, tc.want)
		}
	}
}

func TestParseRefreshWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"minute", time.Minute},
		{"hour", time.Hour},
		{"day", 24 * time.Hour},
		{"3.day", 72 * time.Hour},
		{"2.week", 14 * 24 * time.Hour},
		{"month", 30 * 24 * time.Hour},
	}
	for _, tc := range tests {
		got, err := ParseRefreshWindow(tc.in)
		if err != nil {
			t.Errorf("ParseRefreshWindow(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRefreshWindow(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	t.Run("unknown keyword", func(t *testing.T) {
		_, err := ParseRefreshWindow("fortnight")
		if err == nil || !strings.Contains(err.Error(), "unknown duration keyword") {
			t.Errorf("err = %v, want unknown duration keyword", err)
		}
	})

	t.Run("bad count", func(t *testing.T) {
		for _, in := range []string{"0.day", "-2.hour", "x.day"} {
			if _, err := ParseRefreshWindow(in); err == nil {
				t.Errorf("ParseRefreshWindow(%q) accepted, want error", in)
			}
		}
	})
}

// schedulerClock satisfies Clock without pulling testutil into the
// package (testutil imports this package).
type schedulerClock struct{ now time.Time }

func (c *schedulerClock) Now() time.Time { return c.now }

// refreshStore fakes just the store surface a metric pass touches.
// Every method the pass does not call panics through the embedded nil
// interface.
type refreshStore struct {
	Store
	live []string
}

func (s *refreshStore) ActivePostIDs(offset, limit int) ([]string, error) {
	if offset >= len(s.live) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.live) {
		end = len(s.live)
	}
	return append([]string(nil), s.live[offset:end]...), nil
}

func (s *refreshStore) AppendPostMetrics(id string, _ time.Time, m PostMetrics) error {
	if !m.Archived {
		return nil
	}
	for i, l := range s.live {
		if l == id {
			s.live = append(s.live[:i], s.live[i+1:]...)
			break
		}
	}
	return nil
}

func (s *refreshStore) CountActivePosts() (int, error) { return len(s.live), nil }

func TestSchedulerRun(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	newScheduler := func(src ContentSource, st Store) (*Scheduler, *schedulerClock, *[]time.Duration) {
		clock := &schedulerClock{now: start}
		collector := NewCollector(src, st, NewMapper(clock), NewNopRedactor(), NewNopSink(), NewNopLogger())
		s := NewScheduler(collector, NewNopLogger())
		s.now = clock.Now
		var slept []time.Duration
		s.sleep = func(_ context.Context, d time.Duration) error {
			clock.now = clock.now.Add(d)
			slept = append(slept, d)
			return nil
		}
		return s, clock, &slept
	}

	t.Run("rejects unknown task", func(t *testing.T) {
		s, _, _ := newScheduler(&staticSource{}, &refreshStore{})
		passes, err := s.Run(context.Background(), "comment", 0)
		if err == nil || !strings.Contains(err.Error(), "unknown refresh task") {
			t.Errorf("err = %v, want unknown refresh task", err)
		}
		if passes != 0 {
			t.Errorf("passes = %d, want 0", passes)
		}
	})

	t.Run("stops when nothing is live", func(t *testing.T) {
		s, _, slept := newScheduler(&staticSource{}, &refreshStore{})
		passes, err := s.Run(context.Background(), TaskPost, 0)
		if err != nil {
			t.Fatal(err)
		}
		if passes != 1 {
			t.Errorf("passes = %d, want 1", passes)
		}
		if len(*slept) != 0 {
			t.Errorf("slept %v, want no sleeps on an empty store", *slept)
		}
	})

	t.Run("loops until every post is archived", func(t *testing.T) {
		st := &refreshStore{live: []string{"p1"}}
		src := &staticSource{metrics: &PostMetrics{Score: 1}}
		s, _, slept := newScheduler(src, st)

		// Archive on the third pass.
		fetches := 0
		src.onMetrics = func() {
			fetches++
			if fetches >= 3 {
				src.metrics = &PostMetrics{Score: 1, Archived: true}
			}
		}

		passes, err := s.Run(context.Background(), TaskPost, 0)
		if err != nil {
			t.Fatal(err)
		}
		if passes != 3 {
			t.Errorf("passes = %d, want 3", passes)
		}
		// A single live post keeps the shortest cadence between passes.
		for _, d := range *slept {
			if d != 10*time.Minute {
				t.Errorf("sleep = %v, want 10m", d)
			}
		}
		if len(*slept) != 2 {
			t.Errorf("sleeps = %d, want 2", len(*slept))
		}
	})

	t.Run("sleeps only the interval remainder", func(t *testing.T) {
		st := &refreshStore{live: []string{"p1"}}
		src := &staticSource{metrics: &PostMetrics{Score: 1}}
		s, clock, slept := newScheduler(src, st)

		// Each pass burns three minutes of the ten-minute interval.
		src.onMetrics = func() { clock.now = clock.now.Add(3 * time.Minute) }

		passes, err := s.Run(context.Background(), TaskPost, 15*time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if passes != 2 {
			t.Errorf("passes = %d, want 2", passes)
		}
		if len(*slept) != 1 || (*slept)[0] != 7*time.Minute {
			t.Errorf("slept %v, want one 7m sleep", *slept)
		}
	})

	t.Run("stops when the window elapses", func(t *testing.T) {
		st := &refreshStore{live: []string{"p1"}}
		src := &staticSource{metrics: &PostMetrics{Score: 1}}
		s, _, slept := newScheduler(src, st)

		// The next pass would land past the ten-minute window, so one
		// pass completes and the loop ends without sleeping.
		passes, err := s.Run(context.Background(), TaskPost, 10*time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if passes != 1 {
			t.Errorf("passes = %d, want 1", passes)
		}
		if len(*slept) != 0 {
			t.Errorf("slept %v, want none", *slept)
		}
	})

	t.Run("canceled context ends the loop", func(t *testing.T) {
		st := &refreshStore{live: []string{"p1"}}
		src := &staticSource{metrics: &PostMetrics{Score: 1}}
		s, _, _ := newScheduler(src, st)
		s.sleep = func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		}
		passes, err := s.Run(context.Background(), TaskPost, 0)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if passes != 1 {
			t.Errorf("passes = %d, want 1", passes)
		}
	})
}

// staticSource serves one metrics value for every post.
type staticSource struct {
	metrics   *PostMetrics
	onMetrics func()
}

func (s *staticSource) SubredditPosts(context.Context, string, SortOrder, int) ([]*PostSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (s *staticSource) SearchPosts(context.Context, string, string, SortOrder, int) ([]*PostSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (s *staticSource) UserPosts(context.Context, string, SortOrder, int) ([]*PostSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (s *staticSource) UserComments(context.Context, string, SortOrder, int) ([]*CommentSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (s *staticSource) PostComments(context.Context, string, int) ([]*CommentSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (s *staticSource) AuthorProfile(context.Context, string) (*AuthorProfile, error) {
	return nil, errors.New("not implemented")
}

func (s *staticSource) PostMetrics(context.Context, string) (*PostMetrics, error) {
	if s.onMetrics != nil {
		s.onMetrics()
	}
	m := *s.metrics
	return &m, nil
}
