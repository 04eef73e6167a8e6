package harbor_test

import (
	"testing"
	"time"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
	"harbor-go/internal/testutil"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper() *harbor.Mapper {
	return harbor.NewMapper(testutil.NewStubClock(testNow))
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func TestMapPost(t *testing.T) {
	t.Parallel()

	snap := &harbor.PostSnapshot{
		ID:          "abc123",
		Author:      harbor.AuthorRef{Name: "alice"},
		CreatedAt:   time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC),
		Title:       "a title",
		Body:        "a body",
		Subreddit:   "science",
		Permalink:   "/r/science/comments/abc123/a_title/",
		URL:         "https://example.com/article",
		Score:       42,
		UpvoteRatio: 0.93,
		NumComments: 7,
		Edited:      true,
	}

	m := newTestMapper()
	post := m.MapPost(snap, "t2_alice")

	if post.PostID != "abc123" || post.AuthorID != "t2_alice" {
		t.Errorf("unexpected identity: %s by %s", post.PostID, post.AuthorID)
	}
	if !post.Edited {
		t.Error("expected edited flag to carry over")
	}
	if post.Removed || post.Archived {
		t.Error("expected live post")
	}

	key := testNow.Format(model.SeriesTimeLayout)
	if got := post.Score[key]; got != 42 {
		t.Errorf("score series at %s = %d, want 42", key, got)
	}
	if got := post.UpvoteRatio[key]; got != 0.93 {
		t.Errorf("upvote ratio series at %s = %v, want 0.93", key, got)
	}
	if got := post.NumComments[key]; got != 7 {
		t.Errorf("comment count series at %s = %d, want 7", key, got)
	}
}

func TestMapPostRemoved(t *testing.T) {
	t.Parallel()

	snap := &harbor.PostSnapshot{
		ID:              "gone1",
		CreatedAt:       testNow,
		RemovedCategory: "moderator",
	}
	post := newTestMapper().MapPost(snap, model.SentinelDeleted)
	if !post.Removed {
		t.Error("expected removed flag for taken-down post")
	}
}

func TestMapPostAttachment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap harbor.PostSnapshot
		want *model.Attachment
	}{
		{
			name: "hosted video wins over extension",
			snap: harbor.PostSnapshot{IsMedia: true, IsVideo: true, URL: "https://v.redd.it/x.gif"},
			want: &model.Attachment{Kind: model.AttachmentVideo, URL: "https://v.redd.it/x.gif"},
		},
		{
			name: "hosted jpg",
			snap: harbor.PostSnapshot{IsMedia: true, URL: "https://i.redd.it/pic.JPG"},
			want: &model.Attachment{Kind: model.AttachmentJPG, URL: "https://i.redd.it/pic.JPG"},
		},
		{
			name: "hosted png",
			snap: harbor.PostSnapshot{IsMedia: true, URL: "https://i.redd.it/pic.png"},
			want: &model.Attachment{Kind: model.AttachmentPNG, URL: "https://i.redd.it/pic.png"},
		},
		{
			name: "hosted gif",
			snap: harbor.PostSnapshot{IsMedia: true, URL: "https://i.redd.it/pic.gif"},
			want: &model.Attachment{Kind: model.AttachmentGIF, URL: "https://i.redd.it/pic.gif"},
		},
		{
			name: "hosted unknown extension falls back to url",
			snap: harbor.PostSnapshot{IsMedia: true, URL: "https://i.redd.it/gallery/1"},
			want: &model.Attachment{Kind: model.AttachmentURL, URL: "https://i.redd.it/gallery/1"},
		},
		{
			name: "outbound link",
			snap: harbor.PostSnapshot{URL: "https://example.com/a.png"},
			want: &model.Attachment{Kind: model.AttachmentURL, URL: "https://example.com/a.png"},
		},
		{
			name: "self post has none",
			snap: harbor.PostSnapshot{IsSelf: true, URL: "https://reddit.com/r/x/comments/1/"},
			want: nil,
		},
	}

	m := newTestMapper()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := tc.snap
			post := m.MapPost(&snap, "t2_x")
			if tc.want == nil {
				if post.Attachment != nil {
					t.Fatalf("expected no attachment, got %+v", post.Attachment)
				}
				return
			}
			if post.Attachment == nil {
				t.Fatalf("expected attachment %+v, got none", tc.want)
			}
			if *post.Attachment != *tc.want {
				t.Errorf("attachment = %+v, want %+v", *post.Attachment, *tc.want)
			}
		})
	}
}

func TestMapPostPoll(t *testing.T) {
	t.Parallel()

	m := newTestMapper()

	t.Run("open poll hides option counts", func(t *testing.T) {
		snap := &harbor.PostSnapshot{
			ID: "poll1",
			Poll: &harbor.PollData{
				TotalVotes:   120,
				VotingEndsAt: testNow.Add(24 * time.Hour),
				Options: []harbor.PollOption{
					{Text: "yes", Votes: intPtr(80)},
					{Text: "no"},
				},
			},
		}
		post := m.MapPost(snap, "t2_x")
		if post.Poll == nil {
			t.Fatal("expected poll")
		}
		if post.Poll.Closed {
			t.Error("poll ending tomorrow should be open")
		}
		if post.Poll.TotalVotes != 120 {
			t.Errorf("total votes = %d, want 120", post.Poll.TotalVotes)
		}
		for opt, count := range post.Poll.Options {
			if count != model.PollOptionUnavailable {
				t.Errorf("option %q = %q, want %q", opt, count, model.PollOptionUnavailable)
			}
		}
	})

	t.Run("closed poll reports counts", func(t *testing.T) {
		snap := &harbor.PostSnapshot{
			ID: "poll2",
			Poll: &harbor.PollData{
				TotalVotes:   10,
				VotingEndsAt: testNow.Add(-time.Hour),
				Options: []harbor.PollOption{
					{Text: "yes", Votes: intPtr(7)},
					{Text: "no", Votes: intPtr(3)},
				},
			},
		}
		post := m.MapPost(snap, "t2_x")
		if !post.Poll.Closed {
			t.Fatal("poll that ended an hour ago should be closed")
		}
		if got := post.Poll.Options["yes"]; got != "7" {
			t.Errorf("yes count = %q, want \"7\"", got)
		}
		if got := post.Poll.Options["no"]; got != "3" {
			t.Errorf("no count = %q, want \"3\"", got)
		}
	})

	t.Run("no poll", func(t *testing.T) {
		post := m.MapPost(&harbor.PostSnapshot{ID: "plain"}, "t2_x")
		if post.Poll != nil {
			t.Errorf("expected no poll, got %+v", post.Poll)
		}
	})
}

func TestMapPostAwards(t *testing.T) {
	t.Parallel()

	snap := &harbor.PostSnapshot{
		ID: "awarded",
		Awards: []harbor.AwardSnapshot{
			{Name: "Gold", Count: 2, CoinPrice: 500},
			{Name: "Silver", Count: 3, CoinPrice: 100},
		},
	}
	post := newTestMapper().MapPost(snap, "t2_x")
	if post.Awards.Count != 5 {
		t.Errorf("award count = %d, want 5", post.Awards.Count)
	}
	if post.Awards.TotalPrice != 1300 {
		t.Errorf("award total price = %d, want 1300", post.Awards.TotalPrice)
	}
	if got := post.Awards.List["Gold"]; got != (model.AwardEntry{Count: 2, CoinPrice: 500}) {
		t.Errorf("gold entry = %+v", got)
	}

	bare := newTestMapper().MapPost(&harbor.PostSnapshot{ID: "bare"}, "t2_x")
	if bare.Awards.Count != 0 || bare.Awards.TotalPrice != 0 || bare.Awards.List != nil {
		t.Errorf("unawarded post should have zero awards, got %+v", bare.Awards)
	}
}

func TestMapComment(t *testing.T) {
	t.Parallel()

	m := newTestMapper()

	t.Run("plain comment", func(t *testing.T) {
		snap := &harbor.CommentSnapshot{
			ID:        "c1",
			LinkID:    "t3_abc123",
			Subreddit: "science",
			ParentID:  "t3_abc123",
			CreatedAt: testNow,
			Body:      "an observation",
			Score:     5,
		}
		c := m.MapComment(snap, "t2_alice")
		if c.LinkID != "abc123" {
			t.Errorf("link id = %q, want prefix stripped", c.LinkID)
		}
		if c.Body == nil || *c.Body != "an observation" {
			t.Errorf("body = %v, want original text", c.Body)
		}
		if c.Removed != model.RemovalNone {
			t.Errorf("removal = %q, want none", c.Removed)
		}
		key := testNow.Format(model.SeriesTimeLayout)
		if got := c.Score[key]; got != 5 {
			t.Errorf("score series = %d, want 5", got)
		}
	})

	t.Run("deleted body becomes nil", func(t *testing.T) {
		c := m.MapComment(&harbor.CommentSnapshot{ID: "c2", LinkID: "t3_x", Body: "[deleted]"}, "deleted")
		if c.Body != nil {
			t.Errorf("body = %q, want nil", *c.Body)
		}
		if c.Removed != model.RemovalDeleted {
			t.Errorf("removal = %q, want deleted", c.Removed)
		}
	})

	t.Run("removed body becomes nil", func(t *testing.T) {
		c := m.MapComment(&harbor.CommentSnapshot{ID: "c3", LinkID: "t3_x", Body: "[removed]"}, "t2_bob")
		if c.Body != nil {
			t.Errorf("body = %q, want nil", *c.Body)
		}
		if c.Removed != model.RemovalRemoved {
			t.Errorf("removal = %q, want removed", c.Removed)
		}
	})
}
