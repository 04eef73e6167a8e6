package store_test

import (
	"testing"
	"time"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
	"harbor-go/internal/testutil"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAuthorRoundTrip(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	created := testNow.Add(-48 * time.Hour)
	gold := true
	in := &model.Author{
		AuthorID:  "t2_alice",
		Name:      "alice",
		CreatedAt: &created,
		Karma:     model.Karma{Awardee: 1, Awarder: 2, Total: 300},
		IsGold:    &gold,
		Moderates: map[string]model.ModeratedCommunity{
			"science": {DisplayName: "science", Subscribers: 1000},
		},
		Trophies: []string{"verified-email"},
		Status:   model.AuthorActive,
	}
	if err := s.InsertAuthor(in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	exists, err := s.AuthorExists("t2_alice")
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}
	if exists, _ := s.AuthorExists("t2_nobody"); exists {
		t.Error("unknown id should not exist")
	}

	id, err := s.FindAuthorIDByName("alice")
	if err != nil {
		t.Fatal(err)
	}
	if id != "t2_alice" {
		t.Errorf("id by name = %q", id)
	}
	if id, _ := s.FindAuthorIDByName("nobody"); id != "" {
		t.Errorf("unknown name returned %q", id)
	}

	page, err := s.AuthorsPage(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Fatalf("page size = %d", len(page))
	}
	got := page[0]
	if got.CreatedAt == nil || !got.CreatedAt.Equal(created) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, created)
	}
	if got.Karma.Total != 300 {
		t.Errorf("karma = %+v", got.Karma)
	}
	if got.IsGold == nil || !*got.IsGold {
		t.Error("gold flag lost")
	}
	if got.Moderates["science"].Subscribers != 1000 {
		t.Errorf("moderates = %+v", got.Moderates)
	}
	if len(got.Trophies) != 1 || got.Trophies[0] != "verified-email" {
		t.Errorf("trophies = %v", got.Trophies)
	}
}

func TestSuspendedAuthor(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	// Reduced row: no creation time, no gold flag, no communities.
	in := &model.Author{
		AuthorID: model.SuspendedID("bob"),
		Name:     "bob",
		Karma:    model.Karma{Total: 5},
		Status:   model.AuthorSuspended,
	}
	if err := s.InsertAuthor(in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	page, err := s.AuthorsPage(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := page[0]
	if got.CreatedAt != nil || got.IsGold != nil || got.Moderates != nil || got.Trophies != nil {
		t.Errorf("reduced row grew fields: %+v", got)
	}

	if err := s.MarkAuthorSuspended(got.AuthorID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkAuthorSuspended("t2_missing"); err == nil {
		t.Error("expected error for unknown author")
	}
}

func newPost(id string, createdAt time.Time) *model.Post {
	p := &model.Post{
		PostID:      id,
		AuthorID:    "t2_alice",
		CreatedAt:   createdAt,
		Title:       "title",
		Body:        "body",
		Subreddit:   "science",
		Permalink:   "/r/science/comments/" + id + "/",
		Flair:       model.Flair{},
		Score:       model.IntSeries{},
		UpvoteRatio: model.FloatSeries{},
		NumComments: model.IntSeries{},
	}
	p.Score.Append(createdAt, 1)
	p.UpvoteRatio.Append(createdAt, 1.0)
	p.NumComments.Append(createdAt, 0)
	return p
}

func TestPostRoundTrip(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	link := "Discussion"
	in := newPost("p1", testNow)
	in.Attachment = &model.Attachment{Kind: model.AttachmentJPG, URL: "https://i.redd.it/x.jpg"}
	in.Poll = &model.Poll{
		TotalVotes:   10,
		VotingEndsAt: testNow.Add(time.Hour).Format(model.SeriesTimeLayout),
		Options:      map[string]string{"yes": model.PollOptionUnavailable},
	}
	in.Flair = model.Flair{Link: &link}
	in.Awards = model.Awards{Count: 1, TotalPrice: 500, List: map[string]model.AwardEntry{
		"Gold": {Count: 1, CoinPrice: 500},
	}}
	in.Edited = true

	if err := s.InsertPost(in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertPost(in); err == nil {
		t.Error("duplicate insert should fail")
	}

	page, err := s.PostsPage(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Fatalf("page size = %d", len(page))
	}
	got := page[0]
	if got.Attachment == nil || got.Attachment.Kind != model.AttachmentJPG {
		t.Errorf("attachment = %+v", got.Attachment)
	}
	if got.Poll == nil || got.Poll.Options["yes"] != model.PollOptionUnavailable {
		t.Errorf("poll = %+v", got.Poll)
	}
	if got.Flair.Link == nil || *got.Flair.Link != "Discussion" {
		t.Errorf("flair = %+v", got.Flair)
	}
	if got.Awards.TotalPrice != 500 {
		t.Errorf("awards = %+v", got.Awards)
	}
	if !got.Edited {
		t.Error("edited flag lost")
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("created at = %v", got.CreatedAt)
	}
}

func TestAppendPostMetrics(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	if err := s.InsertPost(newPost("p1", testNow)); err != nil {
		t.Fatal(err)
	}

	later := testNow.Add(time.Hour)
	m := harbor.PostMetrics{Score: 50, UpvoteRatio: 0.8, NumComments: 9}
	if err := s.AppendPostMetrics("p1", later, m); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Same timestamp again: series must not change.
	if err := s.AppendPostMetrics("p1", later, harbor.PostMetrics{Score: 999}); err != nil {
		t.Fatal(err)
	}

	page, _ := s.PostsPage(0, 10)
	got := page[0]
	if len(got.Score) != 2 {
		t.Fatalf("score samples = %d, want 2", len(got.Score))
	}
	key := later.Format(model.SeriesTimeLayout)
	if got.Score[key] != 50 {
		t.Errorf("score at %s = %d, want first observation kept", key, got.Score[key])
	}
	if got.Archived {
		t.Error("post should still be live")
	}

	if err := s.AppendPostMetrics("p1", later.Add(time.Hour), harbor.PostMetrics{Archived: true}); err != nil {
		t.Fatal(err)
	}
	page, _ = s.PostsPage(0, 10)
	if !page[0].Archived {
		t.Error("archived flag not persisted")
	}

	if err := s.AppendPostMetrics("missing", later, m); err == nil {
		t.Error("expected error for unknown post")
	}
}

func TestActivePostPaging(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	oldest := newPost("older", testNow.Add(-2*time.Hour))
	middle := newPost("middle", testNow.Add(-time.Hour))
	middle.Removed = true
	newest := newPost("newest", testNow)
	newest.Archived = true
	for _, p := range []*model.Post{newest, oldest, middle} {
		if err := s.InsertPost(p); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.CountActivePosts()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("active = %d, want 1", n)
	}
	if total, _ := s.CountPosts(); total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	ids, err := s.ActivePostIDs(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "older" {
		t.Errorf("ids = %v, want the live post only", ids)
	}
	if ids, _ := s.ActivePostIDs(1, 10); len(ids) != 0 {
		t.Errorf("offset past end returned %v", ids)
	}
}

func TestActivePostOrdering(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	for _, p := range []*model.Post{
		newPost("a", testNow.Add(-2*time.Hour)),
		newPost("c", testNow),
		newPost("b", testNow.Add(-time.Hour)),
	} {
		if err := s.InsertPost(p); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.ActivePostIDs(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c", "b", "a"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want newest first %v", ids, want)
		}
	}

	// Paging walks the same order.
	if page, _ := s.ActivePostIDs(1, 1); len(page) != 1 || page[0] != "b" {
		t.Errorf("page = %v, want [b]", page)
	}
}

func TestCommentRoundTrip(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	body := "a reply"
	in := &model.Comment{
		CommentID: "c1",
		LinkID:    "p1",
		Subreddit: "science",
		ParentID:  "t3_p1",
		AuthorID:  "t2_alice",
		CreatedAt: testNow,
		Body:      &body,
		Score:     model.IntSeries{},
	}
	in.Score.Append(testNow, 3)
	gone := &model.Comment{
		CommentID: "c2",
		LinkID:    "p1",
		Subreddit: "science",
		ParentID:  "t1_c1",
		AuthorID:  "deleted",
		CreatedAt: testNow.Add(time.Minute),
		Removed:   model.RemovalDeleted,
		Score:     model.IntSeries{},
	}
	for _, c := range []*model.Comment{in, gone} {
		if err := s.InsertComment(c); err != nil {
			t.Fatalf("insert %s: %v", c.CommentID, err)
		}
	}

	if ok, _ := s.CommentExists("c1"); !ok {
		t.Error("c1 should exist")
	}
	if ok, _ := s.HasCommentsForPost("p1"); !ok {
		t.Error("p1 should have comments")
	}
	if ok, _ := s.HasCommentsForPost("p2"); ok {
		t.Error("p2 should have none")
	}
	if n, _ := s.CountComments(); n != 2 {
		t.Errorf("count = %d", n)
	}

	page, err := s.CommentsPage(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d", len(page))
	}
	if page[0].Body == nil || *page[0].Body != "a reply" {
		t.Errorf("body = %v", page[0].Body)
	}
	if page[1].Body != nil {
		t.Errorf("deleted comment body = %q, want nil", *page[1].Body)
	}
	if page[1].Removed != model.RemovalDeleted {
		t.Errorf("removal = %q", page[1].Removed)
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	first, err := s.CreateRun("collect-posts", "r/science hot 100", testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != "running" {
		t.Errorf("status = %q", first.Status)
	}
	second, err := s.CreateRun("sync", "", testNow.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.FinishRun(first.ID, "success", testNow.Add(2*time.Minute)); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	// Newest first.
	if runs[0].ID != second.ID {
		t.Errorf("first listed = %d, want most recent", runs[0].ID)
	}
	if runs[1].Status != "success" || runs[1].FinishedAt == nil {
		t.Errorf("finished run = %+v", runs[1])
	}

	if runs, _ := s.ListRuns(1); len(runs) != 1 {
		t.Errorf("limit ignored: %d rows", len(runs))
	}
}
