// Package reddit implements harbor.ContentSource against the public
// JSON endpoints. No credentials are needed; the tradeoff is a strict
// request budget, which the client enforces with a token bucket.
package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
)

const (
	defaultBaseURL = "https://www.reddit.com"
	// pageSize is the per-request listing cap the endpoints honor.
	pageSize = 100
	// defaultPerMinute is the public-endpoint budget: 30 requests a
	// minute, i.e. one every two seconds.
	defaultPerMinute = 30
)

var subredditRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)

// Client talks to the platform's public JSON API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
}

var _ harbor.ContentSource = (*Client)(nil)

// NewClient builds a client. userAgent is required by the platform's
// access rules. requestsPerMinute <= 0 uses the default budget;
// baseURL is overridable for tests.
func NewClient(userAgent string, requestsPerMinute int, baseURL string) (*Client, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("user agent is required")
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultPerMinute
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		userAgent:  userAgent,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Wire types. Everything arrives as kind-tagged "things".

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Children []thing `json:"children"`
	After    string  `json:"after"`
}

type postData struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Author              string          `json:"author"`
	Title               string          `json:"title"`
	Selftext            string          `json:"selftext"`
	Subreddit           string          `json:"subreddit"`
	Permalink           string          `json:"permalink"`
	URL                 string          `json:"url"`
	CreatedUTC          float64         `json:"created_utc"`
	IsRedditMediaDomain bool            `json:"is_reddit_media_domain"`
	IsVideo             bool            `json:"is_video"`
	IsSelf              bool            `json:"is_self"`
	LinkFlairText       *string         `json:"link_flair_text"`
	AuthorFlairText     *string         `json:"author_flair_text"`
	Score               int             `json:"score"`
	UpvoteRatio         float64         `json:"upvote_ratio"`
	NumComments         int             `json:"num_comments"`
	Edited              json.RawMessage `json:"edited"`
	Archived            bool            `json:"archived"`
	RemovedByCategory   string          `json:"removed_by_category"`
	PollData            *pollData       `json:"poll_data"`
	AllAwardings        []awarding      `json:"all_awardings"`
}

type pollData struct {
	TotalVoteCount     int     `json:"total_vote_count"`
	VotingEndTimestamp float64 `json:"voting_end_timestamp"` // milliseconds
	Options            []struct {
		Text      string `json:"text"`
		VoteCount *int   `json:"vote_count"`
	} `json:"options"`
}

type awarding struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	CoinPrice int    `json:"coin_price"`
}

type commentData struct {
	ID         string          `json:"id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Subreddit  string          `json:"subreddit"`
	LinkID     string          `json:"link_id"`
	ParentID   string          `json:"parent_id"`
	CreatedUTC float64         `json:"created_utc"`
	Score      int             `json:"score"`
	Edited     json.RawMessage `json:"edited"`
	Replies    json.RawMessage `json:"replies"`
}

type moreData struct {
	Children []string `json:"children"`
}

type aboutData struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CreatedUTC   float64 `json:"created_utc"`
	IsSuspended  bool    `json:"is_suspended"`
	IsGold       bool    `json:"is_gold"`
	CommentKarma int     `json:"comment_karma"`
	LinkKarma    int     `json:"link_karma"`
	AwardeeKarma int     `json:"awardee_karma"`
	AwarderKarma int     `json:"awarder_karma"`
	TotalKarma   int     `json:"total_karma"`
}

type trophyList struct {
	Data struct {
		Trophies []struct {
			Data struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"trophies"`
	} `json:"data"`
}

type moderatedList struct {
	Data []struct {
		SrDisplayName string `json:"sr_display_name"`
		Subscribers   int    `json:"subscribers"`
	} `json:"data"`
}

// Listings

func (c *Client) SubredditPosts(ctx context.Context, subreddit string, sort harbor.SortOrder, limit int) ([]*harbor.PostSnapshot, error) {
	if !subredditRe.MatchString(subreddit) {
		return nil, fmt.Errorf("invalid subreddit name %q", subreddit)
	}
	path := fmt.Sprintf("/r/%s/%s.json", subreddit, sort)
	return c.postListing(ctx, path, url.Values{}, limit)
}

func (c *Client) SearchPosts(ctx context.Context, subreddit, query string, sort harbor.SortOrder, limit int) ([]*harbor.PostSnapshot, error) {
	if !subredditRe.MatchString(subreddit) {
		return nil, fmt.Errorf("invalid subreddit name %q", subreddit)
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "1")
	q.Set("sort", string(sort))
	return c.postListing(ctx, fmt.Sprintf("/r/%s/search.json", subreddit), q, limit)
}

func (c *Client) UserPosts(ctx context.Context, username string, sort harbor.SortOrder, limit int) ([]*harbor.PostSnapshot, error) {
	q := url.Values{}
	q.Set("sort", string(sort))
	return c.postListing(ctx, fmt.Sprintf("/user/%s/submitted.json", url.PathEscape(username)), q, limit)
}

func (c *Client) UserComments(ctx context.Context, username string, sort harbor.SortOrder, limit int) ([]*harbor.CommentSnapshot, error) {
	q := url.Values{}
	q.Set("sort", string(sort))
	path := fmt.Sprintf("/user/%s/comments.json", url.PathEscape(username))

	var out []*harbor.CommentSnapshot
	after := ""
	for limit <= 0 || len(out) < limit {
		q.Set("limit", fmt.Sprint(pageSize))
		if after != "" {
			q.Set("after", after)
		}
		var t thing
		if err := c.getJSON(ctx, path, q, &t); err != nil {
			return nil, err
		}
		var l listing
		if err := json.Unmarshal(t.Data, &l); err != nil {
			return nil, fmt.Errorf("decoding comment listing: %w", err)
		}
		for _, child := range l.Children {
			if child.Kind != "t1" {
				continue
			}
			var d commentData
			if err := json.Unmarshal(child.Data, &d); err != nil {
				return nil, fmt.Errorf("decoding comment: %w", err)
			}
			out = append(out, commentSnapshot(&d))
		}
		if l.After == "" || len(l.Children) == 0 {
			break
		}
		after = l.After
	}
	return clipComments(out, limit), nil
}

// PostComments walks the full tree of a post. Deferred ("load more")
// nodes are expanded breadth-first until the budget runs out.
func (c *Client) PostComments(ctx context.Context, postID string, expand int) ([]*harbor.CommentSnapshot, error) {
	q := url.Values{}
	q.Set("limit", "500")
	var pages []json.RawMessage
	if err := c.getJSON(ctx, fmt.Sprintf("/comments/%s.json", url.PathEscape(postID)), q, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, fmt.Errorf("unexpected comment page shape for %s", postID)
	}
	var t thing
	if err := json.Unmarshal(pages[1], &t); err != nil {
		return nil, fmt.Errorf("decoding comment tree: %w", err)
	}
	var tree listing
	if err := json.Unmarshal(t.Data, &tree); err != nil {
		return nil, fmt.Errorf("decoding comment tree: %w", err)
	}

	var (
		out      []*harbor.CommentSnapshot
		deferred []string
	)
	if err := walkTree(tree.Children, &out, &deferred); err != nil {
		return nil, err
	}

	expanded := 0
	for len(deferred) > 0 && (expand == harbor.ExpandAll || expanded < expand) {
		batch := deferred
		if len(batch) > pageSize {
			batch = batch[:pageSize]
		}
		deferred = deferred[len(batch):]
		more, err := c.moreChildren(ctx, "t3_"+postID, batch)
		if err != nil {
			return nil, err
		}
		if err := walkTree(more, &out, &deferred); err != nil {
			return nil, err
		}
		expanded++
	}
	return out, nil
}

func (c *Client) moreChildren(ctx context.Context, linkFullname string, ids []string) ([]thing, error) {
	q := url.Values{}
	q.Set("api_type", "json")
	q.Set("link_id", linkFullname)
	q.Set("children", strings.Join(ids, ","))
	var resp struct {
		JSON struct {
			Data struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.getJSON(ctx, "/api/morechildren.json", q, &resp); err != nil {
		return nil, err
	}
	return resp.JSON.Data.Things, nil
}

// walkTree flattens consecutive tree levels, collecting comments and
// the ids of deferred nodes.
func walkTree(children []thing, out *[]*harbor.CommentSnapshot, deferred *[]string) error {
	for _, child := range children {
		switch child.Kind {
		case "t1":
			var d commentData
			if err := json.Unmarshal(child.Data, &d); err != nil {
				return fmt.Errorf("decoding comment: %w", err)
			}
			*out = append(*out, commentSnapshot(&d))
			// Replies is "" (a JSON string) on leaves.
			if len(d.Replies) == 0 || bytes.HasPrefix(d.Replies, []byte(`"`)) {
				continue
			}
			var rt thing
			if err := json.Unmarshal(d.Replies, &rt); err != nil {
				return fmt.Errorf("decoding replies of %s: %w", d.ID, err)
			}
			var rl listing
			if err := json.Unmarshal(rt.Data, &rl); err != nil {
				return fmt.Errorf("decoding replies of %s: %w", d.ID, err)
			}
			if err := walkTree(rl.Children, out, deferred); err != nil {
				return err
			}
		case "more":
			var d moreData
			if err := json.Unmarshal(child.Data, &d); err != nil {
				return fmt.Errorf("decoding deferred node: %w", err)
			}
			*deferred = append(*deferred, d.Children...)
		}
	}
	return nil
}

// Lookups

func (c *Client) AuthorProfile(ctx context.Context, name string) (*harbor.AuthorProfile, error) {
	var t thing
	if err := c.getJSON(ctx, fmt.Sprintf("/user/%s/about.json", url.PathEscape(name)), nil, &t); err != nil {
		return nil, err
	}
	var d aboutData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return nil, fmt.Errorf("decoding profile of %s: %w", name, err)
	}

	if d.IsSuspended {
		// Suspended profiles carry nothing but the name and the
		// award karma split.
		return &harbor.AuthorProfile{
			State: harbor.AuthorSuspended,
			Name:  d.Name,
			Karma: model.Karma{
				Awardee: d.AwardeeKarma,
				Awarder: d.AwarderKarma,
				Total:   d.TotalKarma,
			},
		}, nil
	}

	created := time.Unix(int64(d.CreatedUTC), 0).UTC()
	gold := d.IsGold
	comment := d.CommentKarma
	link := d.LinkKarma
	profile := &harbor.AuthorProfile{
		State:     harbor.AuthorActive,
		ID:        d.ID,
		Name:      d.Name,
		CreatedAt: &created,
		IsGold:    &gold,
		Karma: model.Karma{
			Comment: &comment,
			Link:    &link,
			Awardee: d.AwardeeKarma,
			Awarder: d.AwarderKarma,
			Total:   d.TotalKarma,
		},
	}

	var trophies trophyList
	if err := c.getJSON(ctx, fmt.Sprintf("/user/%s/trophies.json", url.PathEscape(name)), nil, &trophies); err != nil {
		return nil, fmt.Errorf("fetching trophies of %s: %w", name, err)
	}
	for _, tr := range trophies.Data.Trophies {
		profile.Trophies = append(profile.Trophies, tr.Data.Name)
	}

	var moderated moderatedList
	if err := c.getJSON(ctx, fmt.Sprintf("/user/%s/moderated_subreddits.json", url.PathEscape(name)), nil, &moderated); err != nil {
		return nil, fmt.Errorf("fetching moderated communities of %s: %w", name, err)
	}
	if len(moderated.Data) > 0 {
		profile.Moderates = make(map[string]model.ModeratedCommunity, len(moderated.Data))
		for _, m := range moderated.Data {
			profile.Moderates[m.SrDisplayName] = model.ModeratedCommunity{
				DisplayName: m.SrDisplayName,
				Subscribers: m.Subscribers,
			}
		}
	}
	return profile, nil
}

func (c *Client) PostMetrics(ctx context.Context, postID string) (*harbor.PostMetrics, error) {
	q := url.Values{}
	q.Set("id", "t3_"+postID)
	var t thing
	if err := c.getJSON(ctx, "/api/info.json", q, &t); err != nil {
		return nil, err
	}
	var l listing
	if err := json.Unmarshal(t.Data, &l); err != nil {
		return nil, fmt.Errorf("decoding info listing: %w", err)
	}
	if len(l.Children) == 0 {
		return nil, fmt.Errorf("post %s not found", postID)
	}
	var d postData
	if err := json.Unmarshal(l.Children[0].Data, &d); err != nil {
		return nil, fmt.Errorf("decoding post %s: %w", postID, err)
	}
	return &harbor.PostMetrics{
		Score:       d.Score,
		UpvoteRatio: d.UpvoteRatio,
		NumComments: d.NumComments,
		Archived:    d.Archived,
	}, nil
}

// Internals

func (c *Client) postListing(ctx context.Context, path string, q url.Values, limit int) ([]*harbor.PostSnapshot, error) {
	var out []*harbor.PostSnapshot
	after := ""
	for limit <= 0 || len(out) < limit {
		q.Set("limit", fmt.Sprint(pageSize))
		if after != "" {
			q.Set("after", after)
		}
		var t thing
		if err := c.getJSON(ctx, path, q, &t); err != nil {
			return nil, err
		}
		var l listing
		if err := json.Unmarshal(t.Data, &l); err != nil {
			return nil, fmt.Errorf("decoding post listing: %w", err)
		}
		for _, child := range l.Children {
			if child.Kind != "t3" {
				continue
			}
			var d postData
			if err := json.Unmarshal(child.Data, &d); err != nil {
				return nil, fmt.Errorf("decoding post: %w", err)
			}
			out = append(out, postSnapshot(&d))
		}
		if l.After == "" || len(l.Children) == 0 {
			break
		}
		after = l.After
	}
	return clipPosts(out, limit), nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("raw_json", "1")
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

func postSnapshot(d *postData) *harbor.PostSnapshot {
	s := &harbor.PostSnapshot{
		ID:              d.ID,
		Author:          authorRef(d.Author),
		CreatedAt:       time.Unix(int64(d.CreatedUTC), 0).UTC(),
		Title:           d.Title,
		Body:            d.Selftext,
		Subreddit:       d.Subreddit,
		Permalink:       d.Permalink,
		URL:             d.URL,
		IsMedia:         d.IsRedditMediaDomain,
		IsVideo:         d.IsVideo,
		IsSelf:          d.IsSelf,
		LinkFlair:       d.LinkFlairText,
		AuthorFlair:     d.AuthorFlairText,
		Score:           d.Score,
		UpvoteRatio:     d.UpvoteRatio,
		NumComments:     d.NumComments,
		Edited:          editedFlag(d.Edited),
		Archived:        d.Archived,
		RemovedCategory: d.RemovedByCategory,
	}
	if d.PollData != nil {
		p := &harbor.PollData{
			TotalVotes:   d.PollData.TotalVoteCount,
			VotingEndsAt: time.UnixMilli(int64(d.PollData.VotingEndTimestamp)).UTC(),
		}
		for _, opt := range d.PollData.Options {
			p.Options = append(p.Options, harbor.PollOption{Text: opt.Text, Votes: opt.VoteCount})
		}
		s.Poll = p
	}
	for _, a := range d.AllAwardings {
		s.Awards = append(s.Awards, harbor.AwardSnapshot{
			Name:      a.Name,
			Count:     a.Count,
			CoinPrice: a.CoinPrice,
		})
	}
	return s
}

func commentSnapshot(d *commentData) *harbor.CommentSnapshot {
	return &harbor.CommentSnapshot{
		ID:        d.ID,
		LinkID:    d.LinkID,
		Subreddit: d.Subreddit,
		ParentID:  d.ParentID,
		Author:    authorRef(d.Author),
		CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		Body:      d.Body,
		Score:     d.Score,
		Edited:    editedFlag(d.Edited),
	}
}

func authorRef(author string) harbor.AuthorRef {
	if author == "" || author == "[deleted]" {
		return harbor.AuthorRef{Deleted: true}
	}
	return harbor.AuthorRef{Name: author}
}

// editedFlag reports whether the wire value is anything other than the
// literal false the API sends for never-edited items. Edits carry the
// edit time instead.
func editedFlag(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("false"))
}

func clipPosts(posts []*harbor.PostSnapshot, limit int) []*harbor.PostSnapshot {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}

func clipComments(comments []*harbor.CommentSnapshot, limit int) []*harbor.CommentSnapshot {
	if limit > 0 && len(comments) > limit {
		return comments[:limit]
	}
	return comments
}
