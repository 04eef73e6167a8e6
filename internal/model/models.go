package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SeriesTimeLayout is the key format for time-indexed metric series.
// Second precision, UTC, matching the observation timestamps stored with
// every metric snapshot.
const SeriesTimeLayout = "2006-01-02T15:04:05"

// IntSeries is an append-only mapping from observation timestamp to an
// integer metric value. Keys use SeriesTimeLayout.
type IntSeries map[string]int

// Append records a new observation. Existing entries are never overwritten;
// an observation at an already-recorded timestamp is dropped.
func (s IntSeries) Append(at time.Time, value int) {
	key := at.UTC().Format(SeriesTimeLayout)
	if _, ok := s[key]; ok {
		return
	}
	s[key] = value
}

// FloatSeries is an append-only mapping from observation timestamp to a
// fractional metric value (e.g. upvote ratio).
type FloatSeries map[string]float64

// Append records a new observation, never overwriting prior entries.
func (s FloatSeries) Append(at time.Time, value float64) {
	key := at.UTC().Format(SeriesTimeLayout)
	if _, ok := s[key]; ok {
		return
	}
	s[key] = value
}

// AuthorStatus is the lifecycle state of an author row.
type AuthorStatus string

const (
	AuthorActive    AuthorStatus = "active"
	AuthorSuspended AuthorStatus = "suspended"
	AuthorDeleted   AuthorStatus = "deleted"
)

// SentinelDeleted is the author id recorded on posts and comments whose
// author no longer resolves. It is never persisted as an author row.
const SentinelDeleted = "deleted"

// SuspendedID synthesizes the author id used when a suspended account has
// no stable platform identity.
func SuspendedID(name string) string {
	return "suspended:" + name
}

// Karma is the named karma breakdown of an author. Comment and Link are
// unavailable for suspended accounts.
type Karma struct {
	Comment *int `json:"comment,omitempty"`
	Link    *int `json:"link,omitempty"`
	Awardee int  `json:"awardee"`
	Awarder int  `json:"awarder"`
	Total   int  `json:"total"`
}

// ModeratedCommunity describes one community an author moderates.
type ModeratedCommunity struct {
	DisplayName string `json:"display_name"`
	Subscribers int    `json:"subscribers"`
}

// Author is an identity observed on the platform.
type Author struct {
	AuthorID  string                        // stable id, or suspended:<name>
	Name      string                        // display name
	CreatedAt *time.Time                    // nil for suspended accounts
	Karma     Karma                         //
	IsGold    *bool                         // nil when unknown
	Moderates map[string]ModeratedCommunity // nil when not a moderator
	Trophies  []string                      // ordered trophy names, nil when none
	Status    AuthorStatus                  //
}

// AttachmentKind tags the media variant attached to a post.
type AttachmentKind string

const (
	AttachmentVideo AttachmentKind = "video"
	AttachmentJPG   AttachmentKind = "jpg"
	AttachmentPNG   AttachmentKind = "png"
	AttachmentGIF   AttachmentKind = "gif"
	AttachmentURL   AttachmentKind = "url"
)

// Attachment is a tagged media reference. A nil *Attachment means a self
// post with no attachment. It serializes as a single-key object, e.g.
// {"video": "https://..."}.
type Attachment struct {
	Kind AttachmentKind
	URL  string
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[AttachmentKind]string{a.Kind: a.URL})
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	var m map[AttachmentKind]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("attachment must have exactly one variant, got %d", len(m))
	}
	for kind, url := range m {
		a.Kind = kind
		a.URL = url
	}
	return nil
}

// PollOptionUnavailable marks option tallies that cannot be reported yet:
// per-option counts are only published once voting closes.
const PollOptionUnavailable = "unavailable"

// Poll captures a post's poll at observation time.
type Poll struct {
	TotalVotes   int               `json:"total_vote_count"`
	VotingEndsAt string            `json:"vote_ends_at"` // SeriesTimeLayout
	Options      map[string]string `json:"options"`      // option text -> count or "unavailable"
	Closed       bool              `json:"closed"`
}

// Flair holds the link-level and author-level labels of a post.
type Flair struct {
	Link   *string `json:"link"`
	Author *string `json:"author"`
}

// AwardEntry is one named award: received count and unit coin price.
type AwardEntry struct {
	Count     int `json:"count"`
	CoinPrice int `json:"coin_price"`
}

// Awards aggregates a post's awards. A post with no awards carries the
// zero-valued structure, not nil.
type Awards struct {
	Count      int                   `json:"total_awards_count"`
	TotalPrice int                   `json:"total_awards_price"`
	List       map[string]AwardEntry `json:"list,omitempty"`
}

// Post is a top-level content item. Title, body, attachment, poll and flair
// are fixed at insert; only the three metric series and the archived/removed
// flags are touched afterwards.
type Post struct {
	PostID      string
	AuthorID    string // may be a sentinel id
	CreatedAt   time.Time
	Title       string
	Body        string // optionally redacted
	Subreddit   string
	Permalink   string
	Attachment  *Attachment
	Poll        *Poll
	Flair       Flair
	Awards      Awards
	Score       IntSeries
	UpvoteRatio FloatSeries
	NumComments IntSeries
	Edited      bool
	Archived    bool
	Removed     bool
}

// RemovalReason records why a comment body is absent.
type RemovalReason string

const (
	RemovalNone    RemovalReason = ""
	RemovalDeleted RemovalReason = "deleted"
	RemovalRemoved RemovalReason = "removed"
)

// Comment is a reply within a post's tree. Insert-once, never mutated.
type Comment struct {
	CommentID string
	LinkID    string // owning post id, type prefix stripped
	Subreddit string
	ParentID  string // post or comment fullname
	AuthorID  string
	CreatedAt time.Time
	Body      *string // nil when deleted or removed
	Removed   RemovalReason
	Score     IntSeries
	Edited    bool
}

// Run records one CLI harvest operation, persisted for the history command.
type Run struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "success" or "error"
}

// ItemError is a durable per-item failure record written by the error sink.
type ItemError struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "post", "comment", "author"
	ItemID     string    `json:"item_id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
