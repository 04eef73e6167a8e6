package harbor

import (
	"strconv"
	"strings"

	"harbor-go/internal/model"
)

// Body sentinels the platform substitutes for comments that were taken
// down. They are markers, not content, and are never stored as bodies.
const (
	bodyDeleted = "[deleted]"
	bodyRemoved = "[removed]"
)

// Mapper turns raw source snapshots into storable records. It is pure
// apart from the clock, which fixes the observation timestamp of the
// initial metric samples and decides whether a poll has closed.
type Mapper struct {
	clock Clock
}

func NewMapper(clock Clock) *Mapper {
	return &Mapper{clock: clock}
}

// MapPost builds the insert-time record for a post. authorID is the
// already-resolved author identity (possibly a sentinel). The body is
// carried as-is; redaction happens after mapping.
func (m *Mapper) MapPost(s *PostSnapshot, authorID string) *model.Post {
	now := m.clock.Now()
	p := &model.Post{
		PostID:     s.ID,
		AuthorID:   authorID,
		CreatedAt:  s.CreatedAt,
		Title:      s.Title,
		Body:       s.Body,
		Subreddit:  s.Subreddit,
		Permalink:  s.Permalink,
		Attachment: mapAttachment(s),
		Poll:       m.mapPoll(s.Poll),
		Flair: model.Flair{
			Link:   s.LinkFlair,
			Author: s.AuthorFlair,
		},
		Awards:      mapAwards(s.Awards),
		Score:       model.IntSeries{},
		UpvoteRatio: model.FloatSeries{},
		NumComments: model.IntSeries{},
		Edited:      s.Edited,
		Archived:    s.Archived,
		Removed:     s.RemovedCategory != "",
	}
	p.Score.Append(now, s.Score)
	p.UpvoteRatio.Append(now, s.UpvoteRatio)
	p.NumComments.Append(now, s.NumComments)
	return p
}

// MapComment builds the record for a comment. Sentinel bodies are
// translated into a nil body plus a removal reason so that redaction
// and export never see the marker strings.
func (m *Mapper) MapComment(s *CommentSnapshot, authorID string) *model.Comment {
	c := &model.Comment{
		CommentID: s.ID,
		LinkID:    strings.TrimPrefix(s.LinkID, "t3_"),
		Subreddit: s.Subreddit,
		ParentID:  s.ParentID,
		AuthorID:  authorID,
		CreatedAt: s.CreatedAt,
		Score:     model.IntSeries{},
		Edited:    s.Edited,
	}
	c.Score.Append(m.clock.Now(), s.Score)
	switch s.Body {
	case bodyDeleted:
		c.Removed = model.RemovalDeleted
	case bodyRemoved:
		c.Removed = model.RemovalRemoved
	default:
		body := s.Body
		c.Body = &body
	}
	return c
}

// mapAttachment applies the media precedence: platform-hosted media is
// typed by video flag then image extension, anything else keeps its
// outbound link, and self posts carry no attachment at all.
func mapAttachment(s *PostSnapshot) *model.Attachment {
	if s.IsMedia {
		if s.IsVideo {
			return &model.Attachment{Kind: model.AttachmentVideo, URL: s.URL}
		}
		lower := strings.ToLower(s.URL)
		switch {
		case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
			return &model.Attachment{Kind: model.AttachmentJPG, URL: s.URL}
		case strings.HasSuffix(lower, ".png"):
			return &model.Attachment{Kind: model.AttachmentPNG, URL: s.URL}
		case strings.HasSuffix(lower, ".gif"):
			return &model.Attachment{Kind: model.AttachmentGIF, URL: s.URL}
		}
		return &model.Attachment{Kind: model.AttachmentURL, URL: s.URL}
	}
	if s.IsSelf || s.URL == "" {
		return nil
	}
	return &model.Attachment{Kind: model.AttachmentURL, URL: s.URL}
}

// mapPoll snapshots a poll. Per-option tallies are only published once
// voting has ended, so open polls record every option as unavailable.
func (m *Mapper) mapPoll(p *PollData) *model.Poll {
	if p == nil {
		return nil
	}
	closed := p.VotingEndsAt.Before(m.clock.Now())
	out := &model.Poll{
		TotalVotes:   p.TotalVotes,
		VotingEndsAt: p.VotingEndsAt.UTC().Format(model.SeriesTimeLayout),
		Options:      make(map[string]string, len(p.Options)),
		Closed:       closed,
	}
	for _, opt := range p.Options {
		if closed && opt.Votes != nil {
			out.Options[opt.Text] = strconv.Itoa(*opt.Votes)
		} else {
			out.Options[opt.Text] = model.PollOptionUnavailable
		}
	}
	return out
}

// mapAwards totals the award list: overall count and the combined coin
// price across all received awards.
func mapAwards(list []AwardSnapshot) model.Awards {
	out := model.Awards{}
	if len(list) == 0 {
		return out
	}
	out.List = make(map[string]model.AwardEntry, len(list))
	for _, a := range list {
		out.Count += a.Count
		out.TotalPrice += a.Count * a.CoinPrice
		out.List[a.Name] = model.AwardEntry{Count: a.Count, CoinPrice: a.CoinPrice}
	}
	return out
}
