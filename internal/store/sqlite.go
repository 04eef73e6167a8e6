package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Tables names the four record tables. Queries are built against these
// names; the migration set creates the canonical ones.
type Tables struct {
	Authors  string
	Posts    string
	Comments string
	Runs     string
}

// DefaultTables matches the names the migrations create.
func DefaultTables() Tables {
	return Tables{
		Authors:  "authors",
		Posts:    "posts",
		Comments: "comments",
		Runs:     "harvest_runs",
	}
}

// SQLite implements harbor.Store on a SQLite database.
type SQLite struct {
	db   *sql.DB
	t    Tables
	path string
}

var _ harbor.Store = (*SQLite)(nil)

// NewSQLite opens (or creates) a database file. path can be ":memory:"
// for an in-memory database.
func NewSQLite(path string, tables Tables) (*SQLite, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db, t: tables, path: path}, nil
}

// NewSQLiteFromDB wraps an existing connection. The caller is
// responsible for ensuring the connection is properly configured.
func NewSQLiteFromDB(db *sql.DB, tables Tables) *SQLite {
	return &SQLite{db: db, t: tables}
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// DB exposes the underlying connection for migrations.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error { return s.db.Close() }

// Authors

func (s *SQLite) AuthorExists(id string) (bool, error) {
	return s.exists(fmt.Sprintf("SELECT 1 FROM %s WHERE author_id = ?", s.t.Authors), id)
}

func (s *SQLite) FindAuthorIDByName(name string) (string, error) {
	var id string
	query := fmt.Sprintf("SELECT author_id FROM %s WHERE name = ? LIMIT 1", s.t.Authors)
	err := s.db.QueryRow(query, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding author by name: %w", err)
	}
	return id, nil
}

func (s *SQLite) InsertAuthor(a *model.Author) error {
	karma, err := json.Marshal(a.Karma)
	if err != nil {
		return fmt.Errorf("encoding karma: %w", err)
	}
	moderates, err := marshalNullable(a.Moderates != nil, a.Moderates)
	if err != nil {
		return fmt.Errorf("encoding moderated communities: %w", err)
	}
	trophies, err := marshalNullable(a.Trophies != nil, a.Trophies)
	if err != nil {
		return fmt.Errorf("encoding trophies: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(author_id, name, created_at, karma, is_gold, moderates, trophies, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.t.Authors)
	_, err = s.db.Exec(query,
		a.AuthorID, a.Name, nullableTime(a.CreatedAt), string(karma),
		nullableBool(a.IsGold), moderates, trophies, string(a.Status))
	if err != nil {
		return fmt.Errorf("inserting author %s: %w", a.AuthorID, err)
	}
	return nil
}

func (s *SQLite) MarkAuthorSuspended(id string) error {
	query := fmt.Sprintf("UPDATE %s SET status = ? WHERE author_id = ?", s.t.Authors)
	res, err := s.db.Exec(query, string(model.AuthorSuspended), id)
	if err != nil {
		return fmt.Errorf("marking author %s suspended: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking author %s suspended: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("author %s not found", id)
	}
	return nil
}

func (s *SQLite) CountAuthors() (int, error) {
	return s.count(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.t.Authors))
}

func (s *SQLite) AuthorsPage(offset, limit int) ([]*model.Author, error) {
	query := fmt.Sprintf(`SELECT author_id, name, created_at, karma, is_gold, moderates, trophies, status
		FROM %s ORDER BY author_id LIMIT ? OFFSET ?`, s.t.Authors)
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("paging authors: %w", err)
	}
	defer rows.Close()

	var out []*model.Author
	for rows.Next() {
		var (
			a         model.Author
			createdAt sql.NullTime
			karma     string
			isGold    sql.NullBool
			moderates sql.NullString
			trophies  sql.NullString
			status    string
		)
		if err := rows.Scan(&a.AuthorID, &a.Name, &createdAt, &karma, &isGold, &moderates, &trophies, &status); err != nil {
			return nil, fmt.Errorf("scanning author: %w", err)
		}
		if createdAt.Valid {
			t := createdAt.Time
			a.CreatedAt = &t
		}
		if err := json.Unmarshal([]byte(karma), &a.Karma); err != nil {
			return nil, fmt.Errorf("decoding karma of %s: %w", a.AuthorID, err)
		}
		if isGold.Valid {
			v := isGold.Bool
			a.IsGold = &v
		}
		if moderates.Valid {
			if err := json.Unmarshal([]byte(moderates.String), &a.Moderates); err != nil {
				return nil, fmt.Errorf("decoding moderated communities of %s: %w", a.AuthorID, err)
			}
		}
		if trophies.Valid {
			if err := json.Unmarshal([]byte(trophies.String), &a.Trophies); err != nil {
				return nil, fmt.Errorf("decoding trophies of %s: %w", a.AuthorID, err)
			}
		}
		a.Status = model.AuthorStatus(status)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Posts

func (s *SQLite) PostExists(id string) (bool, error) {
	return s.exists(fmt.Sprintf("SELECT 1 FROM %s WHERE post_id = ?", s.t.Posts), id)
}

func (s *SQLite) InsertPost(p *model.Post) error {
	attachment, err := marshalNullable(p.Attachment != nil, p.Attachment)
	if err != nil {
		return fmt.Errorf("encoding attachment: %w", err)
	}
	poll, err := marshalNullable(p.Poll != nil, p.Poll)
	if err != nil {
		return fmt.Errorf("encoding poll: %w", err)
	}
	flair, err := json.Marshal(p.Flair)
	if err != nil {
		return fmt.Errorf("encoding flair: %w", err)
	}
	awards, err := json.Marshal(p.Awards)
	if err != nil {
		return fmt.Errorf("encoding awards: %w", err)
	}
	score, err := json.Marshal(p.Score)
	if err != nil {
		return fmt.Errorf("encoding score series: %w", err)
	}
	ratio, err := json.Marshal(p.UpvoteRatio)
	if err != nil {
		return fmt.Errorf("encoding upvote ratio series: %w", err)
	}
	comments, err := json.Marshal(p.NumComments)
	if err != nil {
		return fmt.Errorf("encoding comment count series: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(post_id, author_id, created_at, title, body, subreddit, permalink,
		 attachment, poll, flair, awards, score, upvote_ratio, num_comments,
		 edited, archived, removed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.t.Posts)
	_, err = s.db.Exec(query,
		p.PostID, p.AuthorID, p.CreatedAt, p.Title, p.Body, p.Subreddit, p.Permalink,
		attachment, poll, string(flair), string(awards), string(score), string(ratio),
		string(comments), p.Edited, p.Archived, p.Removed)
	if err != nil {
		return fmt.Errorf("inserting post %s: %w", p.PostID, err)
	}
	return nil
}

func (s *SQLite) CountPosts() (int, error) {
	return s.count(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.t.Posts))
}

func (s *SQLite) CountActivePosts() (int, error) {
	return s.count(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE archived = 0 AND removed = 0", s.t.Posts))
}

func (s *SQLite) ActivePostIDs(offset, limit int) ([]string, error) {
	query := fmt.Sprintf(`SELECT post_id FROM %s
		WHERE archived = 0 AND removed = 0
		ORDER BY created_at DESC, post_id DESC LIMIT ? OFFSET ?`, s.t.Posts)
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("paging live posts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning post id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) AppendPostMetrics(id string, at time.Time, m harbor.PostMetrics) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		scoreRaw, ratioRaw, commentsRaw string
		archived                        bool
	)
	query := fmt.Sprintf("SELECT score, upvote_ratio, num_comments, archived FROM %s WHERE post_id = ?", s.t.Posts)
	if err := tx.QueryRow(query, id).Scan(&scoreRaw, &ratioRaw, &commentsRaw, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("post %s not found", id)
		}
		return fmt.Errorf("reading post %s: %w", id, err)
	}

	var (
		score    model.IntSeries
		ratio    model.FloatSeries
		comments model.IntSeries
	)
	if err := json.Unmarshal([]byte(scoreRaw), &score); err != nil {
		return fmt.Errorf("decoding score series of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(ratioRaw), &ratio); err != nil {
		return fmt.Errorf("decoding upvote ratio series of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(commentsRaw), &comments); err != nil {
		return fmt.Errorf("decoding comment count series of %s: %w", id, err)
	}
	score.Append(at, m.Score)
	ratio.Append(at, m.UpvoteRatio)
	comments.Append(at, m.NumComments)

	scoreOut, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("encoding score series: %w", err)
	}
	ratioOut, err := json.Marshal(ratio)
	if err != nil {
		return fmt.Errorf("encoding upvote ratio series: %w", err)
	}
	commentsOut, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("encoding comment count series: %w", err)
	}

	update := fmt.Sprintf(`UPDATE %s
		SET score = ?, upvote_ratio = ?, num_comments = ?, archived = ?
		WHERE post_id = ?`, s.t.Posts)
	if _, err := tx.Exec(update, string(scoreOut), string(ratioOut), string(commentsOut),
		archived || m.Archived, id); err != nil {
		return fmt.Errorf("updating post %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *SQLite) PostsPage(offset, limit int) ([]*model.Post, error) {
	query := fmt.Sprintf(`SELECT post_id, author_id, created_at, title, body, subreddit,
		permalink, attachment, poll, flair, awards, score, upvote_ratio, num_comments,
		edited, archived, removed
		FROM %s ORDER BY created_at, post_id LIMIT ? OFFSET ?`, s.t.Posts)
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("paging posts: %w", err)
	}
	defer rows.Close()

	var out []*model.Post
	for rows.Next() {
		var (
			p          model.Post
			attachment sql.NullString
			poll       sql.NullString
			flair      string
			awards     string
			score      string
			ratio      string
			comments   string
		)
		if err := rows.Scan(&p.PostID, &p.AuthorID, &p.CreatedAt, &p.Title, &p.Body,
			&p.Subreddit, &p.Permalink, &attachment, &poll, &flair, &awards,
			&score, &ratio, &comments, &p.Edited, &p.Archived, &p.Removed); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		if attachment.Valid {
			p.Attachment = &model.Attachment{}
			if err := json.Unmarshal([]byte(attachment.String), p.Attachment); err != nil {
				return nil, fmt.Errorf("decoding attachment of %s: %w", p.PostID, err)
			}
		}
		if poll.Valid {
			p.Poll = &model.Poll{}
			if err := json.Unmarshal([]byte(poll.String), p.Poll); err != nil {
				return nil, fmt.Errorf("decoding poll of %s: %w", p.PostID, err)
			}
		}
		if err := json.Unmarshal([]byte(flair), &p.Flair); err != nil {
			return nil, fmt.Errorf("decoding flair of %s: %w", p.PostID, err)
		}
		if err := json.Unmarshal([]byte(awards), &p.Awards); err != nil {
			return nil, fmt.Errorf("decoding awards of %s: %w", p.PostID, err)
		}
		if err := json.Unmarshal([]byte(score), &p.Score); err != nil {
			return nil, fmt.Errorf("decoding score series of %s: %w", p.PostID, err)
		}
		if err := json.Unmarshal([]byte(ratio), &p.UpvoteRatio); err != nil {
			return nil, fmt.Errorf("decoding upvote ratio series of %s: %w", p.PostID, err)
		}
		if err := json.Unmarshal([]byte(comments), &p.NumComments); err != nil {
			return nil, fmt.Errorf("decoding comment count series of %s: %w", p.PostID, err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Comments

func (s *SQLite) CommentExists(id string) (bool, error) {
	return s.exists(fmt.Sprintf("SELECT 1 FROM %s WHERE comment_id = ?", s.t.Comments), id)
}

func (s *SQLite) HasCommentsForPost(postID string) (bool, error) {
	return s.exists(fmt.Sprintf("SELECT 1 FROM %s WHERE link_id = ? LIMIT 1", s.t.Comments), postID)
}

func (s *SQLite) InsertComment(c *model.Comment) error {
	score, err := json.Marshal(c.Score)
	if err != nil {
		return fmt.Errorf("encoding score series: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(comment_id, link_id, subreddit, parent_id, author_id, created_at, body, removed, score, edited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.t.Comments)
	_, err = s.db.Exec(query,
		c.CommentID, c.LinkID, c.Subreddit, c.ParentID, c.AuthorID, c.CreatedAt,
		nullableString(c.Body), string(c.Removed), string(score), c.Edited)
	if err != nil {
		return fmt.Errorf("inserting comment %s: %w", c.CommentID, err)
	}
	return nil
}

func (s *SQLite) CountComments() (int, error) {
	return s.count(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.t.Comments))
}

func (s *SQLite) CommentsPage(offset, limit int) ([]*model.Comment, error) {
	query := fmt.Sprintf(`SELECT comment_id, link_id, subreddit, parent_id, author_id,
		created_at, body, removed, score, edited
		FROM %s ORDER BY created_at, comment_id LIMIT ? OFFSET ?`, s.t.Comments)
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("paging comments: %w", err)
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		var (
			c       model.Comment
			body    sql.NullString
			removed string
			score   string
		)
		if err := rows.Scan(&c.CommentID, &c.LinkID, &c.Subreddit, &c.ParentID,
			&c.AuthorID, &c.CreatedAt, &body, &removed, &score, &c.Edited); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if body.Valid {
			v := body.String
			c.Body = &v
		}
		c.Removed = model.RemovalReason(removed)
		if err := json.Unmarshal([]byte(score), &c.Score); err != nil {
			return nil, fmt.Errorf("decoding score series of %s: %w", c.CommentID, err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Runs

func (s *SQLite) CreateRun(operation, parameters string, startedAt time.Time) (*model.Run, error) {
	query := fmt.Sprintf(`INSERT INTO %s (operation, parameters, started_at, status)
		VALUES (?, ?, ?, ?)`, s.t.Runs)
	res, err := s.db.Exec(query, operation, parameters, startedAt, "running")
	if err != nil {
		return nil, fmt.Errorf("creating run record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating run record: %w", err)
	}
	return &model.Run{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     "running",
	}, nil
}

func (s *SQLite) FinishRun(id int64, status string, finishedAt time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, finished_at = ? WHERE id = ?", s.t.Runs)
	if _, err := s.db.Exec(query, status, finishedAt, id); err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	return nil
}

func (s *SQLite) ListRuns(limit int) ([]*model.Run, error) {
	query := fmt.Sprintf(`SELECT id, operation, parameters, started_at, finished_at, status
		FROM %s ORDER BY started_at DESC, id DESC LIMIT ?`, s.t.Runs)
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*model.Run
	for rows.Next() {
		var (
			r        model.Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Operation, &r.Parameters, &r.StartedAt, &finished, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// helpers

func (s *SQLite) exists(query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRow(query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return true, nil
}

func (s *SQLite) count(query string) (int, error) {
	var n int
	if err := s.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

func marshalNullable(present bool, v any) (any, error) {
	if !present {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
