// Package export dumps harvested tables to files researchers can hand
// to their analysis tooling. Dumps stream page by page so a large
// dataset never has to fit in memory, and can be sealed with the
// configured export key on the way out.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"harbor-go/internal/encryption"
	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
)

// Format selects the dump file format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatTSV, FormatJSON, FormatNDJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Table selects which record kind to dump.
type Table string

const (
	TableAuthors  Table = "authors"
	TablePosts    Table = "posts"
	TableComments Table = "comments"
)

func ParseTable(s string) (Table, error) {
	switch Table(s) {
	case TableAuthors, TablePosts, TableComments:
		return Table(s), nil
	}
	return "", fmt.Errorf("unknown table %q", s)
}

const defaultPageSize = 1000

// Exporter writes dataset dumps. enc may be nil, in which case files
// are written in the clear.
type Exporter struct {
	store    harbor.Store
	dir      string
	pageSize int
	enc      encryption.Encryptor
	clock    harbor.Clock
	logger   harbor.Logger
}

func NewExporter(store harbor.Store, dir string, pageSize int, enc encryption.Encryptor, clock harbor.Clock, logger harbor.Logger) *Exporter {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Exporter{
		store:    store,
		dir:      dir,
		pageSize: pageSize,
		enc:      enc,
		clock:    clock,
		logger:   logger,
	}
}

// DumpTable writes one table to a timestamped file in the export
// directory and returns the file's path. columns selects a subset of
// the table's columns, in the given order; empty means all.
func (e *Exporter) DumpTable(table Table, format Format, columns []string) (string, error) {
	if err := validateColumns(table, columns); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.%s", table, e.clock.Now().UTC().Format("20060102T150405"), format)
	if e.enc != nil {
		name += ".age"
	}
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	out := io.Writer(f)
	var (
		pw   *io.PipeWriter
		done chan error
	)
	if e.enc != nil {
		var pr *io.PipeReader
		pr, pw = io.Pipe()
		done = make(chan error, 1)
		go func() {
			done <- e.enc.Encrypt(pr, f)
		}()
		out = pw
	}

	rows, err := e.writeRows(out, table, format, columns)

	if pw != nil {
		pw.CloseWithError(err)
		if encErr := <-done; err == nil && encErr != nil {
			err = fmt.Errorf("sealing export: %w", encErr)
		}
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	e.logger.Info("table exported", "table", string(table), "format", string(format), "rows", rows, "path", path)
	return path, nil
}

func (e *Exporter) writeRows(w io.Writer, table Table, format Format, columns []string) (int, error) {
	switch format {
	case FormatCSV, FormatTSV:
		return e.writeDelimited(w, table, format, columns)
	case FormatJSON, FormatNDJSON:
		return e.writeJSON(w, table, format, columns)
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
}

func (e *Exporter) writeDelimited(w io.Writer, table Table, format Format, columns []string) (int, error) {
	cw := csv.NewWriter(w)
	if format == FormatTSV {
		cw.Comma = '\t'
	}
	header := columns
	if len(header) == 0 {
		header = headers(table)
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	rows := 0
	err := e.eachPage(table, func(fields []field) error {
		fields = selectFields(fields, columns)
		record := make([]string, len(fields))
		for i, fd := range fields {
			cell, err := textCell(fd.value)
			if err != nil {
				return fmt.Errorf("encoding column %s: %w", fd.name, err)
			}
			record[i] = cell
		}
		rows++
		return cw.Write(record)
	})
	if err != nil {
		return rows, err
	}
	cw.Flush()
	return rows, cw.Error()
}

func (e *Exporter) writeJSON(w io.Writer, table Table, format Format, columns []string) (int, error) {
	enc := json.NewEncoder(w)
	rows := 0

	if format == FormatNDJSON {
		err := e.eachPage(table, func(fields []field) error {
			rows++
			return enc.Encode(object(selectFields(fields, columns)))
		})
		return rows, err
	}

	// A single JSON array, streamed element by element.
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return 0, err
	}
	err := e.eachPage(table, func(fields []field) error {
		if rows > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		raw, err := json.Marshal(object(selectFields(fields, columns)))
		if err != nil {
			return err
		}
		rows++
		_, err = w.Write(raw)
		return err
	})
	if err != nil {
		return rows, err
	}
	_, err = io.WriteString(w, "\n]\n")
	return rows, err
}

// eachPage loads the table in store pages and feeds every record's
// fields to fn in a stable column order.
func (e *Exporter) eachPage(table Table, fn func(fields []field) error) error {
	for offset := 0; ; offset += e.pageSize {
		var (
			batch []([]field)
			err   error
		)
		switch table {
		case TableAuthors:
			var authors []*model.Author
			authors, err = e.store.AuthorsPage(offset, e.pageSize)
			for _, a := range authors {
				batch = append(batch, authorFields(a))
			}
		case TablePosts:
			var posts []*model.Post
			posts, err = e.store.PostsPage(offset, e.pageSize)
			for _, p := range posts {
				batch = append(batch, postFields(p))
			}
		case TableComments:
			var comments []*model.Comment
			comments, err = e.store.CommentsPage(offset, e.pageSize)
			for _, c := range comments {
				batch = append(batch, commentFields(c))
			}
		default:
			return fmt.Errorf("unknown table %q", table)
		}
		if err != nil {
			return fmt.Errorf("loading %s page at %d: %w", table, offset, err)
		}
		for _, fields := range batch {
			if err := fn(fields); err != nil {
				return err
			}
		}
		if len(batch) < e.pageSize {
			return nil
		}
	}
}

type field struct {
	name  string
	value any
}

func headers(table Table) []string {
	var fields []field
	switch table {
	case TableAuthors:
		fields = authorFields(&model.Author{})
	case TablePosts:
		fields = postFields(&model.Post{})
	case TableComments:
		fields = commentFields(&model.Comment{})
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

func authorFields(a *model.Author) []field {
	return []field{
		{"author_id", a.AuthorID},
		{"name", a.Name},
		{"created_at", a.CreatedAt},
		{"karma", a.Karma},
		{"is_gold", a.IsGold},
		{"moderates", a.Moderates},
		{"trophies", a.Trophies},
		{"status", string(a.Status)},
	}
}

func postFields(p *model.Post) []field {
	return []field{
		{"post_id", p.PostID},
		{"author_id", p.AuthorID},
		{"created_at", p.CreatedAt},
		{"title", p.Title},
		{"body", p.Body},
		{"subreddit", p.Subreddit},
		{"permalink", p.Permalink},
		{"attachment", p.Attachment},
		{"poll", p.Poll},
		{"flair", p.Flair},
		{"awards", p.Awards},
		{"score", p.Score},
		{"upvote_ratio", p.UpvoteRatio},
		{"num_comments", p.NumComments},
		{"edited", p.Edited},
		{"archived", p.Archived},
		{"removed", p.Removed},
	}
}

func commentFields(c *model.Comment) []field {
	return []field{
		{"comment_id", c.CommentID},
		{"link_id", c.LinkID},
		{"subreddit", c.Subreddit},
		{"parent_id", c.ParentID},
		{"author_id", c.AuthorID},
		{"created_at", c.CreatedAt},
		{"body", c.Body},
		{"removed", string(c.Removed)},
		{"score", c.Score},
		{"edited", c.Edited},
	}
}

// validateColumns rejects names the table does not have.
func validateColumns(table Table, columns []string) error {
	known := headers(table)
	for _, c := range columns {
		found := false
		for _, k := range known {
			if c == k {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("table %s has no column %q", table, c)
		}
	}
	return nil
}

// selectFields keeps the named columns in the requested order. An
// empty selection keeps every field.
func selectFields(fields []field, columns []string) []field {
	if len(columns) == 0 {
		return fields
	}
	out := make([]field, 0, len(columns))
	for _, c := range columns {
		for _, f := range fields {
			if f.name == c {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func object(fields []field) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.name] = f.value
	}
	return m
}

// textCell renders one value for delimited output. Structured values
// become embedded JSON; absent values become empty cells.
func textCell(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case time.Time:
		return val.UTC().Format(time.RFC3339), nil
	case *time.Time:
		if val == nil {
			return "", nil
		}
		return val.UTC().Format(time.RFC3339), nil
	case *string:
		if val == nil {
			return "", nil
		}
		return *val, nil
	case *bool:
		if val == nil {
			return "", nil
		}
		return textCell(*val)
	case *model.Attachment:
		if val == nil {
			return "", nil
		}
		raw, err := json.Marshal(val)
		return string(raw), err
	case *model.Poll:
		if val == nil {
			return "", nil
		}
		raw, err := json.Marshal(val)
		return string(raw), err
	default:
		raw, err := json.Marshal(val)
		return string(raw), err
	}
}
