package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"harbor-go/internal/config"
	"harbor-go/internal/encryption"
	"harbor-go/internal/errlog"
	"harbor-go/internal/export"
	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
	"harbor-go/internal/redact"
	"harbor-go/internal/reddit"
	"harbor-go/internal/store"
	"harbor-go/internal/store/migrations"
)

// App is the application layer between the CLI and the collector.
// It constructs all dependencies from config, exposes high-level
// operations that accept raw strings, and finalizes the run record
// on Close.
type App struct {
	cfg       *config.Config
	store     harbor.Store
	source    harbor.ContentSource
	redactor  harbor.Redactor
	sink      harbor.ErrorSink
	encryptor encryption.Encryptor
	collector *harbor.Collector
	scheduler *harbor.Scheduler
	exporter  *export.Exporter
	clock     harbor.Clock
	logger    harbor.Logger
	run       *HarvestRun
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "CollectPosts",
// "Sync"); parameters is its argument summary for the run record.
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation, parameters string) (*App, error) {
	clock := harbor.NewRealClock()

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.Log.File, parseLevel(cfg.Log.Level), opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	st, err := store.NewFromConfig(cfg.Storage, cfg.Tables)
	if err != nil {
		closeQuietly(logFile)
		return nil, fmt.Errorf("creating store: %w", err)
	}

	if sq, ok := st.(*store.SQLite); ok {
		if err := migrations.CheckStatus(sq.DB()); err != nil {
			st.Close()
			closeQuietly(logFile)
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	source, err := reddit.NewClient(cfg.Reddit.UserAgent, cfg.Reddit.RequestsPerMinute, cfg.Reddit.BaseURL)
	if err != nil {
		st.Close()
		closeQuietly(logFile)
		return nil, fmt.Errorf("creating client: %w", err)
	}

	redactor, err := redact.NewFromConfig(cfg.Redaction)
	if err != nil {
		st.Close()
		closeQuietly(logFile)
		return nil, fmt.Errorf("creating redactor: %w", err)
	}

	sink, err := newErrorSink(cfg, clock, log)
	if err != nil {
		st.Close()
		closeQuietly(logFile)
		return nil, fmt.Errorf("creating error sink: %w", err)
	}

	enc, err := encryption.NewFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		closeQuietly(logFile)
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	collector := harbor.NewCollector(source, st, harbor.NewMapper(clock), redactor, sink, log)
	scheduler := harbor.NewScheduler(collector, log)
	exporter := export.NewExporter(st, cfg.Export.Dir, cfg.Export.PageSize, enc, clock, log)

	return &App{
		cfg:       cfg,
		store:     st,
		source:    source,
		redactor:  redactor,
		sink:      sink,
		encryptor: enc,
		collector: collector,
		scheduler: scheduler,
		exporter:  exporter,
		clock:     clock,
		logger:    log,
		run:       NewHarvestRun(operation, parameters),
		logFile:   logFile,
	}, nil
}

// newErrorSink places the item-failure log next to the operation log.
// Without a log file there is nowhere sensible to append, so failures
// are only reported through the logger.
func newErrorSink(cfg *config.Config, clock harbor.Clock, log harbor.Logger) (harbor.ErrorSink, error) {
	if cfg.Log.File == "" {
		return harbor.NewNopSink(), nil
	}
	path := filepath.Join(filepath.Dir(cfg.Log.File), "errors.ndjson")
	return errlog.NewFileSink(path, clock, log)
}

// persistRun saves the harvest run to the store, giving it an
// auto-increment ID. This should only be called for store-mutating
// commands.
func (a *App) persistRun() error {
	if a.run.Persisted() {
		return nil // already persisted
	}
	r, err := a.store.CreateRun(a.run.Operation, a.run.Parameters, a.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("persisting harvest run: %w", err)
	}
	a.run.ID = r.ID
	return nil
}

// done records the outcome of a mutating operation on the run record.
func (a *App) done(err error) error {
	if err != nil {
		a.run.Status = "error"
	}
	return err
}

// parseSorts validates a list of sort order names, rejecting the whole
// command on the first bad one.
func parseSorts(sorts []string) ([]harbor.SortOrder, error) {
	if len(sorts) == 0 {
		return nil, fmt.Errorf("at least one sort order is required")
	}
	orders := make([]harbor.SortOrder, 0, len(sorts))
	for _, s := range sorts {
		order, err := harbor.ParseSortOrder(s)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// CollectPosts harvests subreddit post listings into the store, one
// listing per subreddit and sort order combination.
func (a *App) CollectPosts(ctx context.Context, subreddits, sorts []string, limit int, opts harbor.PostOptions) (harbor.Stats, error) {
	orders, err := parseSorts(sorts)
	if err != nil {
		return harbor.Stats{}, err
	}
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.CollectSubredditPosts(ctx, subreddits, orders, limit, opts)
	return stats, a.done(err)
}

// CollectComments harvests subreddit posts' comment trees into the store.
func (a *App) CollectComments(ctx context.Context, subreddits, sorts []string, limit int, opts harbor.CommentOptions) (harbor.Stats, error) {
	orders, err := parseSorts(sorts)
	if err != nil {
		return harbor.Stats{}, err
	}
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.CollectSubredditComments(ctx, subreddits, orders, limit, opts)
	return stats, a.done(err)
}

// CollectAll harvests subreddit posts together with their comment trees.
func (a *App) CollectAll(ctx context.Context, subreddits, sorts []string, limit int, postOpts harbor.PostOptions, commentOpts harbor.CommentOptions) (harbor.Stats, error) {
	orders, err := parseSorts(sorts)
	if err != nil {
		return harbor.Stats{}, err
	}
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.CollectSubredditAll(ctx, subreddits, orders, limit, postOpts, commentOpts)
	return stats, a.done(err)
}

// Search harvests keyword search results from the given subreddits.
func (a *App) Search(ctx context.Context, subreddits []string, query string, sorts []string, limit int, opts harbor.PostOptions) (harbor.Stats, error) {
	orders, err := parseSorts(sorts)
	if err != nil {
		return harbor.Stats{}, err
	}
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.SearchPosts(ctx, subreddits, query, orders, limit, opts)
	return stats, a.done(err)
}

// CollectUserPosts harvests the submission history of the given users.
func (a *App) CollectUserPosts(ctx context.Context, usernames, sorts []string, limit int, opts harbor.PostOptions) (harbor.Stats, error) {
	orders, err := parseSorts(sorts)
	if err != nil {
		return harbor.Stats{}, err
	}
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.CollectUserPosts(ctx, usernames, orders, limit, opts)
	return stats, a.done(err)
}

// CollectUserComments harvests the comment history of the given users.
func (a *App) CollectUserComments(ctx context.Context, usernames, sorts []string, limit int, opts harbor.CommentOptions) (harbor.Stats, error) {
	orders, err := parseSorts(sorts)
	if err != nil {
		return harbor.Stats{}, err
	}
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.CollectUserComments(ctx, usernames, orders, limit, opts)
	return stats, a.done(err)
}

// CollectPostComments harvests the full comment trees of specific posts.
func (a *App) CollectPostComments(ctx context.Context, postIDs []string, opts harbor.CommentOptions) (harbor.Stats, error) {
	if err := a.persistRun(); err != nil {
		return harbor.Stats{}, err
	}
	stats, err := a.collector.CollectPostComments(ctx, postIDs, opts)
	return stats, a.done(err)
}

// Refresh runs a single metric refresh pass over all live posts.
// Returns the number of posts still live afterwards.
func (a *App) Refresh(ctx context.Context) (int, harbor.Stats, error) {
	if err := a.persistRun(); err != nil {
		return 0, harbor.Stats{}, err
	}
	remaining, stats, err := a.collector.RefreshPosts(ctx)
	return remaining, stats, a.done(err)
}

// Sync refreshes live posts of the given task kind on an adaptive
// interval until the window elapses, every tracked post archives, or
// the context is canceled. window is a duration keyword as accepted by
// harbor.ParseRefreshWindow; empty means no time bound. Returns the
// number of completed refresh passes.
func (a *App) Sync(ctx context.Context, task, window string) (int, error) {
	total, err := harbor.ParseRefreshWindow(window)
	if err != nil {
		return 0, err
	}
	if err := a.persistRun(); err != nil {
		return 0, err
	}
	passes, err := a.scheduler.Run(ctx, task, total)
	return passes, a.done(err)
}

// ExportTable dumps one record table to the export directory and
// returns the written file path. columns selects a subset of the
// table's columns; empty means all.
func (a *App) ExportTable(table, format string, columns []string) (string, error) {
	t, err := export.ParseTable(table)
	if err != nil {
		return "", err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	return a.exporter.DumpTable(t, f, columns)
}

// ArchiveExport uploads an export file to the configured archive
// backend and returns its remote location.
func (a *App) ArchiveExport(ctx context.Context, path string) (string, error) {
	archiver, err := export.NewArchiverFromConfig(ctx, a.cfg.Archive)
	if err != nil {
		return "", fmt.Errorf("creating archiver: %w", err)
	}
	if archiver == nil {
		return "", fmt.Errorf("no archive backend configured")
	}
	return archiver.Upload(ctx, path)
}

// DownloadImages fetches the image attachments of stored posts into
// the export directory.
func (a *App) DownloadImages(ctx context.Context) (*export.ImageResult, error) {
	d := export.NewImageDownloader(a.store, filepath.Join(a.cfg.Export.Dir, "images"), a.cfg.Export.PageSize, a.logger)
	return d.Run(ctx)
}

// InitKeys generates the export key pair, sealing the private key with
// the given passphrase.
func (a *App) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is not configured")
	}
	return a.encryptor.Setup(passphrase)
}

// DecryptExport opens a sealed export file with the passphrase and
// writes the plaintext to outPath.
func (a *App) DecryptExport(inPath, outPath, passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is not configured")
	}
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return err
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening sealed export: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err := dc.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return fmt.Errorf("decrypting export: %w", err)
	}
	return out.Close()
}

// GetHistory returns the most recent harvest runs.
func (a *App) GetHistory(limit int) ([]*model.Run, error) {
	return a.store.ListRuns(limit)
}

// Counts reports the stored dataset size per record kind.
func (a *App) Counts() (authors, posts, comments int, err error) {
	if authors, err = a.store.CountAuthors(); err != nil {
		return 0, 0, 0, err
	}
	if posts, err = a.store.CountPosts(); err != nil {
		return 0, 0, 0, err
	}
	if comments, err = a.store.CountComments(); err != nil {
		return 0, 0, 0, err
	}
	return authors, posts, comments, nil
}

// Close finalizes the run record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.run.Persisted() {
		if err := a.store.FinishRun(a.run.ID, a.run.Status, a.clock.Now().UTC()); err != nil {
			firstErr = fmt.Errorf("finishing harvest run: %w", err)
		}
	}

	if err := a.sink.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing error sink: %w", err)
		}
	}

	if err := a.store.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// InitDatabase opens the configured store and brings its schema up to
// date. This is the only path that may run migrations; NewApp refuses
// an out-of-date schema instead.
func InitDatabase(cfg *config.Config) error {
	if cfg.Storage.Type != "sqlite" {
		return fmt.Errorf("storage type %q needs no schema setup", cfg.Storage.Type)
	}
	st, err := store.NewFromConfig(cfg.Storage, cfg.Tables)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer st.Close()

	sq, ok := st.(*store.SQLite)
	if !ok {
		return fmt.Errorf("storage type %q needs no schema setup", cfg.Storage.Type)
	}
	if err := migrations.MigrateUp(sq.DB()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

func closeQuietly(f io.Closer) {
	if f != nil {
		f.Close()
	}
}
