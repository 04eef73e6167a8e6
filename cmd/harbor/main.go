package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"harbor-go/internal/app"
	"harbor-go/internal/collections"
	"harbor-go/internal/config"
	"harbor-go/internal/harbor"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	// Optional .env next to the working directory; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "CollectPosts", "Sync").
func newApp(operation, parameters string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.NewManager(defaults["config_path"]).Read()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context canceled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// targets resolves the subreddits to harvest from positional args and
// the --collection flag.
func targets(cmd *cobra.Command, args []string) ([]string, error) {
	subs := append([]string{}, args...)
	if name, _ := cmd.Flags().GetString("collection"); name != "" {
		fromCollection, err := collections.Lookup(name)
		if err != nil {
			return nil, err
		}
		subs = append(subs, fromCollection...)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("no subreddits given: pass names or --collection")
	}
	return subs, nil
}

func postOptions(cmd *cobra.Command) harbor.PostOptions {
	redact, _ := cmd.Flags().GetBool("redact")
	noAuthors, _ := cmd.Flags().GetBool("no-authors")
	return harbor.PostOptions{Redact: redact, PersistAuthors: !noAuthors}
}

func commentOptions(cmd *cobra.Command) harbor.CommentOptions {
	redact, _ := cmd.Flags().GetBool("redact")
	noAuthors, _ := cmd.Flags().GetBool("no-authors")
	expand, _ := cmd.Flags().GetInt("expand")
	return harbor.CommentOptions{Redact: redact, PersistAuthors: !noAuthors, Expand: expand}
}

func printStats(s harbor.Stats) {
	fmt.Printf("Inserted %d, skipped %d, failed %d, new authors %d\n",
		s.Inserted, s.Skipped, s.Failed, s.AuthorsInserted)
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "harbor",
	Short: "Reddit harvester for longitudinal research datasets",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.NewManager(defaults["config_path"]).Init(defaults["base_dir"])
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Database: %s\n", cfg.Storage.Path)
		fmt.Printf("Exports:  %s\n", cfg.Export.Dir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.NewManager(defaults["config_path"]).Read()
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("User agent: %s\n", cfg.Reddit.UserAgent)
		fmt.Printf("Storage:    %s %s\n", cfg.Storage.Type, cfg.Storage.Path)
		fmt.Printf("Redaction:  %s\n", cfg.Redaction.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Archive:    %s\n", cfg.Archive.Type)
		fmt.Printf("Exports:    %s\n", cfg.Export.Dir)
		fmt.Printf("Log:        %s (%s)\n", cfg.Log.File, cfg.Log.Level)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the record store",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or migrate the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		if err := app.InitDatabase(cfg); err != nil {
			return err
		}

		fmt.Printf("Database ready at %s\n", cfg.Storage.Path)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage export encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the export key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if pass == "" {
			return fmt.Errorf("passphrase must not be empty")
		}

		a, err := newApp("InitKeys", "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.InitKeys(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Export key pair generated.")
		return nil
	},
}

// collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Harvest content into the record store",
}

var collectPostsCmd = &cobra.Command{
	Use:   "posts [SUBREDDIT...]",
	Short: "Harvest subreddit post listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := targets(cmd, args)
		if err != nil {
			return err
		}
		sorts, _ := cmd.Flags().GetStringSlice("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("CollectPosts", strings.Join(subs, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.CollectPosts(ctx, subs, sorts, limit, postOptions(cmd))
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var collectCommentsCmd = &cobra.Command{
	Use:   "comments [SUBREDDIT...]",
	Short: "Harvest comment trees of subreddit listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := targets(cmd, args)
		if err != nil {
			return err
		}
		sorts, _ := cmd.Flags().GetStringSlice("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("CollectComments", strings.Join(subs, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.CollectComments(ctx, subs, sorts, limit, commentOptions(cmd))
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var collectAllCmd = &cobra.Command{
	Use:   "all [SUBREDDIT...]",
	Short: "Harvest posts together with their comment trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := targets(cmd, args)
		if err != nil {
			return err
		}
		sorts, _ := cmd.Flags().GetStringSlice("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("CollectAll", strings.Join(subs, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.CollectAll(ctx, subs, sorts, limit, postOptions(cmd), commentOptions(cmd))
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var collectUserPostsCmd = &cobra.Command{
	Use:   "user-posts USERNAME...",
	Short: "Harvest submission histories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sorts, _ := cmd.Flags().GetStringSlice("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("CollectUserPosts", strings.Join(args, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.CollectUserPosts(ctx, args, sorts, limit, postOptions(cmd))
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var collectUserCommentsCmd = &cobra.Command{
	Use:   "user-comments USERNAME...",
	Short: "Harvest comment histories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sorts, _ := cmd.Flags().GetStringSlice("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("CollectUserComments", strings.Join(args, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.CollectUserComments(ctx, args, sorts, limit, commentOptions(cmd))
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var collectTreeCmd = &cobra.Command{
	Use:   "tree POST_ID...",
	Short: "Harvest the comment trees of specific posts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CollectPostComments", strings.Join(args, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.CollectPostComments(ctx, args, commentOptions(cmd))
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY [SUBREDDIT...]",
	Short: "Harvest keyword search results",
	Long: "Harvest keyword search results from the given subreddits.\n" +
		"Author profiles are not collected unless --authors is set, so a\n" +
		"broad sweep does not pull in bystander accounts.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		subs, err := targets(cmd, args[1:])
		if err != nil {
			return err
		}
		sorts, _ := cmd.Flags().GetStringSlice("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		redact, _ := cmd.Flags().GetBool("redact")
		authors, _ := cmd.Flags().GetBool("authors")

		a, err := newApp("Search", query+" in "+strings.Join(subs, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		stats, err := a.Search(ctx, subs, query, sorts, limit, harbor.PostOptions{Redact: redact, PersistAuthors: authors})
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

// refresh / sync commands
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one metric refresh pass over live posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Refresh", "")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		remaining, stats, err := a.Refresh(ctx)
		if err != nil {
			return err
		}
		printStats(stats)
		fmt.Printf("%d post(s) still live\n", remaining)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh live posts on an adaptive interval",
	Long: "Refresh live posts on an adaptive interval until every tracked\n" +
		"post is archived, interrupted, or the --for window elapses.",
	RunE: func(cmd *cobra.Command, args []string) error {
		task, _ := cmd.Flags().GetString("task")
		window, _ := cmd.Flags().GetString("for")

		a, err := newApp("Sync", task+" "+window)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		passes, err := a.Sync(ctx, task, window)
		if err != nil {
			return err
		}
		fmt.Printf("Completed %d refresh pass(es)\n", passes)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump and seal dataset tables",
}

var exportTableCmd = &cobra.Command{
	Use:   "table NAME",
	Short: "Dump one table to the export directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		columns, _ := cmd.Flags().GetStringSlice("columns")
		archive, _ := cmd.Flags().GetBool("archive")

		a, err := newApp("ExportTable", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.ExportTable(args[0], format, columns)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)

		if archive {
			ctx, cancel := signalContext()
			defer cancel()

			location, err := a.ArchiveExport(ctx, path)
			if err != nil {
				return fmt.Errorf("archiving export: %w", err)
			}
			fmt.Printf("Uploaded to %s\n", location)
		}
		return nil
	},
}

var exportImagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Download image attachments of stored posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DownloadImages", "")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		res, err := a.DownloadImages(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Downloaded %d, skipped %d, failed %d\n", res.Downloaded, res.Skipped, res.Failed)
		for _, u := range res.FailedURLs {
			fmt.Printf("  failed: %s\n", u)
		}
		return nil
	},
}

var exportDecryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Open a sealed export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = strings.TrimSuffix(args[0], ".age")
			if out == args[0] {
				return fmt.Errorf("cannot derive output name from %q: pass --output", args[0])
			}
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp("DecryptExport", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DecryptExport(args[0], out, pass); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	},
}

// collections command
var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List curated subreddit collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range collections.Names() {
			subs, err := collections.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-18s %d subreddits\n", name, len(subs))
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset size",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Counts", "")
		if err != nil {
			return err
		}
		defer a.Close()

		authors, posts, comments, err := a.Counts()
		if err != nil {
			return err
		}
		fmt.Printf("Authors:  %d\n", authors)
		fmt.Printf("Posts:    %d\n", posts)
		fmt.Printf("Comments: %d\n", comments)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View harvest run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory", "")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No harvest runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				d := r.FinishedAt.Sub(r.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-20s  %s  %-8s  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
			)
		}
		return nil
	},
}

func addListingFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("sort", []string{"hot"}, "Listing sorts, each harvested per target: hot, new, rising, top, controversial")
	cmd.Flags().IntP("limit", "n", 100, "Maximum items per listing")
	cmd.Flags().Bool("redact", false, "Mask PII in body text before storing")
	cmd.Flags().Bool("no-authors", false, "Store raw usernames instead of author profiles")
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db / keys subcommands
	dbCmd.AddCommand(dbInitCmd)
	keysCmd.AddCommand(keysInitCmd)

	// collect subcommands
	for _, c := range []*cobra.Command{collectPostsCmd, collectCommentsCmd, collectAllCmd, collectUserPostsCmd, collectUserCommentsCmd} {
		addListingFlags(c)
		collectCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{collectPostsCmd, collectCommentsCmd, collectAllCmd} {
		c.Flags().String("collection", "", "Add subreddits from a curated collection")
	}
	for _, c := range []*cobra.Command{collectCommentsCmd, collectAllCmd, collectUserCommentsCmd, collectTreeCmd} {
		c.Flags().Int("expand", harbor.ExpandAll, "Deferred comment nodes to expand per tree (-1 for all)")
	}
	collectTreeCmd.Flags().Bool("redact", false, "Mask PII in bodies before storing")
	collectTreeCmd.Flags().Bool("no-authors", false, "Store raw usernames instead of author profiles")
	collectCmd.AddCommand(collectTreeCmd)

	// search flags
	searchCmd.Flags().String("collection", "", "Add subreddits from a curated collection")
	searchCmd.Flags().StringSlice("sort", []string{"new"}, "Result sorts, each searched per subreddit: hot, new, rising, top, controversial")
	searchCmd.Flags().IntP("limit", "n", 100, "Maximum results per listing")
	searchCmd.Flags().Bool("redact", false, "Mask PII in body text before storing")
	searchCmd.Flags().Bool("authors", false, "Also collect author profiles")

	// export subcommands
	exportTableCmd.Flags().String("format", "csv", "Output format: csv, tsv, json, ndjson")
	exportTableCmd.Flags().StringSlice("columns", nil, "Columns to include (default all)")
	exportTableCmd.Flags().Bool("archive", false, "Upload the export to the archive backend")
	exportDecryptCmd.Flags().StringP("output", "o", "", "Output path (default strips .age)")
	exportCmd.AddCommand(exportTableCmd)
	exportCmd.AddCommand(exportImagesCmd)
	exportCmd.AddCommand(exportDecryptCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(searchCmd)
	// sync flags
	syncCmd.Flags().String("task", harbor.TaskPost, "Refresh task to run")
	syncCmd.Flags().String("for", "", "Total running time as a duration keyword, e.g. hour, 3.day, week (default unbounded)")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
