package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/docmirror/internal/config"
	"github.com/nao1215/docmirror/internal/crawler"
	"github.com/nao1215/docmirror/internal/pipeline"
	"github.com/nao1215/docmirror/internal/render"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror [root-url | site-name...]",
		Short: "Mirror a documentation site into Markdown files",
		Long: `Mirror crawls every page under a root URL and saves it as Markdown.

Each argument is either a site name from the configuration file or a root
URL. Without arguments the root URL comes from the configuration file
defaults, or the built-in default.

Pages are visited breadth-first. Links outside the root path, pages
disallowed by robots.txt and paths matching --ignore are skipped. The
output directory receives one Markdown file per page plus manifest.json.

Examples:
  # Mirror a documentation tree
  docmirror mirror https://example.com/docs

  # Fetch over plain HTTP instead of a browser
  docmirror mirror --backend http https://example.com/docs

  # Mirror two configured sites at the same time
  docmirror mirror --batch 2 forge jira

  # Send a cookie and a header with every request
  docmirror mirror --cookie "session=abc" --header "X-Team: docs" https://example.com/docs

Configuration file (.docmirror) example:
  defaults:
    delay: 500ms
    backend: chromium
  sites:
    forge:
      root_url: https://developer.atlassian.com/platform/forge/
      output_dir: forge-docs
      ignore_patterns:
        - "/platform/forge/changelog/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runMirrorCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory the Markdown tree and manifest.json are written to")

	// Crawl behavior flags
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Pause after each saved page")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages to download (0 means no limit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for loading a single page")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent sent with requests and matched against robots.txt")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt")
	cmd.Flags().StringArray("seed", nil,
		"Start URL used instead of the root, resolved against it (repeatable)")
	cmd.Flags().StringArray("ignore", nil,
		"Glob pattern on the URL path to skip (repeatable)")
	cmd.Flags().Bool("keep-query", false,
		"Keep query strings in URLs and file names")
	cmd.Flags().Bool("loose-scope", false,
		"Match the root path as a plain prefix instead of at a segment boundary")

	// Rendering flags
	cmd.Flags().String("backend", render.BackendChromium,
		"Render backend: "+strings.Join(render.Backends(), ", "))
	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().String("wait-until", render.WaitNetworkIdle,
		"Page load condition: "+strings.Join(render.WaitPolicies(), ", "))
	cmd.Flags().String("selector", "",
		"CSS selector of the main content (default: "+config.NewConfig().ContentSelector+")")
	cmd.Flags().Bool("keep-cookie-banners", false,
		"Do not try to dismiss cookie consent banners")

	// Request flags
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header as "Name: value" (repeatable)`)
	cmd.Flags().String("cookie", "",
		`Cookie sent with every request, e.g. "name=value; other=value"`)

	// Batch and history flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites mirrored concurrently")
	cmd.Flags().Bool("no-history", false,
		"Do not store the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	configs, err := buildConfigs(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)

	// Set up context with signal handling for graceful shutdown. The
	// pipeline still writes the manifest of an interrupted crawl.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose := getBoolFlag(cmd, "verbose")
	printer := newProgressPrinter(cmd.OutOrStdout(), verbose)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(
				[]pipeline.Option{pipeline.WithLogger(logger)},
				pipeline.WithPipelineObserver(printer.observe),
			)
		},
		pipeline.WithConcurrency(configs[0].BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	for _, cfg := range configs {
		printer.info("mirroring %s into %s (%s backend)", cfg.RootURL, cfg.OutputDir, cfg.Backend)
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	err = bp.ProcessBatchWithCallback(ctx, configs, func(run *pipeline.Run, _ int) {
		printer.summary(run, verbose)
		if run.ManifestPath == "" && run.Err != nil {
			mu.Lock()
			failures = append(failures, fmt.Errorf("%s: %w", run.Config.RootURL, run.Err))
			mu.Unlock()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		failures = append(failures, err)
	}

	return errors.Join(failures...)
}

// buildConfigs creates one Config per site to mirror. Settings are layered
// as built-in defaults, config file defaults, the site entry and finally
// the flags the user set explicitly.
func buildConfigs(cmd *cobra.Command, args []string) ([]*config.Config, error) {
	base := config.NewConfig()
	base.ConfigFilePath = getStringFlag(cmd, "config")
	base.Verbose = getBoolFlag(cmd, "verbose")

	file, err := loadConfigFile(base.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	base.SiteConfigs = file
	base.Apply(file.Defaults)

	var configs []*config.Config
	if len(args) == 0 {
		configs = append(configs, base.Clone())
	}
	for _, arg := range args {
		cfg, err := resolveTarget(base, file, arg)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	for _, cfg := range configs {
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
	}
	separateOutputDirs(configs)

	return configs, nil
}

// loadConfigFile loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadConfigFile(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return file, nil
}

// resolveTarget turns one argument into a Config. Site names from the
// configuration file win over URLs; anything that looks like a host or URL
// is mirrored with the file defaults.
func resolveTarget(base *config.Config, file *config.File, arg string) (*config.Config, error) {
	if file.HasSite(arg) {
		return config.ResolveSite(base, file, arg)
	}
	if !looksLikeURL(arg) {
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownSite, arg)
	}
	cfg := base.Clone()
	cfg.RootURL = arg
	return cfg, nil
}

// looksLikeURL reports whether arg is a URL or a bare host with a dot,
// such as "example.com/docs".
func looksLikeURL(arg string) bool {
	if strings.Contains(arg, "://") {
		return true
	}
	host, _, _ := strings.Cut(arg, "/")
	return strings.Contains(host, ".") || strings.HasPrefix(host, "localhost")
}

// applyFlags copies the flags the user set onto cfg. Flags left at their
// defaults do not override the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if flags.Changed("no-robots") {
		noRobots, err := flags.GetBool("no-robots")
		if err != nil {
			return err
		}
		cfg.RespectRobots = !noRobots
	}
	if flags.Changed("seed") {
		if cfg.Seeds, err = flags.GetStringArray("seed"); err != nil {
			return err
		}
	}
	if flags.Changed("ignore") {
		patterns, err := flags.GetStringArray("ignore")
		if err != nil {
			return err
		}
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, patterns...)
	}
	if flags.Changed("keep-query") {
		if cfg.KeepQuery, err = flags.GetBool("keep-query"); err != nil {
			return err
		}
	}
	if flags.Changed("loose-scope") {
		loose, err := flags.GetBool("loose-scope")
		if err != nil {
			return err
		}
		cfg.StrictScope = !loose
	}
	if flags.Changed("backend") {
		if cfg.Backend, err = flags.GetString("backend"); err != nil {
			return err
		}
	}
	if flags.Changed("headful") {
		headful, err := flags.GetBool("headful")
		if err != nil {
			return err
		}
		cfg.Headless = !headful
	}
	if flags.Changed("wait-until") {
		if cfg.WaitUntil, err = flags.GetString("wait-until"); err != nil {
			return err
		}
	}
	if flags.Changed("selector") {
		if cfg.ContentSelector, err = flags.GetString("selector"); err != nil {
			return err
		}
	}
	if flags.Changed("keep-cookie-banners") {
		keep, err := flags.GetBool("keep-cookie-banners")
		if err != nil {
			return err
		}
		cfg.DismissCookies = !keep
	}
	if flags.Changed("header") {
		raw, err := flags.GetStringArray("header")
		if err != nil {
			return err
		}
		for _, h := range raw {
			name, value, err := parseHeader(h)
			if err != nil {
				return err
			}
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string)
			}
			cfg.Headers[name] = value
		}
	}
	if flags.Changed("cookie") {
		if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
			return err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return err
		}
	}
	if flags.Changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.SaveHistory = !noHistory
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}
	return nil
}

// parseHeader splits a "Name: value" header flag.
func parseHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q: expected \"Name: value\"", raw)
	}
	return name, strings.TrimSpace(value), nil
}

// separateOutputDirs gives every site of a batch its own directory when
// several sites would write to the same one. The shared directory gets
// one subdirectory per site, named after the root host and path.
func separateOutputDirs(configs []*config.Config) {
	if len(configs) < 2 {
		return
	}
	count := make(map[string]int, len(configs))
	for _, cfg := range configs {
		count[filepath.Clean(cfg.OutputDir)]++
	}
	for _, cfg := range configs {
		if count[filepath.Clean(cfg.OutputDir)] < 2 {
			continue
		}
		cfg.OutputDir = filepath.Join(cfg.OutputDir, siteDirName(cfg.RootURL))
	}
}

// siteDirName derives a directory name from a root URL,
// e.g. "example.com_docs" for https://example.com/docs.
func siteDirName(rootURL string) string {
	root, err := crawler.NormalizeSeed(rootURL)
	if err != nil {
		return "site"
	}
	_, rest, _ := strings.Cut(root, "://")
	rest = strings.Trim(rest, "/")
	return strings.NewReplacer("/", "_", ":", "_").Replace(rest)
}
