// Package cli provides the swashark command line: the terminal UI by
// default, the HTML host under "serve", and a few one-shot commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"swashark/internal/aigen"
	"swashark/internal/config"
	"swashark/internal/logging"
	"swashark/internal/server"
	"swashark/internal/session"
	"swashark/internal/store"
	"swashark/internal/ui"
)

const fetchTimeout = 30 * time.Second

// CLI holds the command tree and the flag values shared by every command.
type CLI struct {
	rootCmd *cobra.Command
	stdout  io.Writer
	stderr  io.Writer
	getenv  func(string) string

	configFile string
	specURL    string
	specFile   string
	baseURL    string
	stateFile  string
	debug      bool
	version    string

	addr        string
	title       string
	routePrefix string
}

// New creates the command tree writing to stdout and stderr.
func New(stdout, stderr io.Writer) *CLI {
	c := &CLI{stdout: stdout, stderr: stderr, getenv: os.Getenv}

	c.rootCmd = &cobra.Command{
		Use:           "swashark",
		Short:         "Browse and try out OpenAPI operations",
		Long:          "swashark loads an OpenAPI 3.x document and lets you browse its operations, inspect schemas and send requests from the terminal or a browser.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runTUI,
	}
	c.setupFlags()

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the documentation page and its API over HTTP",
		RunE:  c.runServe,
	}
	serve.Flags().StringVar(&c.addr, "addr", "", "listen address (default "+config.DefaultAddr+")")
	serve.Flags().StringVar(&c.title, "title", "", "document title shown in the page")
	serve.Flags().StringVar(&c.routePrefix, "route-prefix", "", "path prefix of every route (default "+config.DefaultRoutePrefix+")")

	endpoints := &cobra.Command{
		Use:   "endpoints",
		Short: "Print the endpoint catalog",
		RunE:  c.runEndpoints,
	}

	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the session cache",
	}
	cache.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the cached parameters, bodies and responses of every operation",
		RunE:  c.runCacheClear,
	})

	c.rootCmd.AddCommand(serve, endpoints, cache)
	return c
}

func (c *CLI) setupFlags() {
	f := c.rootCmd.PersistentFlags()
	f.StringVarP(&c.configFile, "config", "c", "", "path to a YAML config file")
	f.StringVar(&c.specURL, "spec-url", "", "OpenAPI document URL (http/https)")
	f.StringVar(&c.specFile, "spec-file", "", "path to a local OpenAPI document")
	f.StringVar(&c.baseURL, "base-url", "", "base URL for requests (e.g. http://localhost:8000)")
	f.StringVar(&c.stateFile, "state-file", "", "where credentials and the session cache are kept")
	f.BoolVar(&c.debug, "debug", false, "enable debug logging")
	f.StringVar(&c.version, "version", "", "name of the configured document version to open")
}

// Execute runs the command line with os.Args.
func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

// SetArgs replaces os.Args, for tests.
func (c *CLI) SetArgs(args []string) { c.rootCmd.SetArgs(args) }

// loadConfig applies, lowest first: defaults, the YAML file, SWASHARK_*
// variables, then flags that were given explicitly.
func (c *CLI) loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := c.configFile
	if path == "" {
		path = strings.TrimSpace(c.getenv("SWASHARK_CONFIG"))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(c.getenv)

	flags := cmd.Flags()
	switch {
	case flags.Changed("spec-url"):
		cfg.SpecURL, cfg.SpecFile, cfg.Versions = c.specURL, "", nil
	case flags.Changed("spec-file"):
		cfg.SpecURL, cfg.SpecFile, cfg.Versions = "", c.specFile, nil
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = c.baseURL
	}
	if flags.Changed("state-file") {
		cfg.StateFile = c.stateFile
	}
	if flags.Changed("debug") {
		cfg.Debug = c.debug
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		cfg.Addr = c.addr
	}
	if f := flags.Lookup("title"); f != nil && f.Changed {
		cfg.Title = c.title
	}
	if f := flags.Lookup("route-prefix"); f != nil && f.Changed {
		cfg.RoutePrefix = c.routePrefix
	}
	return cfg, cfg.Validate()
}

// deps are the collaborators every command builds from the config.
type deps struct {
	cfg      config.Config
	log      zerolog.Logger
	kv       *store.FileKV
	cache    *store.SessionCache
	creds    *store.Credentials
	ui       *store.UIState
	gen      *aigen.Generator
	sessions *session.Manager
}

func (c *CLI) build(cfg config.Config, log zerolog.Logger) (*deps, error) {
	kv, err := store.OpenFileKV(cfg.StateFile)
	if err != nil {
		// a corrupt state file is replaced on the next write
		log.Warn().Err(err).Str("path", cfg.StateFile).Msg("state file unusable, starting empty")
	}
	d := &deps{
		cfg:   cfg,
		log:   log,
		kv:    kv,
		cache: store.NewSessionCache(kv, log),
		creds: store.NewCredentials(kv, log),
		ui:    store.NewUIState(kv, log),
	}

	client := &http.Client{Timeout: fetchTimeout}
	gc := aigen.NewClient(aigen.Config{
		URL:     cfg.Generator.URL,
		APIKey:  cfg.Generator.APIKey,
		Timeout: cfg.Generator.Timeout,
	}, nil)
	d.gen = aigen.NewGenerator(gc, log.With().Str("component", "generator").Logger())

	versions := cfg.VersionList()
	if len(versions) == 0 {
		return nil, errors.New("spec required (use --spec-url or --spec-file, or set SWASHARK_SPEC_URL/SWASHARK_SPEC_FILE)")
	}
	d.sessions = session.NewManager(session.Options{
		Versions: versions,
		BaseURL:  cfg.BaseURL,
		Client:   client,
		Cache:    d.cache,
		Creds:    d.creds,
		Log:      log,
	})
	return d, nil
}

func (c *CLI) runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	log, closer, err := logging.New(cfg.Debug, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()

	d, err := c.build(cfg, log)
	if err != nil {
		return err
	}
	app := ui.NewApp(ui.Options{
		Sessions:  d.sessions,
		Version:   c.version,
		Cache:     d.cache,
		Creds:     d.creds,
		UI:        d.ui,
		Generator: d.gen,
		Log:       log,
	})
	if err := app.Init(cmd.Context()); err != nil {
		return err
	}
	return app.Run()
}

func (c *CLI) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.Console(c.stderr, cfg.Debug)
	d, err := c.build(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := d.sessions.Open(ctx, c.initialVersion(d)); err != nil {
		return err
	}
	srv := server.New(server.Options{Title: cfg.Title, RoutePrefix: cfg.RoutePrefix}, d.sessions, d.cache, d.creds, d.ui, d.gen, log)
	return srv.ListenAndServe(ctx, cfg.Addr)
}

// initialVersion is the --version flag, else the last version used, else
// the first configured one.
func (c *CLI) initialVersion(d *deps) string {
	versions := d.sessions.Versions()
	for _, name := range []string{c.version, d.ui.LastVersion()} {
		for _, v := range versions {
			if name != "" && v.Name == name {
				return name
			}
		}
	}
	return versions[0].Name
}

func (c *CLI) runEndpoints(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.Console(c.stderr, cfg.Debug)
	d, err := c.build(cfg, log)
	if err != nil {
		return err
	}
	sess, err := d.sessions.Open(cmd.Context(), c.initialVersion(d))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s %s\n\n", sess.Catalog.Title, sess.Catalog.Version)
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, ep := range sess.Catalog.Endpoints() {
		lock := ""
		if ep.RequiresAuth {
			lock = "auth"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ep.Tag, ep.Method, ep.Path, lock, ep.Summary)
	}
	return tw.Flush()
}

func (c *CLI) runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.Console(c.stderr, cfg.Debug)
	kv, err := store.OpenFileKV(cfg.StateFile)
	if err != nil {
		log.Warn().Err(err).Msg("state file unusable")
	}
	store.NewSessionCache(kv, log).Clear()
	fmt.Fprintln(c.stdout, "session cache cleared")
	return nil
}

// Run is the process entry point; it returns the exit code.
func Run(ctx context.Context, args []string) int {
	c := New(os.Stdout, os.Stderr)
	c.SetArgs(args)
	if err := c.rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
