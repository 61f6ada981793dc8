// Command dossier searches for everything linked to a person from free-form text.
//
// Usage:
//
//	dossier "John Doe jdoe@example.com +1 415 555 1234"
//	dossier -u jdoe -e jdoe@example.com -format csv
//	dossier -config dossier.yaml -serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/dossier/internal/config"
	"github.com/codeGROOVE-dev/dossier/internal/metrics"
	"github.com/codeGROOVE-dev/dossier/internal/server"
	"github.com/codeGROOVE-dev/dossier/pkg/dossier"
	"github.com/codeGROOVE-dev/dossier/pkg/export"
	"github.com/codeGROOVE-dev/dossier/pkg/smart"
	"github.com/codeGROOVE-dev/dossier/pkg/store"
)

var errUsage = errors.New("usage")

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

//nolint:govet // fieldalignment: intentional layout for readability
type options struct {
	configPath  string
	region      string
	usernames   listFlag
	emails      listFlag
	phones      listFlag
	names       listFlag
	timeout     time.Duration
	persist     bool
	format      string
	debug       bool
	logJSON     bool
	noCache     bool
	cacheTTL    time.Duration
	noBrowser   bool
	excludeNSFW bool
	serve       bool
	text        string
	set         map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	switch {
	case errors.Is(err, errUsage):
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("dossier", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&o.region, "region", "", "two-letter region for parsing national phone numbers")
	fs.Var(&o.usernames, "u", "username hint (repeatable)")
	fs.Var(&o.emails, "e", "email hint (repeatable)")
	fs.Var(&o.phones, "p", "phone hint (repeatable)")
	fs.Var(&o.names, "n", "full name hint (repeatable)")
	fs.DurationVar(&o.timeout, "timeout", 0, "bound on each username search (default from config, 30s)")
	fs.BoolVar(&o.persist, "persist", false, "save the result to the configured store")
	fs.StringVar(&o.format, "format", "json", "output format: json or csv")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&o.debug, "v", false, "verbose logging (same as -debug)")
	fs.BoolVar(&o.logJSON, "log-json", false, "write logs as JSON")
	fs.BoolVar(&o.noCache, "no-cache", false, "disable HTTP caching (enabled by default with 75-day TTL)")
	fs.DurationVar(&o.cacheTTL, "cache-ttl", dossier.DefaultCacheTTL, "cache time-to-live")
	fs.BoolVar(&o.noBrowser, "no-browser", false, "disable reading cookies from browser stores")
	fs.BoolVar(&o.excludeNSFW, "exclude-nsfw", false, "skip adult platforms in username searches")
	fs.BoolVar(&o.serve, "serve", false, "run the HTTP API instead of a single search")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: dossier [options] <free text...>")
		fmt.Fprintln(stderr, "       dossier [options] -serve")
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr, "\nUsernames, emails, phone numbers, and names are pulled out of the text,")
		fmt.Fprintln(stderr, "looked up concurrently, and ranked as candidates by confidence.")
	}
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}

	o.text = strings.Join(fs.Args(), " ")
	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	hasInput := strings.TrimSpace(o.text) != "" ||
		len(o.usernames)+len(o.emails)+len(o.phones)+len(o.names) > 0
	if !o.serve && !hasInput {
		fs.Usage()
		return nil, errUsage
	}
	if o.format != string(export.FormatJSON) && o.format != string(export.FormatCSV) {
		fmt.Fprintf(stderr, "unknown format %q\n", o.format)
		return nil, errUsage
	}
	return o, nil
}

// merge applies explicitly set flags over file configuration.
func (o *options) merge(cfg *config.Config) {
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	if o.logJSON {
		cfg.Logging.JSON = true
	}
	if o.noCache {
		off := false
		cfg.Cache.Enabled = &off
	}
	if o.set["cache-ttl"] {
		cfg.Cache.TTL = config.Duration(o.cacheTTL)
	}
	if o.noBrowser {
		off := false
		cfg.Usernames.BrowserCookies = &off
	}
	if o.excludeNSFW {
		cfg.Search.ExcludeNSFW = true
	}
	if o.timeout > 0 {
		cfg.Search.Timeout = config.Duration(o.timeout)
	}
	if o.persist {
		cfg.Search.Persist = true
	}
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// serviceOptions maps configuration onto the service builder.
func serviceOptions(cfg *config.Config, logger *slog.Logger) []dossier.Option {
	opts := []dossier.Option{
		dossier.WithLogger(logger),
		dossier.WithHTTPTimeout(cfg.HTTP.Timeout.D()),
		dossier.WithPlatforms(cfg.Usernames.Platforms...),
		dossier.WithHIBPKey(cfg.Email.HIBPAPIKey),
		dossier.WithGitHubToken(cfg.Email.GitHubToken),
		dossier.WithNumLookupKey(cfg.Phone.NumLookupAPIKey),
		dossier.WithDefaultRegion(cfg.Phone.DefaultRegion),
		dossier.WithEngines(cfg.WebSearch.Engines...),
		dossier.WithConcurrency(cfg.Search.MaxConcurrency),
		dossier.WithWebResults(cfg.Search.WebResults),
		dossier.WithExcludeNSFW(cfg.Search.ExcludeNSFW),
		dossier.WithEmailProfiles(cfg.Email.Profiles()),
	}
	switch {
	case !cfg.Cache.On():
		opts = append(opts, dossier.WithoutCache())
	case cfg.Cache.RedisAddr != "":
		opts = append(opts, dossier.WithCache(cfg.Cache.TTL.D(), ""), dossier.WithRedisCache(cfg.Cache.RedisAddr))
	default:
		opts = append(opts, dossier.WithCache(cfg.Cache.TTL.D(), cfg.Cache.Dir))
	}
	if cfg.Usernames.Browser() {
		opts = append(opts, dossier.WithBrowserCookies())
	}
	return opts
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.merge(&cfg)
	logger := newLogger(cfg.Logging, stderr)

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	opts := append(serviceOptions(&cfg, logger), dossier.WithStore(st))
	if o.serve {
		opts = append(opts, dossier.WithObserver(metrics.Collector{}))
	}
	svc, err := dossier.New(ctx, opts...)
	if err != nil {
		_ = st.Close() //nolint:errcheck // already failing
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close service", "error", err)
		}
	}()

	if o.serve {
		return server.ListenAndServe(ctx, server.New(svc, st, logger).Routes(), server.Options{
			Addr:            cfg.Server.Listen,
			ReadTimeout:     cfg.Server.ReadTimeout.D(),
			WriteTimeout:    cfg.Server.WriteTimeout.D(),
			ShutdownTimeout: cfg.Server.ShutdownTimeout.D(),
		}, logger)
	}

	in := smart.Input{
		Text:      o.text,
		Region:    o.region,
		Usernames: o.usernames,
		Emails:    o.emails,
		Phones:    o.phones,
		Names:     o.names,
	}
	searchOpts := []smart.SearchOption{smart.WithTimeout(cfg.Search.Timeout.D())}
	if cfg.Search.Persist {
		searchOpts = append(searchOpts, smart.WithPersist())
	}
	res := svc.Search(ctx, in, searchOpts...)
	return export.Write(stdout, export.Format(o.format), res)
}
