// Package main provides lifebadge - lifecycle status badge for remote services.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/lifebadge/pkg/badge"
	"github.com/umputun/lifebadge/pkg/config"
	"github.com/umputun/lifebadge/pkg/lifecycle"
	"github.com/umputun/lifebadge/pkg/notify"
	"github.com/umputun/lifebadge/pkg/watch"
	"github.com/umputun/lifebadge/pkg/web"
)

// opts holds all command-line options.
type opts struct {
	Host          string        `long:"host" env:"LIFEBADGE_HOST" description:"target host"`
	Port          int           `short:"p" long:"port" env:"LIFEBADGE_PORT" description:"target lifecycle port (default 8077)"`
	Timeout       time.Duration `long:"timeout" description:"per-attempt fetch timeout"`
	Retries       int           `long:"retries" description:"retries on transport and 5xx errors"`
	Watch         bool          `short:"w" long:"watch" description:"keep polling the target"`
	Interval      time.Duration `short:"i" long:"interval" description:"poll interval in watch mode"`
	Format        string        `short:"f" long:"format" default:"text" description:"output format: text, json, yaml or html"`
	Serve         bool          `short:"s" long:"serve" description:"start web dashboard, implies --watch"`
	DashboardPort int           `long:"dashboard-port" description:"web dashboard port"`
	Publish       int           `long:"publish" description:"serve a lifecycle endpoint of this process on the given port"`
	PublishState  string        `long:"publish-state" default:"Started" description:"state reported by --publish"`
	PublishReason string        `long:"publish-reason" description:"reason reported by --publish"`
	ConfigDir     string        `long:"config-dir" env:"LIFEBADGE_CONFIG_DIR" description:"global config directory"`
	NoColor       bool          `long:"no-color" description:"disable color output"`
	Debug         bool          `short:"d" long:"debug" description:"enable debug logging"`
	Version       bool          `short:"v" long:"version" description:"print version and exit"`

	Location string `positional-arg-name:"location" description:"admin console address with #/host/tab fragment (optional)"`

	retriesSet bool // --retries given explicitly, zero included
}

var revision = "unknown"

// errNoTarget is returned when neither flags, location nor config name a target host.
var errNoTarget = errors.New("target host is required, use --host, a #/host location or host in config")

// errUnreachable marks a single-shot run where the lifecycle endpoint could not be read.
// the badge is still rendered, the process exits with code 2.
var errUnreachable = errors.New("lifecycle endpoint unreachable")

func main() {
	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "[OPTIONS] [location]"

	args, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		fmt.Printf("lifebadge %s\n", revision)
		os.Exit(0)
	}

	if len(args) > 0 {
		o.Location = args[0]
	}
	if opt := parser.FindOptionByLongName("retries"); opt != nil {
		o.retriesSet = opt.IsSet()
	}

	setupLog(o.Debug, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runCLI(ctx, o, os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// quietTerminal is replaced in tests.
var quietTerminal = quietInterrupt

// runCLI runs lifebadge and returns the process exit code. terminal settings changed for
// long-running modes are restored before it returns, whatever the outcome.
func runCLI(ctx context.Context, o opts, stdin *os.File, stdout, stderr io.Writer) int {
	if o.Watch || o.Serve || o.Publish > 0 {
		restore := quietTerminal(stdin)
		defer restore()
	}

	err := run(ctx, o, stdout)
	if err != nil && !errors.Is(err, errUnreachable) {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps a run error to the process exit code: 2 for an unreachable endpoint
// in single-shot mode, 1 for any other error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUnreachable):
		return 2
	default:
		return 1
	}
}

// setupLog configures the global logger. logs go to errW to keep stdout for badge output.
func setupLog(debug bool, errW io.Writer, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.Out(errW), lgr.Err(errW)}
	if debug {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.Out(errW), lgr.Err(errW)}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.Setup(logOpts...)
}

func run(ctx context.Context, o opts, stdout io.Writer) error {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, o)
	if secrets := notifySecrets(cfg); len(secrets) > 0 {
		setupLog(o.Debug, os.Stderr, secrets...)
	}

	format, err := badge.ParseFormat(o.Format)
	if err != nil {
		return err
	}

	color.NoColor = o.NoColor || !isTerminal(stdout)
	colors := badge.NewColors(cfg.Colors)

	if o.Publish > 0 {
		mgr := lifecycle.NewManager(lgr.Default())
		mgr.Set(o.PublishState, o.PublishReason)
		go func() {
			if srvErr := mgr.Serve(ctx, o.Publish); srvErr != nil {
				lgr.Printf("[ERROR] lifecycle endpoint: %v", srvErr)
			}
		}()
		lgr.Printf("[INFO] publishing lifecycle on :%d%s", o.Publish, lifecycle.Path)
	}

	target, err := resolveTarget(cfg, o)
	if err != nil {
		if errors.Is(err, errNoTarget) && o.Publish > 0 {
			<-ctx.Done() // publish only
			return nil
		}
		return err
	}

	client := lifecycle.NewClient(lifecycle.ClientOpts{
		Timeout: cfg.Timeout(),
		Retries: cfg.Retries,
		Logger:  lgr.Default(),
	})
	builder := badge.NewBuilder(cfg.Resolver())

	if !o.Watch && !o.Serve {
		return checkOnce(ctx, client, builder, target, format, stdout, colors)
	}

	var liveColors atomic.Pointer[badge.Colors]
	liveColors.Store(colors)
	startReloader(ctx, cfg, func(c *config.Config) {
		builder.SetResolver(c.Resolver())
		liveColors.Store(badge.NewColors(c.Colors))
	})

	return watchTarget(ctx, cfg, o, watch.Config{
		Target:   target,
		Interval: cfg.WatchInterval(),
		Fetcher:  client,
		Builder:  builder,
		Logger:   lgr.Default(),
		OnBadge: func(b badge.Badge) {
			if wErr := badge.Write(stdout, format, b, liveColors.Load()); wErr != nil {
				lgr.Printf("[WARN] failed to write badge: %v", wErr)
			}
		},
	})
}

// startReloader applies style and color changes from edited config files while watching.
// other settings need a restart. failing to set up the file watcher only disables reloading.
func startReloader(ctx context.Context, cfg *config.Config, apply func(*config.Config)) {
	r, err := config.NewReloader(cfg, lgr.Default())
	if err != nil {
		lgr.Printf("[WARN] config reload disabled: %v", err)
		return
	}
	go func() {
		if err := r.Run(ctx, apply); err != nil && ctx.Err() == nil {
			lgr.Printf("[WARN] config reload stopped: %v", err)
		}
	}()
}

// checkOnce fetches and renders a single badge. a failed fetch still renders an Unreachable badge.
func checkOnce(ctx context.Context, client *lifecycle.Client, builder *badge.Builder, target lifecycle.Target,
	format badge.Format, stdout io.Writer, colors *badge.Colors) error {
	st, fetchErr := client.Fetch(ctx, target)
	b := builder.FromStatus(target.String(), st)
	if fetchErr != nil {
		b = builder.FromError(target.String(), fetchErr)
	}

	if err := badge.Write(stdout, format, b, colors); err != nil {
		return err
	}
	if fetchErr != nil {
		lgr.Printf("[DEBUG] fetch failed: %v", fetchErr)
		return errUnreachable
	}
	return nil
}

// watchTarget runs the polling loop, optionally with the dashboard and notifications, until ctx is done.
func watchTarget(ctx context.Context, cfg *config.Config, o opts, wcfg watch.Config) error {
	notifier, err := notify.New(notifyParams(cfg), lgr.Default())
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	if notifier != nil {
		wcfg.Notifier = notifier
	}

	if o.Serve {
		srv, srvErr := web.NewServer(web.ServerConfig{
			Port:   cfg.DashboardPort,
			Target: wcfg.Target.String(),
		}, web.NewHub(), web.NewBuffer(web.DefaultBufferSize), lgr.Default())
		if srvErr != nil {
			return fmt.Errorf("dashboard: %w", srvErr)
		}
		wcfg.Publisher = srv

		go func() {
			if err := srv.Start(ctx); err != nil {
				lgr.Printf("[ERROR] web server: %v", err)
			}
		}()
	}

	w, err := watch.New(wcfg)
	if err != nil {
		return err
	}
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// resolveTarget picks the target: --host first, then the location fragment, then config.
// the port is --port when given, otherwise the configured one, whatever the host source.
func resolveTarget(cfg *config.Config, o opts) (lifecycle.Target, error) {
	port := cfg.Port
	if o.Port > 0 {
		port = o.Port
	}

	switch {
	case o.Host != "":
		return lifecycle.NewTarget(o.Host, port) //nolint:wrapcheck // already descriptive
	case o.Location != "":
		frag, err := lifecycle.ParseFragment(o.Location)
		if err != nil {
			return lifecycle.Target{}, err //nolint:wrapcheck // already descriptive
		}
		t, err := lifecycle.NewTarget(frag.Host, port)
		if err != nil {
			return lifecycle.Target{}, fmt.Errorf("location %q: %w", o.Location, err)
		}
		t.Tab = frag.Tab
		return t, nil
	case cfg.Host != "":
		return lifecycle.NewTarget(cfg.Host, port) //nolint:wrapcheck // already descriptive
	default:
		return lifecycle.Target{}, errNoTarget
	}
}

// applyOverrides copies explicitly given flags over config values.
func applyOverrides(cfg *config.Config, o opts) {
	if o.Port > 0 {
		cfg.Port = o.Port
	}
	if o.Timeout > 0 {
		cfg.TimeoutMs = int(o.Timeout / time.Millisecond)
	}
	if o.retriesSet {
		cfg.Retries = max(o.Retries, 0)
	}
	if o.Interval > 0 {
		cfg.WatchIntervalMs = int(o.Interval / time.Millisecond)
	}
	if o.DashboardPort > 0 {
		cfg.DashboardPort = o.DashboardPort
	}
}

// notifyParams maps notification config values to notify.Params.
func notifyParams(cfg *config.Config) notify.Params {
	return notify.Params{
		Channels:      cfg.NotifyChannels,
		OnFailure:     cfg.NotifyOnFailure,
		OnRecovery:    cfg.NotifyOnRecovery,
		TimeoutMs:     cfg.NotifyTimeoutMs,
		TelegramToken: cfg.NotifyTelegramToken,
		TelegramChat:  cfg.NotifyTelegramChat,
		SlackToken:    cfg.NotifySlackToken,
		SlackChannel:  cfg.NotifySlackChannel,
		SMTPHost:      cfg.NotifySMTPHost,
		SMTPPort:      cfg.NotifySMTPPort,
		SMTPUsername:  cfg.NotifySMTPUsername,
		SMTPPassword:  cfg.NotifySMTPPassword,
		SMTPStartTLS:  cfg.NotifySMTPStartTLS,
		EmailFrom:     cfg.NotifyEmailFrom,
		EmailTo:       cfg.NotifyEmailTo,
		WebhookURLs:   cfg.NotifyWebhookURLs,
		CustomScript:  cfg.NotifyCustomScript,
	}
}

// notifySecrets lists configured credentials to be masked in logs.
func notifySecrets(cfg *config.Config) []string {
	var res []string
	for _, s := range []string{cfg.NotifyTelegramToken, cfg.NotifySlackToken, cfg.NotifySMTPPassword} {
		if s != "" {
			res = append(res, s)
		}
	}
	return res
}
