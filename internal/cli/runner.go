package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/valyala/fasthttp"

	"github.com/idilsaglam/tada/internal/cache"
	"github.com/idilsaglam/tada/internal/config"
	"github.com/idilsaglam/tada/internal/logging"
	"github.com/idilsaglam/tada/internal/metrics"
	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/remote"
	"github.com/idilsaglam/tada/internal/syncer"
	"github.com/idilsaglam/tada/internal/tui"
	"github.com/idilsaglam/tada/internal/ui"
	"github.com/idilsaglam/tada/internal/view"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Options carry the process streams and test seams.
type Options struct {
	Stdout, Stderr io.Writer
	HTTPClient     *fasthttp.Client // nil uses the remote client's default
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// app is everything a subcommand needs, built once per run.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Metrics
	sync    *syncer.Synchronizer
	out     io.Writer
	errOut  io.Writer
}

// Run parses root flags, dispatches the subcommand and returns an exit code
// (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()

	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetOutput(opt.Stderr)
	fs.Usage = func() { PrintHelp(opt.Stderr) }
	cfg, err := config.Load(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		ui.Fail(opt.Stderr, err.Error())
		return ExitUsage
	}
	ui.SetTheme(cfg.Theme)

	rest := fs.Args()
	if len(rest) == 0 {
		PrintHelp(opt.Stderr)
		return ExitUsage
	}
	cmd, a := rest[0], rest[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		PrintHelp(opt.Stdout)
		return ExitOK
	}
	if !known(cmd) {
		ui.Fail(opt.Stderr, "unknown subcommand: "+cmd)
		fmt.Fprintln(opt.Stderr)
		PrintHelp(opt.Stderr)
		return ExitUsage
	}

	ap, cleanup, err := build(cfg, opt)
	if err != nil {
		ui.Fail(opt.Stderr, err.Error())
		return ExitError
	}
	defer cleanup()

	switch cmd {
	case "ls":
		return ap.interactive(ctx)
	case "list":
		return ap.doList(ctx, a)
	case "show":
		return ap.withID(ctx, "show", a, ap.doShow)
	case "add":
		if len(a) == 0 {
			ui.Fail(ap.errOut, "usage: todo add <title...>")
			return ExitUsage
		}
		return ap.doAdd(ctx, strings.Join(a, " "))
	case "edit":
		if len(a) < 2 {
			ui.Fail(ap.errOut, "usage: todo edit <id> <title...>")
			return ExitUsage
		}
		title := strings.Join(a[1:], " ")
		return ap.withID(ctx, "edit", a[:1], func(ctx context.Context, id int) int {
			return ap.doEdit(ctx, id, title)
		})
	case "done":
		return ap.withID(ctx, "done", a, ap.doToggle)
	case "rm":
		return ap.withID(ctx, "rm", a, ap.doRemove)
	}
	return ExitUsage
}

var commands = []string{"ls", "list", "show", "add", "edit", "done", "rm"}

func known(cmd string) bool {
	for _, c := range commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// build wires config into the logger, metrics, remote client, cache and
// synchronizer.
func build(cfg *config.Config, opt Options) (*app, func(), error) {
	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New()
	ropts := []remote.Option{
		remote.WithTimeout(cfg.Timeout.Duration),
		remote.WithMetrics(m),
		remote.WithLogger(logger.WithPrefix("remote")),
	}
	if opt.HTTPClient != nil {
		ropts = append(ropts, remote.WithHTTPClient(opt.HTTPClient))
	}
	client := remote.New(cfg.APIURL, ropts...)

	c, closeCache, err := cache.Open(cfg.Cache, cfg.Dir, cfg.CachePath, logger.WithPrefix("cache"))
	if err != nil {
		// the cache is optional; run without one rather than refusing to start
		logger.Warn("cache unavailable", "kind", cfg.Cache, "err", err)
		c, closeCache = cache.New(nil, logger), func() error { return nil }
	}

	s := syncer.New(client, c,
		syncer.WithLogger(logger.WithPrefix("sync")),
		syncer.WithMetrics(m),
		syncer.WithUserID(cfg.UserID),
	)
	logger.Debug("started", "api", cfg.APIURL, "cache", cfg.Cache, "enabled", c.Enabled())

	cleanup := func() {
		if err := closeCache(); err != nil {
			logger.Warn("close cache", "err", err)
		}
		_ = closeLog()
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sync:    s,
		out:     opt.Stdout,
		errOut:  opt.Stderr,
	}, cleanup, nil
}

func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `todo - offline-capable todo manager

Usage:
  todo [flags] <subcommand> [args]

Subcommands:
  ls                        Interactive list (TUI)
  list [flags]              Print one page of todos
       -search <text>         Title contains text (case-insensitive)
       -status <s>            all, completed or incomplete
       -page <n>              Page number (10 per page)
  show <id>                 Show one todo
  add <title...>            Add a todo
  edit <id> <title...>      Change a todo's title
  done <id>                 Toggle a todo's completed flag
  rm <id>                   Delete a todo
  help                      Show this help

Flags:
  -api <url>                Todo API base URL
  -cache json|sqlite|none   Local cache backend
  -cache-path <path>        Cache file
  -dir <path>               Directory for cache files (default ~/.tada)
  -timeout <duration>       Per-request timeout
  -log-file <path>          Log destination, - for stderr
  -log-level <level>        debug, info, warn, error
  -log-format <fmt>         text, json, logfmt
  -theme <name>             neon, mono, classic
  -metrics-addr <addr>      Serve Prometheus metrics while ls runs
  -user <id>                User id for new todos
  -group                    Group list output by pending/done

Config files: ~/.tada/config.toml, ./tada.toml. Env: TADA_*.

Examples:
  todo add "Buy milk"
  todo list -status incomplete -search milk
  todo done 2
  todo rm 3
`)
}

// parseID reads a positive todo id.
func parseID(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &model.ValidationError{Field: "id", Msg: "not a number: " + s}
	}
	if err := model.ValidateID(n); err != nil {
		return 0, err
	}
	return n, nil
}

func (a *app) withID(ctx context.Context, name string, args []string, fn func(context.Context, int) int) int {
	if len(args) != 1 {
		ui.Fail(a.errOut, "usage: todo "+name+" <id>")
		return ExitUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		ui.Fail(a.errOut, name+": "+err.Error())
		return ExitUsage
	}
	return fn(ctx, id)
}

// exitFor maps an error to an exit code and reports it.
func (a *app) exitFor(op string, err error) int {
	switch {
	case err == nil:
		return ExitOK
	case model.IsValidation(err):
		ui.Fail(a.errOut, op+": "+err.Error())
		return ExitUsage
	case errors.Is(err, model.ErrNotFound):
		ui.Fail(a.errOut, op+": "+err.Error())
		fmt.Fprintln(a.errOut, ui.Current().Muted.Render("Hint: run `todo list` to see valid ids"))
		return ExitError
	}
	ui.Fail(a.errOut, op+": "+err.Error())
	return ExitError
}

// load refreshes before a one-shot command. A failed refresh is a notice; the
// command continues on cached data.
func (a *app) load(ctx context.Context) {
	if err := a.sync.Refresh(ctx); err != nil {
		ui.Notice(a.errOut, "offline, using cached todos: "+err.Error())
	}
}

func (a *app) interactive(ctx context.Context) int {
	if addr := a.cfg.MetricsAddr; addr != "" {
		mctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := a.metrics.Serve(mctx, addr); err != nil {
				a.logger.Error("metrics server", "addr", addr, "err", err)
			}
		}()
	}
	if err := tui.Run(ctx, a.sync); err != nil {
		ui.Fail(a.errOut, "tui: "+err.Error())
		return ExitError
	}
	return ExitOK
}

func (a *app) doList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	search := fs.String("search", "", "title contains")
	status := fs.String("status", "all", "all, completed or incomplete")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	st, err := model.ParseStatus(*status)
	if err != nil {
		ui.Fail(a.errOut, "list: "+err.Error())
		return ExitUsage
	}

	a.load(ctx)
	state := a.sync.State()

	vs := view.NewState()
	vs.SetSearch(*search)
	vs.SetStatus(st)
	vs.SetPage(*page, state.Todos)
	fmt.Fprintln(a.out, renderList(state, vs.Apply(state.Todos), vs, a.cfg.Group))
	return ExitOK
}

func (a *app) doShow(ctx context.Context, id int) int {
	a.load(ctx)
	t, err := a.sync.Lookup(ctx, id)
	if err != nil {
		return a.exitFor("show", err)
	}
	fmt.Fprintln(a.out, renderDetail(t))
	return ExitOK
}

func (a *app) doAdd(ctx context.Context, title string) int {
	if _, err := model.ValidateTitle(title); err != nil {
		return a.exitFor("add", err)
	}
	a.load(ctx)
	t, err := a.sync.Add(ctx, title)
	if err != nil {
		return a.exitFor("add", err)
	}
	ui.OK(a.out, fmt.Sprintf("added #%d %s", t.ID, t.Title))
	return ExitOK
}

func (a *app) doEdit(ctx context.Context, id int, title string) int {
	if _, err := model.ValidateTitle(title); err != nil {
		return a.exitFor("edit", err)
	}
	a.load(ctx)
	t, err := a.sync.Edit(ctx, id, title)
	if err != nil {
		return a.exitFor("edit", err)
	}
	ui.OK(a.out, fmt.Sprintf("renamed #%d to %s", t.ID, t.Title))
	return ExitOK
}

func (a *app) doToggle(ctx context.Context, id int) int {
	a.load(ctx)
	t, err := a.sync.Toggle(ctx, id)
	if err != nil {
		return a.exitFor("done", err)
	}
	state := "pending"
	if t.Completed {
		state = "completed"
	}
	ui.OK(a.out, fmt.Sprintf("#%d marked %s", t.ID, state))
	return ExitOK
}

func (a *app) doRemove(ctx context.Context, id int) int {
	a.load(ctx)
	if err := a.sync.Delete(ctx, id); err != nil {
		return a.exitFor("rm", err)
	}
	ui.OK(a.out, fmt.Sprintf("removed #%d", id))
	return ExitOK
}
