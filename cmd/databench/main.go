// databench connects to a databench analysis and drives it from the
// terminal. Signals from the backend are printed as they arrive; lines
// typed on stdin are emitted as signals.
//
// Usage:
//
//	databench --url ws://localhost:5000/dummypi/ws --button run
//	databench --page-url http://localhost:5000/dummypi/ --watch data:x
//	databench --config configs/databench.yaml
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/databench-client/internal/binding"
	"github.com/rickgao/databench-client/internal/config"
	"github.com/rickgao/databench-client/internal/connection"
	"github.com/rickgao/databench-client/internal/database"
	"github.com/rickgao/databench-client/internal/session"
	"github.com/rickgao/databench-client/internal/version"
)

var errQuit = errors.New("quit")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	url          string
	pageURL      string
	requestArgs  string
	analysisID   string
	sessionStore string
	sessionPath  string
	logLevel     string
	logFormat    string
	buttons      []string
	watches      []string
	showVersion  bool
}

func parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("databench", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flagSet.StringVar(&opts.url, "url", "", "WebSocket endpoint of the analysis")
	flagSet.StringVar(&opts.pageURL, "page-url", "", "analysis page URL; the endpoint is derived from it")
	flagSet.StringVar(&opts.requestArgs, "request-args", "", "request arguments sent with every handshake")
	flagSet.StringVar(&opts.analysisID, "analysis-id", "", "resume this backend analysis")
	flagSet.StringVar(&opts.sessionStore, "session-store", "", "where analysis ids persist: none, file or postgres")
	flagSet.StringVar(&opts.sessionPath, "session-path", "", "file session store location")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "text or json")
	flagSet.StringArrayVarP(&opts.buttons, "button", "b", nil, "action to drive with :click (repeatable)")
	flagSet.StringArrayVarP(&opts.watches, "watch", "w", nil, "print only these selectors, e.g. data:x (repeatable)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print the version and exit")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return &opts, nil
}

// buildConfig loads the config file, if any, and lets flags override it.
func buildConfig(opts *options) (*config.Config, error) {
	cfg := &config.Config{}
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Client.URL, opts.url)
	override(&cfg.Client.PageURL, opts.pageURL)
	override(&cfg.Client.RequestArgs, opts.requestArgs)
	override(&cfg.Client.AnalysisID, opts.analysisID)
	override(&cfg.Session.Store, opts.sessionStore)
	override(&cfg.Session.Path, opts.sessionPath)
	override(&cfg.Log.Level, opts.logLevel)
	override(&cfg.Log.Format, opts.logFormat)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println("databench", version.String())
		return nil
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	logger.Info("starting databench",
		"version", version.Version,
		"commit", version.Commit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	store, closeStore, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	connCfg := cfg.ConnectionConfig()
	if store != nil {
		resumed, err := session.Resume(ctx, store, &connCfg)
		if err != nil {
			logger.Warn("cannot restore session", "error", err)
		} else if resumed {
			logger.Info("resuming analysis", "analysis_id", connCfg.AnalysisID)
		}
	}

	out := &printer{w: os.Stdout}
	logs := binding.NewLog(0, 0, connection.NewSlogSink(logger))
	conn := connection.New(connCfg,
		connection.WithLogger(logger),
		connection.WithLogSink(logs),
	)

	alerts := binding.NewStatusLog(nil)
	alerts.OnChange(func(lines []string) {
		for _, line := range lines {
			out.printf("! %s\n", line)
		}
	})
	conn.SetErrorHandler(alerts.Add)

	buttons := make(map[string]*binding.Button, len(opts.buttons))
	for _, action := range opts.buttons {
		b := binding.NewButton(conn, action, logger)
		b.OnChange(func(s binding.ButtonState) { out.printf("[%s] %s\n", action, s) })
		buttons[action] = b
	}

	if len(opts.watches) == 0 {
		conn.Tap(func(m connection.Message) {
			out.printf("%s %s\n", m.Signal, m.Load)
		})
	}
	for _, w := range opts.watches {
		sel, err := connection.ParseSelector(w)
		if err != nil {
			return fmt.Errorf("--watch %q: %w", w, err)
		}
		v := binding.NewValue(conn, "", sel)
		v.OnChange(func(data json.RawMessage) { out.printf("%s = %s\n", sel, data) })
	}

	var saver connection.ReadyFunc
	if store != nil {
		saver = session.Saver(ctx, store, logger)
	}
	err = conn.Connect(ctx, func(c *connection.Connection) {
		out.printf("connected to %s (analysis %s, backend %s)\n", c.URL(), c.AnalysisID(), c.BackendVersion())
		if saver != nil {
			saver(c)
		}
	})
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string)
	go readLines(os.Stdin, lines)

	g.Go(func() error {
		return repl(gctx, conn, buttons, logs, alerts, lines, out)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("databench stopped")
	return err
}

// openSessionStore opens the configured store and, for postgres, the pool
// behind it.
func openSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	if cfg.Session.Store != config.SessionStorePostgres {
		store, err := session.Open(cfg.Session, nil)
		return store, func() {}, err
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect session database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("session database connected", "host", cfg.Database.Host)

	store, err := session.Open(cfg.Session, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// repl executes input lines until stdin closes, :quit, or ctx is done.
func repl(
	ctx context.Context,
	conn *connection.Connection,
	buttons map[string]*binding.Button,
	logs *binding.Log,
	alerts *binding.StatusLog,
	lines <-chan string,
	out *printer,
) error {
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
			if !ok {
				return errQuit
			}
		}

		cmd, err := parseLine(line)
		if err != nil {
			out.printf("%v\n", err)
			continue
		}

		switch cmd.kind {
		case cmdQuit:
			return errQuit
		case cmdEmit:
			if err := conn.Emit(cmd.signal, cmd.load); err != nil {
				out.printf("%v\n", err)
			}
		case cmdClick:
			b, ok := buttons[cmd.action]
			if !ok {
				out.printf("no button %q; known: %v\n", cmd.action, buttonNames(buttons))
				continue
			}
			id, err := b.Click()
			if err != nil {
				out.printf("%v\n", err)
				continue
			}
			out.printf("[%s] process %d\n", cmd.action, id)
		case cmdLog:
			out.printf("%s\n", logs)
		case cmdStatus:
			out.printf("state %s, analysis %q\n", conn.State(), conn.AnalysisID())
			for _, line := range alerts.Lines() {
				out.printf("! %s\n", line)
			}
		case cmdHelp:
			out.printf("%s\n", helpText)
		}
	}
}

func buttonNames(buttons map[string]*binding.Button) []string {
	names := make([]string, 0, len(buttons))
	for name := range buttons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
