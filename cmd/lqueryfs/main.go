// lqueryfs serves a document driven by lQuery ctl scripts over 9p or http.
package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/psilva261/lqueryfs/config"
	"github.com/psilva261/lqueryfs/logger"
	"github.com/psilva261/lqueryfs/runner"
	"github.com/psilva261/lqueryfs/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"
)

var (
	cfg      *config.Config
	lg       *zap.Logger
	closeLog func() error
	htm      string
	scripts  []string
	origin   string

	errWasHandled bool
)

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	configFile := cmd.String("config")
	if cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		log.Debug = true
		cfg.Logging.ConsoleLogger.Level = "debug"
	}
	if lg, closeLog, err = cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	log.SetLogger(lg)
	origin = cfg.Runner.Origin

	lg.Debug("program started", zap.Strings("args", os.Args), zap.String("runtime", runtime.Version()))
	if len(configFile) == 0 {
		lg.Debug("using defaults (no configuration file)")
	}
	return ctx, nil
}

func after(ctx context.Context, cmd *cli.Command) (err error) {
	if lg == nil {
		return
	}
	lg.Debug("program ended", zap.Strings("parsed args", cmd.Args().Slice()))
	// stdout and stderr cannot always be synced
	_ = lg.Sync()
	if closeLog != nil {
		if er := closeLog(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close log file: %w", er))
		}
	}
	return
}

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	if lg != nil {
		lg.Error("program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

// load reads the html file and the script files.
func load(cmd *cli.Command) error {
	if f := cmd.String("html"); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		htm = string(b)
	}
	scripts = scripts[:0]
	for _, f := range cmd.Args().Slice() {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		scripts = append(scripts, string(b))
	}
	return nil
}

func newRunner(xhr func(*http.Request) (*http.Response, error), opts ...runner.Option) (*runner.Runner, error) {
	if len(htm) > 50 {
		log.Printf("htm=%v...", htm[:50])
	} else {
		log.Printf("htm=%v", htm)
	}
	opts = append(cfg.RunnerOptions(), append(opts, runner.WithLogger(lg), runner.WithOrigin(origin))...)
	return runner.New(htm, xhr, opts...)
}

// boot starts r, runs the page and script files and returns the html if
// it changed.
func boot(r *runner.Runner) (resHtm string, changed bool, err error) {
	r.Start()
	if err = r.Boot(scripts...); err != nil {
		return "", false, fmt.Errorf("boot: %w", err)
	}
	return r.TrackChanges()
}

func runScripts(ctx context.Context, cmd *cli.Command) (err error) {
	if err = load(cmd); err != nil {
		return
	}
	if htm == "" {
		return errors.New("no html file has been specified")
	}
	r, err := newRunner(nil)
	if err != nil {
		return
	}
	defer r.Stop()
	resHtm, changed, err := boot(r)
	if err != nil {
		return
	}
	if !changed {
		if resHtm, err = r.HTML(); err != nil {
			return
		}
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, resHtm)
	return
}

func serveHTTP(ctx context.Context, cmd *cli.Command) (err error) {
	if err = load(cmd); err != nil {
		return
	}
	if htm == "" {
		return errors.New("no html file has been specified")
	}
	addr := cmd.String("listen")
	if addr == "" {
		addr = cfg.Server.Listen
	}
	m := server.NewMetrics(nil)
	r, err := newRunner(nil, runner.WithObserver(m.Observe))
	if err != nil {
		return
	}
	defer r.Stop()
	if _, _, err = boot(r); err != nil {
		return
	}
	s := server.New(r, m, lg)
	defer s.Close()

	hs := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.ListenAndServe()
	}()
	lg.Info("listening", zap.String("addr", addr))
	select {
	case err = <-errCh:
		return
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(sctx)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) (err error) {
	var data []byte
	if cmd.Bool("default") {
		data, err = config.Prepare()
	} else {
		data, err = config.Dump(cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}
	fname := cmd.Args().Get(0)
	if fname == "" {
		_, err = cmd.Root().Writer.Write(data)
		return
	}
	return os.WriteFile(fname, data, 0644)
}

func htmlFlag() cli.Flag {
	return &cli.StringFlag{Name: "html", Usage: "load the page from `FILE`"}
}

func app() *cli.Command {
	return &cli.Command{
		Name:            "lqueryfs",
		Usage:           "document runtime driven by lQuery ctl scripts",
		HideHelpCommand: true,
		Before:          before,
		After:           after,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log debug messages"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Runs ctl scripts against a page and prints the resulting html",
				Flags:     []cli.Flag{htmlFlag()},
				ArgsUsage: "SCRIPT...",
				Action:    runScripts,
			},
			{
				Name:  "serve9p",
				Usage: "Serves the page as a 9p file system with html and ctl files",
				Flags: []cli.Flag{
					htmlFlag(),
					&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "post the fs as `SERVICE`"},
				},
				ArgsUsage: "SCRIPT...",
				Action:    serve9p,
			},
			{
				Name:  "http",
				Usage: "Serves the page over http",
				Flags: []cli.Flag{
					htmlFlag(),
					&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen on `ADDR`"},
				},
				ArgsUsage: "SCRIPT...",
				Action:    serveHTTP,
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				ArgsUsage: "[DESTINATION]",
				Action:    outputConfiguration,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	var err error
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app().Run(ctx, os.Args)
}
