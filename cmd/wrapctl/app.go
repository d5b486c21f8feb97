package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danmuck/wrapctl/internal/auth"
	"github.com/danmuck/wrapctl/internal/config"
	"github.com/danmuck/wrapctl/internal/envexec"
	"github.com/danmuck/wrapctl/internal/prefs"
	"github.com/danmuck/wrapctl/internal/server"
	"github.com/danmuck/wrapctl/internal/wrappers"
)

const cliDrainTimeout = 30 * time.Second

type app struct {
	cfg         config.Config
	prefs       *prefs.Store
	stardist    *wrappers.Stardist
	transformix *wrappers.Transformix
	registry    *wrappers.Registry
}

func newApp(cfg config.Config) (*app, error) {
	store, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		return nil, err
	}
	launcher, platform, err := cfg.Launcher()
	if err != nil {
		return nil, err
	}
	drain, err := cfg.Run.DrainTimeoutDuration()
	if err != nil {
		return nil, err
	}
	// The process exits right after the tool does, so output is always joined.
	if drain <= 0 {
		drain = cliDrainTimeout
	}

	executor := envexec.NewExecutor("", launcher).WithDrainTimeout(drain)
	executor.Platform = platform

	a := &app{
		cfg:         cfg,
		prefs:       store,
		stardist:    wrappers.NewStardist(store, executor),
		transformix: wrappers.NewTransformix(store, executor),
		registry:    wrappers.NewRegistry(),
	}
	if err := a.registry.Register(a.stardist); err != nil {
		return nil, err
	}
	if err := a.registry.Register(a.transformix); err != nil {
		return nil, err
	}
	return a, nil
}

// runTool returns the child's exit code, or 1 when nothing could be run.
func (a *app) runTool(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "wrapctl: run needs a tool: stardist|transformix")
		return 2
	}

	sink := envexec.WriterSink(stdout)
	var (
		outcome envexec.Outcome
		err     error
	)
	switch args[0] {
	case wrappers.StardistID:
		if len(args) < 2 {
			fmt.Fprintf(stderr, "wrapctl: run stardist needs a selector (%s|%s)\n", wrappers.Predict2D, wrappers.Predict3D)
			return 2
		}
		outcome, err = a.stardist.Execute(args[1:], sink)
	case wrappers.TransformixID:
		outcome, err = a.transformix.ExecuteWith(args[1:], sink)
	default:
		fmt.Fprintf(stderr, "wrapctl: unknown tool %q\n", args[0])
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "wrapctl: %v\n", err)
		return 1
	}
	return outcome.ExitCode
}

func (a *app) prefsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "wrapctl: prefs needs a subcommand: show|set-env-dir|set-env-type|set-exe|exe-in-path")
		return 2
	}

	var err error
	switch args[0] {
	case "show":
		p := a.prefs.Snapshot()
		fmt.Fprintf(stdout, "path = %s\n", a.prefs.Path())
		fmt.Fprintf(stdout, "stardist_env_dir = %s\n", p.StardistEnvDir)
		fmt.Fprintf(stdout, "stardist_env_type = %s\n", p.StardistEnvType)
		fmt.Fprintf(stdout, "transformix_exe_path = %s\n", p.TransformixExePath)
		return 0
	case "set-env-dir":
		err = withValue(args, a.prefs.SetStardistEnvDir)
	case "set-env-type":
		err = withValue(args, a.prefs.SetStardistEnvType)
	case "set-exe":
		err = withValue(args, a.prefs.SetTransformixExePath)
	case "exe-in-path":
		err = a.prefs.NotifyTransformixInPath()
	default:
		fmt.Fprintf(stderr, "wrapctl: unknown prefs subcommand %q\n", args[0])
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "wrapctl: %v\n", err)
		return 1
	}
	return 0
}

func withValue(args []string, set func(string) error) error {
	if len(args) != 2 {
		return fmt.Errorf("prefs %s takes exactly one value", args[0])
	}
	return set(args[1])
}

func (a *app) serve() error {
	s := server.New(a.cfg.Server.ID, a.cfg.Server.Addr, a.cfg.Server.CorsOrigins, a.registry)
	if token := strings.TrimSpace(a.cfg.Server.AuthToken); token != "" {
		s.Auth = auth.StaticToken{Token: token}
	}
	return s.Serve()
}
