package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/danmuck/wrapctl/internal/config"
	"github.com/danmuck/wrapctl/internal/logging"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "local/wrapctl.toml"

func main() {
	logging.ConfigureRuntime("wrapctl")
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("wrapctl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", defaultConfigPath, "path to wrapctl config")
	flags.Usage = func() { usage(flags) }
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		usage(flags)
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "wrapctl: %v\n", err)
		return 1
	}
	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "wrapctl: %v\n", err)
		return 1
	}

	rest := flags.Args()
	switch rest[0] {
	case "run":
		return a.runTool(rest[1:], stdout, stderr)
	case "prefs":
		return a.prefsCommand(rest[1:], stdout, stderr)
	case "serve":
		if err := a.serve(); err != nil {
			fmt.Fprintf(stderr, "wrapctl: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "wrapctl: unknown command %q\n", rest[0])
		usage(flags)
		return 2
	}
}

// loadConfig falls back to defaults when the file does not exist.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("config not found, using defaults")
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}
	log.Debug().Str("path", path).Msg("loaded config")
	return cfg, nil
}

func usage(flags *flag.FlagSet) {
	out := flags.Output()
	fmt.Fprintln(out, "usage: wrapctl [-config path] <command> [args...]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  run stardist <selector> [args...]  run a StarDist entry point")
	fmt.Fprintln(out, "  run transformix [args...]          run transformix with the given arguments")
	fmt.Fprintln(out, "  prefs show                         print stored preferences")
	fmt.Fprintln(out, "  prefs set-env-dir <dir>            set the StarDist environment directory")
	fmt.Fprintln(out, "  prefs set-env-type <conda|venv>    set the StarDist environment type")
	fmt.Fprintln(out, "  prefs set-exe <path>               set the transformix executable")
	fmt.Fprintln(out, "  prefs exe-in-path                  resolve transformix through PATH")
	fmt.Fprintln(out, "  serve                              serve tools over HTTP")
	fmt.Fprintln(out, "")
	flags.PrintDefaults()
}
