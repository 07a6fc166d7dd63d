// Command yaha aggregates domain blocklists into hosts files.
//
// Usage:
//
//	yaha compile [--force] [--compile-only] [flags]
//	yaha serve [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/phrazzld/yaha/internal/app"
	"github.com/phrazzld/yaha/internal/config"
	"github.com/phrazzld/yaha/internal/platform/logger"
)

const usage = `Usage: yaha <command> [flags]

Commands:
  compile   fetch sources and publish the hosts files
  serve     serve the published files and metrics over HTTP

Run 'yaha <command> --help' for the flags of a command.
`

var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "yaha: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cmd, args := args[0], args[1:]
	fs := pflag.NewFlagSet("yaha "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)

	var opts app.Options
	switch cmd {
	case "compile":
		fs.BoolVar(&opts.Force, "force", false, "compile even when no source changed")
		fs.BoolVar(&opts.CompileOnly, "compile-only", false, "skip fetching and compile from the content cache")
	case "serve":
	case "help", "-h", "--help":
		fmt.Fprint(stderr, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, log)
	switch cmd {
	case "compile":
		_, err = a.Compile(ctx, opts)
	case "serve":
		err = a.Serve(ctx)
	}
	if err != nil {
		log.Error("command failed", "command", cmd, "error", err)
	}
	return err
}
