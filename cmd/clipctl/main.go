// Command clipctl is the operator tool of the clipper API. It shares the
// server's config.toml.
//
//	clipctl [--config path] ingest --file episode.mp4 --user <id> [--name title]
//	clipctl [--config path] mark-failed --older-than 2h
//	clipctl [--config path] runs --file <uploadedFileId>
package main

import (
	"clipper/api/app"
	"clipper/api/config"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"ingest":      {"upload a local mp4 and start processing it", ingest},
	"mark-failed": {"mark files stuck in processing after a failed run as failed", markFailed},
	"runs":        {"show the processing runs of an uploaded file", runs},
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: clipctl [--config path] <command> [flags]\n\nCommands:")
	for _, name := range []string{"ingest", "mark-failed", "runs"} {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", name, commands[name].usage)
	}
}

func main() {
	global := pflag.NewFlagSet("clipctl", pflag.ExitOnError)
	configPath := global.String("config", "", "Path to a config.toml file")
	global.SetInterspersed(false)
	global.Usage = usage

	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	if err := config.Load(*configPath); err != nil {
		fatal(err)
	}

	if err := config.Validate(); err != nil {
		fatal(fmt.Errorf("invalid configuration, %w", err))
	}

	if err := app.MakeLogger("warn"); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, args[1:]); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "clipctl:", err)
	os.Exit(1)
}
