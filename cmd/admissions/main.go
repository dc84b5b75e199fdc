// Command admissions runs the SHS admission workflow: the HTTP dashboard,
// scheduled backups and one-shot administrative actions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"admissions/internal/config"
)

var exitFunc = os.Exit

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"serve":      {"serve [-addr host:port]", runServe},
	"issue":      {"issue -name N -class C -gender Male|Female -cheat NUMBER", runIssue},
	"sell":       {"sell ID", runSell},
	"pay":        {"pay [-amount GH₵] ID", runPay},
	"bio":        {"bio ID", runBio},
	"transcript": {"transcript ID", runTranscript},
	"review":     {"review -approve|-decline ID", runReview},
	"view":       {"view overview|headmaster|secretary|accountant|dataentry|rector|student ID", runView},
	"export":     {"export", runExport},
	"roster":     {"roster [-out FILE]", runRoster},
	"backups":    {"backups", runBackups},
	"prune":      {"prune [-keep N]", runPrune},
	"import":     {"import KEY", runImport},
	"insights":   {"insights", runInsights},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("admissions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath string
	fs.StringVar(&configPath, "config", "", "path to a YAML config file")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage(fs, stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		usage(fs, stderr)
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close store")
		}
	}()

	if err := cmd.run(ctx, a, rest[1:], stdout); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "usage: admissions %s\n", cmd.usage)
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", rest[0], err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: admissions [-config FILE] COMMAND [ARGS]")
	fs.PrintDefaults()
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }
