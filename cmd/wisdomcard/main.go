// Package main implements the wisdomcard CLI, which composes social posts
// from wisdom content and a background, previews them, and serves the
// export API used by the web editor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"

	"tools.zach/dev/wisdomcard/internal/paths"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// defaultDataDir returns ~/.wisdomcard, or ./.wisdomcard when the home
// directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

// errUsage marks an error caused by bad arguments; run exits with status 2.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

type command struct {
	name    string
	args    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"render", "-content FILE -bg BACKGROUND [-format square|vertical] [-out PATH]", "compose and save a post image", (*app).render},
	{"text", "-content FILE", "print the post as plain text", (*app).text},
	{"preview", "-content FILE [-bg BACKGROUND] [-out FILE] [-watch]", "write an HTML preview of the post", (*app).preview},
	{"fetch", "-topic TOPIC [-view home|quran|hadith|stories] [-out DIR]", "ask the generation endpoint for content", (*app).fetch},
	{"uploads", "list|add|delete ...", "manage uploaded backgrounds", (*app).uploads},
	{"schedule", "list|add|update|delete ...", "manage the post calendar", (*app).schedule},
	{"serve", "[-addr HOST:PORT]", "run the export API", (*app).serve},
	{"logs", "[-n LINES]", "print the end of the log file", (*app).logs},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [-data-dir DIR] <command> [flags]\n\nCommands:\n", paths.BinaryName)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "  %-9s %s\n\nGlobal flags:\n", "version", "print the build version")
	fs.PrintDefaults()
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", defaultDataDir(), "Data directory for config, database, uploads, and logs")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name := fs.Arg(0)
	if name == "version" {
		fmt.Fprintln(stdout, resolveVersion())
		return 0
	}
	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return 2
	}

	a, closer, err := newApp(*dataDir, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	defer closer.Close()
	a.log.Debug("command starting", "command", name, "version", resolveVersion(), "data_dir", a.paths.Root)

	if err := cmd.run(a, ctx, fs.Args()[1:]); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "%s: %v\nUsage: %s %s %s\n", name, err, paths.BinaryName, name, cmd.args)
			return 2
		}
		a.log.Info("command failed", "command", name, "error", err)
		fmt.Fprintf(stderr, "%s: %s\n", name, strings.TrimSpace(err.Error()))
		return 1
	}
	return 0
}
