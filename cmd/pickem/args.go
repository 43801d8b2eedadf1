package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/fortuna/pickem/internal/task"
)

const cmdMigrate = "migrate"

var errUsage = errors.New("usage")

// command is one parsed invocation of the CLI
type command struct {
	name    string
	request task.Request
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\nCommands:\n", appName)
	fmt.Fprintln(w, "  sync-teams                      import all teams")
	fmt.Fprintln(w, "  sync-season   -year Y           import the season schedule")
	fmt.Fprintln(w, "  update-games  -year Y -week W   refresh scores and statuses")
	fmt.Fprintln(w, "  setup-betting -year Y -week W   refresh games and import betting lines")
	fmt.Fprintln(w, "  grade-picks   -year Y -week W   refresh games and grade pending picks")
	fmt.Fprintln(w, "  migrate                         apply database migrations")
}

// parseArgs turns os.Args[1:] into a command. The request is validated for
// task commands.
func parseArgs(args []string, output io.Writer) (command, error) {
	if len(args) == 0 {
		usage(output)
		return command{}, errUsage
	}

	name := args[0]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	if name == cmdMigrate {
		if err := fs.Parse(args[1:]); err != nil {
			return command{}, err
		}
		return command{name: name}, nil
	}

	req := task.Request{Task: task.Name(name)}
	if !req.Task.Known() {
		usage(output)
		return command{}, fmt.Errorf("unknown command %q", name)
	}

	if req.Task.NeedsYear() {
		fs.IntVar(&req.Year, "year", 0, "Season year (e.g. 2024)")
	}
	if req.Task.NeedsWeek() {
		fs.IntVar(&req.Week, "week", 0, "Regular-season week (1-18)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return command{}, err
	}
	if fs.NArg() > 0 {
		return command{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if err := req.Validate(); err != nil {
		return command{}, err
	}
	return command{name: name, request: req}, nil
}
