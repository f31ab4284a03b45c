package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okvist/parley/internal/localstore"
	"github.com/okvist/parley/internal/syncer"
)

type programRunner interface {
	Run() (tea.Model, error)
}

type programFactory func(tea.Model, ...tea.ProgramOption) programRunner

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, newProgram programFactory) error {
	fs := flag.NewFlagSet("parley", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverAddr := fs.String("server", "", "parley server address")
	fallbackPath := fs.String("fallback-db", "", "path to the offline fallback database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *fallbackPath
	if path == "" {
		var err error
		path, err = localstore.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve fallback path: %w", err)
		}
	}
	local, err := localstore.Open(path)
	if err != nil {
		return fmt.Errorf("open fallback store: %w", err)
	}
	defer func() { _ = local.Close() }()

	newGateway := func(serverURL string) (*syncer.Gateway, *syncer.Poller) {
		gateway := syncer.NewGateway(syncer.NewRemote(serverURL), local)
		return gateway, syncer.NewPoller(gateway)
	}
	m := newRootModel(*serverAddr, newGateway)

	if newProgram == nil {
		newProgram = func(model tea.Model, options ...tea.ProgramOption) programRunner {
			return tea.NewProgram(model, options...)
		}
	}

	p := newProgram(m, tea.WithAltScreen(), tea.WithInput(stdin), tea.WithOutput(stdout))
	_, err = p.Run()
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
