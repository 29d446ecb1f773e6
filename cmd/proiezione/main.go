// Command proiezione runs wealth projections from the terminal and manages
// the saved life events they apply.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"

	"patrimonio/internal/cli"
	"patrimonio/internal/config"
	"patrimonio/internal/log"
)

func main() {
	cfg := cli.LoadConfig()

	var dbPath string
	var verbose bool
	flag.StringVar(&dbPath, "db", cfg.SQLiteDBPath, "Path to the SQLite database holding saved life events")
	flag.BoolVar(&verbose, "v", false, "Log engine activity to stderr")

	env := &environment{cfg: cfg, dbPath: &dbPath, verbose: &verbose}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&runCmd{env: env}, "projection")

	commander.Register(&eventsCmd{env: env}, "life events")
	commander.Register(&addEventCmd{env: env}, "life events")
	commander.Register(&rmEventCmd{env: env}, "life events")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// environment carries the global flags to the subcommands, which only read
// them after flag.Parse.
type environment struct {
	cfg     *config.Config
	dbPath  *string
	verbose *bool
}

func (e *environment) logger() *log.Logger {
	level := slog.LevelWarn
	if *e.verbose {
		level = slog.LevelDebug
	}
	// stdout is reserved for reports and JSON.
	return log.New(log.Config{
		Output: os.Stderr,
		Level:  level,
		Format: e.cfg.LogFormat,
	})
}
