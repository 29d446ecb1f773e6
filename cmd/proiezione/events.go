package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"patrimonio/internal/core"
	"patrimonio/internal/ports"
	"patrimonio/internal/services"
	"patrimonio/internal/storage"
	"patrimonio/internal/storage/memory"
)

func openRepository(_ context.Context, dbPath string) (*storage.SQLiteRepository, error) {
	if dbPath == "" {
		return nil, errors.New("no database, set -db or SQLITE_DB_PATH")
	}
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return repo, nil
}

type eventsCmd struct {
	env *environment
}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "list the saved life events" }
func (*eventsCmd) Usage() string {
	return `proiezione events

  Lists the life events saved in the database, ordered by year.
`
}

func (*eventsCmd) SetFlags(*flag.FlagSet) {}

func (c *eventsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, err := openRepository(ctx, *c.env.dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	events, err := services.NewEventService(repo, c.env.logger()).List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(events) == 0 {
		fmt.Println("Nessun evento salvato.")
		return subcommands.ExitSuccess
	}
	printMarkdown(eventsMarkdown(events), "", 0)
	return subcommands.ExitSuccess
}

func eventsMarkdown(events []core.LifeEvent) string {
	var b strings.Builder
	b.WriteString("| ID | Anno | Tipo | Importo | Nome |\n")
	b.WriteString("|---:|---:|---|---:|---|\n")
	for _, e := range events {
		kind := "Spesa"
		if e.Kind == core.Income {
			kind = "Entrata"
		}
		fmt.Fprintf(&b, "| %d | %d | %s | %s | %s |\n", e.ID, e.CalendarYear, kind, e.Amount.String(), e.Name)
	}
	return b.String()
}

type addEventCmd struct {
	env *environment
}

func (*addEventCmd) Name() string     { return "add-event" }
func (*addEventCmd) Synopsis() string { return "save a life event" }
func (*addEventCmd) Usage() string {
	return `proiezione add-event "year;kind;amount;name"

  Saves a life event. Kind is expense or income, amount is euros
  (e.g. "2030;expense;25000,00;Auto").
`
}

func (*addEventCmd) SetFlags(*flag.FlagSet) {}

func (c *addEventCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one event")
		return subcommands.ExitUsageError
	}
	e, err := memory.ParseEventLine(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	repo, err := openRepository(ctx, *c.env.dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	created, err := services.NewEventService(repo, c.env.logger()).Create(ctx, e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Evento %d salvato: %s nel %d (%s)\n", created.ID, created.Name, created.CalendarYear, created.Amount.String())
	return subcommands.ExitSuccess
}

type rmEventCmd struct {
	env *environment
}

func (*rmEventCmd) Name() string     { return "rm-event" }
func (*rmEventCmd) Synopsis() string { return "delete a saved life event" }
func (*rmEventCmd) Usage() string {
	return `proiezione rm-event <id>

  Deletes the saved life event with the given id.
`
}

func (*rmEventCmd) SetFlags(*flag.FlagSet) {}

func (c *rmEventCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected the event id")
		return subcommands.ExitUsageError
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid id %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}

	repo, err := openRepository(ctx, *c.env.dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	if err := services.NewEventService(repo, c.env.logger()).Delete(ctx, id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: no event with id %d\n", id)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Evento %d eliminato\n", id)
	return subcommands.ExitSuccess
}
