package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/cli"
	"github.com/alexanderramin/milestones/internal/config"
	"github.com/alexanderramin/milestones/internal/db"
	"github.com/alexanderramin/milestones/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	templates, err := service.LoadTemplateCatalog(cfg.TemplatesPath)
	if err != nil {
		return err
	}

	client := backend.NewHTTPClient(cfg.BackendClientConfig(), backend.NewLogObserver(logger))
	app := &cli.App{
		User:              cfg.User,
		Department:        cfg.Department,
		Client:            client,
		Journal:           service.NewSQLiteJournal(database, db.NewSQLiteUnitOfWork(database)),
		Templates:         templates,
		Directory:         service.NewDirectoryResolver(client, logger),
		Observer:          service.NewLogUseCaseObserver(logger),
		Logger:            logger,
		Debounce:          cfg.Debounce(),
		StatusSaveTimeout: cfg.StatusSaveTimeout(),
	}

	// Pickers and spinners only run on a terminal.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
