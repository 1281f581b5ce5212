package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/config"
	"github.com/alexanderramin/milestones/internal/devserver"
	"github.com/alexanderramin/milestones/internal/domain"
)

type serveOptions struct {
	addr     string
	user     string
	month    int
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(time.Now).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(now func() time.Time) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:           "milestones-devserver",
		Short:         "Run an in-memory reporting backend for local development",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.month < 1 || opts.month > 12 {
				return fmt.Errorf("invalid --month %d: want 1-12", opts.month)
			}
			if opts.user == "" {
				return fmt.Errorf("--user must not be empty")
			}
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8089", "Listen address")
	cmd.Flags().StringVar(&opts.user, "user", "demo", "User to seed a schedule for")
	cmd.Flags().IntVar(&opts.month, "month", int(now().Month()), "Month of the seeded schedule")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func serve(ctx context.Context, opts serveOptions) error {
	logger, err := config.NewLogger(config.LogConfig{Level: opts.logLevel, Format: "text"}, os.Stderr)
	if err != nil {
		return err
	}

	srv := devserver.New(devserver.WithLogger(logger))
	srv.SeedSchedule(opts.user, map[string]any{
		"month_quater_id": 1,
		"month":           opts.month,
		"quater":          fmt.Sprintf("Q%d", domain.DeriveQuarter("", opts.month)),
	})
	srv.SeedEmployee(map[string]any{"Employee ID": "E1", "Employee Name": opts.user, "username": opts.user})

	httpSrv := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", opts.addr).Info("devserver listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
