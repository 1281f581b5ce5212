package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/service"
)

// OpenFunc opens an editing workspace.
type OpenFunc func(ctx context.Context, opts service.WorkspaceOptions) (service.EntryWorkspace, error)

// App holds the collaborators CLI commands share.
type App struct {
	User       string
	Department string

	Client    backend.Client
	Journal   *service.Journal
	Templates *service.TemplateCatalog
	Directory service.IdentityResolver
	Observer  service.UseCaseObserver
	Logger    logrus.FieldLogger

	Debounce          time.Duration
	StatusSaveTimeout time.Duration

	// IsInteractive reports whether stdin is a terminal; pickers and
	// spinners only run when it returns true.
	IsInteractive func() bool
	Now           func() time.Time

	// Open defaults to service.OpenWorkspace.
	Open OpenFunc
}

// rootOptions are the persistent flags every command reads.
type rootOptions struct {
	user       string
	as         string
	department string
	quarter    string
	month      string
}

// NewRootCmd creates the top-level "milestones" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "milestones",
		Short:         "Staged milestone entries for monthly reporting periods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.user, "user", "", "Acting user (defaults to the configured user)")
	pf.StringVar(&opts.as, "as", "", "Work on another user's entries (id, username or name)")
	pf.StringVar(&opts.department, "department", "", "Department for templates and the directory")
	pf.StringVar(&opts.quarter, "quarter", "", "Quarter of the period to open (Q1-Q4)")
	pf.StringVar(&opts.month, "month", "", "Month of the period to open (1-12 or name)")

	root.AddCommand(
		newPeriodCmd(app, opts),
		newEntriesCmd(app, opts),
		newSubmitCmd(app, opts),
		newExportCmd(app, opts),
		newProgressCmd(app, opts),
		newEditCmd(app, opts),
	)
	return root
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) logger() logrus.FieldLogger {
	if a.Logger != nil {
		return a.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// openWorkspace resolves the acting and viewed users and opens their
// period. Load problems are printed as warnings; only a missing user or
// client is an error.
func (a *App) openWorkspace(cmd *cobra.Command, opts *rootOptions) (service.EntryWorkspace, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stderr := cmd.ErrOrStderr()

	caller := opts.user
	if caller == "" {
		caller = a.User
	}
	if caller == "" {
		return nil, fmt.Errorf("no user configured: set `user` in the config file, MILESTONES_USER, or pass --user")
	}
	department := opts.department
	if department == "" {
		department = a.Department
	}

	quarter, month, err := parsePeriodFlags(opts.quarter, opts.month)
	if err != nil {
		return nil, err
	}

	subject := ""
	if opts.as != "" {
		subject = opts.as
		if a.Directory != nil {
			id, err := a.Directory.Resolve(ctx, department, opts.as)
			if err != nil {
				return nil, fmt.Errorf("resolving %q: %w", opts.as, err)
			}
			subject = id.Key()
			if !id.Verified {
				fmt.Fprintln(stderr, formatter.Warning(fmt.Sprintf("%q resolved to %s by name only (unverified)", opts.as, subject)))
			}
		}
	}

	open := a.Open
	if open == nil {
		open = func(ctx context.Context, o service.WorkspaceOptions) (service.EntryWorkspace, error) {
			return service.OpenWorkspace(ctx, o)
		}
	}
	ws, err := open(ctx, service.WorkspaceOptions{
		Caller:            caller,
		Subject:           subject,
		Department:        department,
		Quarter:           quarter,
		Month:             month,
		Client:            a.Client,
		Journal:           a.Journal,
		Templates:         a.Templates,
		Debounce:          a.Debounce,
		StatusSaveTimeout: a.StatusSaveTimeout,
		Logger:            a.Logger,
		Observer:          a.Observer,
		Now:               a.Now,
	})
	if err != nil {
		return nil, err
	}
	if lerr := ws.LoadError(); lerr != nil {
		fmt.Fprintln(stderr, formatter.Warning("entries unavailable, showing local data: "+lerr.Error()))
	}
	return ws, nil
}

// closeWorkspace flushes pending edits. A failed flush leaves them in the
// local journal, so it is reported rather than returned.
func closeWorkspace(cmd *cobra.Command, ws service.EntryWorkspace) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ws.Close(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warning("changes kept locally, not yet sent: "+err.Error()))
	}
}

// withSpinner runs fn behind a spinner on interactive terminals.
func (a *App) withSpinner(cmd *cobra.Command, message string, fn func() error) error {
	if !a.interactive() {
		return fn()
	}
	stop := formatter.StartSpinner(cmd.ErrOrStderr(), message)
	defer stop()
	return fn()
}
