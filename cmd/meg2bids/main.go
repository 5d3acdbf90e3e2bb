package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/neu-lab/meg2bids/internal/api"
	"github.com/neu-lab/meg2bids/internal/bids"
	"github.com/neu-lab/meg2bids/internal/config"
	"github.com/neu-lab/meg2bids/internal/db"
	"github.com/neu-lab/meg2bids/internal/emptyroom"
	"github.com/neu-lab/meg2bids/internal/keys"
	"github.com/neu-lab/meg2bids/internal/ui"
)

var (
	logLevel    = ""
	dbPath      = ""
	envFile     = ""
	assumeYes   = false
	interactive = false
)

var (
	gEmptyRoom = "Empty-room:"
	gSubject   = "Subject:"
)

// app is shared by every subcommand once the root pre-run has finished
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

var current = &app{}

func setupLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "meg2bids",
	}), nil
}

func handleCmdError(err error) {
	ui.PrintError(err.Error())

	var se *api.StatusError
	switch {
	case errors.Is(err, keys.ErrUnknownSubject):
		fmt.Fprintln(os.Stderr, "  - Check the p-number, or add the subject to the key file")
	case errors.Is(err, bids.ErrNoRecording):
		fmt.Fprintln(os.Stderr, "  - Run 'meg2bids retrieve-meg <pnum>' first, or pass --date")
	case errors.As(err, &se):
		fmt.Fprintf(os.Stderr, "  - The empty-room catalog answered HTTP %d; try again later\n", se.StatusCode)
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meg2bids",
		Short: "meg2bids stages MEG recordings and matching empty-room data in a BIDS dataset",
		Long: `meg2bids stages MEG recordings and matching empty-room data in a BIDS dataset.

Share locations come from the environment (NEU_DIR, BIDS_ROOT, ...), which
may be seeded from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			logger, err := setupLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			current.cfg = cfg
			current.logger = logger
			interactive = !assumeYes && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error); defaults to $LOG_LEVEL or info")
	globalFlags.StringVar(&dbPath, "db", "", "catalog cache and retrieval log database; defaults to $MEG2BIDS_DB")
	globalFlags.StringVar(&envFile, "env", "", "env file to load instead of ./.env")
	globalFlags.BoolVarP(&assumeYes, "yes", "y", false, "never prompt; accept defaults")

	for _, g := range []string{gEmptyRoom, gSubject} {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	cmd.AddCommand(
		NewEmptyRoomCommand(),
		NewNearestCommand(),
		NewHistoryCommand(),
		NewCacheCommand(),
		NewRetrieveMEGCommand(),
		NewTasksCommand(),
		NewParticipantsCommand(),
	)

	return cmd
}

// openDB opens the catalog cache; callers close it
func (a *app) openDB() (*db.DB, error) {
	database, err := db.New(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

func (a *app) layout() bids.Layout {
	return bids.Layout{Root: a.cfg.BIDSRoot}
}

// newWorkflow wires the catalog client, cache and prompts together
func (a *app) newWorkflow(database *db.DB) *emptyroom.Workflow {
	w := &emptyroom.Workflow{
		Layout:     a.layout(),
		Catalog:    api.NewEmptyRoomClient(a.cfg.EmptyRoomURL, a.logger),
		Policy:     a.cfg.Policy,
		CacheTTL:   a.cfg.CacheTTL,
		MaxRetries: a.cfg.MaxRetries,
		Logger:     a.logger,
	}
	if database != nil {
		w.Store = database
	}
	if interactive {
		w.Confirm = ui.Prompter{}
		w.Spin = ui.RunWithSpinner
	}
	return w
}
