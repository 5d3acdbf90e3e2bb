package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neu-lab/meg2bids/internal/emptyroom"
	"github.com/neu-lab/meg2bids/internal/ui"
)

func NewEmptyRoomCommand() *cobra.Command {
	var (
		dateFlag string
		dryRun   bool
		browse   bool
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:     "emptyroom [pnum]",
		Short:   "Download the empty-room recording closest to a subject's MEG session",
		GroupID: gEmptyRoom,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			pnum, err := pnumArg(args)
			if err != nil {
				return err
			}
			date, err := parseDateFlag(dateFlag)
			if err != nil {
				return err
			}

			database, err := current.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			w := current.newWorkflow(database)
			w.Refresh = refresh

			ui.PrintWarning("Retrieving empty-room data")
			m, err := w.Resolve(pnum, date)
			if err != nil {
				return err
			}

			if browse {
				if !interactive {
					return fmt.Errorf("--browse needs an interactive terminal")
				}
				candidates, err := w.Candidates(m)
				if err != nil {
					return err
				}
				picked, err := ui.RunCatalogBrowser(fmt.Sprintf("Empty-room archives near %08d", m.SessionDate), candidates)
				if err != nil {
					return err
				}
				if picked == nil {
					ui.PrintInfo("Browser closed; keeping the automatic match")
				} else if err := m.Override(picked.Entry); err != nil {
					return err
				}
			}

			ui.PrintMatch(pnum, m.SessionDate, m.Entry.Date, m.DayDistance, m.Entry.Locator)
			if m.InDataset {
				ui.PrintWarning(fmt.Sprintf("sub-emptyroom/ses-%08d is already in the dataset", m.Entry.Date))
			}

			if dryRun {
				w.RecordResolved(m)
				return nil
			}

			out, err := w.Retrieve(m)
			switch {
			case errors.Is(err, emptyroom.ErrAlreadyPresent):
				ui.PrintWarning(fmt.Sprintf("sub-emptyroom/ses-%s already exists", out.SessionID))
				return nil
			case errors.Is(err, emptyroom.ErrCancelled):
				ui.PrintInfo("Download cancelled")
				return nil
			case err != nil:
				return err
			}

			ui.PrintSuccess(fmt.Sprintf("Staged %d empty-room recording(s) for ses-%s", len(out.Staged), out.SessionID))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "session date to match instead of reading it from the subject's data")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve the match without downloading")
	cmd.Flags().BoolVar(&browse, "browse", false, "pick a different archive from the listings that were read")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached catalog listings")

	return cmd
}

func NewNearestCommand() *cobra.Command {
	var (
		dateFlag string
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:     "nearest --date DATE",
		Short:   "Show the empty-room recording closest to a date",
		GroupID: gEmptyRoom,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			date, err := parseDateFlag(dateFlag)
			if err != nil {
				return err
			}
			if date == 0 {
				return fmt.Errorf("--date is required")
			}

			database, err := current.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			w := current.newWorkflow(database)
			w.Refresh = refresh

			m, err := w.Resolve("", date)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("%08d  %d days  %s", m.Entry.Date, m.DayDistance, m.Entry.Locator)
			if m.InDataset {
				line += "  (in dataset)"
			}
			ui.PrintInfo(line)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "date to match (any common format, e.g. 2023-06-15 or 20230615)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached catalog listings")

	return cmd
}

func NewHistoryCommand() *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:     "history [pnum]",
		Short:   "List recorded empty-room matches, newest first",
		GroupID: gEmptyRoom,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			subject := ""
			if len(args) == 1 {
				subject = args[0]
			}

			database, err := current.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			retrievals, err := database.GetRetrievals(subject)
			if err != nil {
				return err
			}
			ui.PrintRetrievals(retrievals)

			var filename string
			switch export {
			case "":
				return nil
			case "csv":
				filename, err = ui.ExportRetrievalsCSV(retrievals, subject)
			case "md", "markdown":
				filename, err = ui.ExportRetrievalsMarkdown(retrievals, subject)
			default:
				return fmt.Errorf("unknown export format %q: use csv or md", export)
			}
			if err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("Exported to %s", filename))
			return nil
		},
	}

	cmd.Flags().StringVar(&export, "export", "", "also write the history to a file (csv or md)")
	return cmd
}

func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cache",
		Short:   "Manage cached catalog listings",
		GroupID: gEmptyRoom,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every cached listing",
		RunE: func(_ *cobra.Command, _ []string) error {
			database, err := current.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ClearListings(); err != nil {
				return err
			}
			ui.PrintSuccess("Catalog cache cleared")
			return nil
		},
	})
	return cmd
}
