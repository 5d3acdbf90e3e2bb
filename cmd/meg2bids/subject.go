package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neu-lab/meg2bids/internal/bids"
	"github.com/neu-lab/meg2bids/internal/keys"
	"github.com/neu-lab/meg2bids/internal/participants"
	"github.com/neu-lab/meg2bids/internal/rawdata"
	"github.com/neu-lab/meg2bids/internal/ui"
)

func NewRetrieveMEGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "retrieve-meg [pnum]",
		Short:   "Copy a subject's raw MEG recordings into sourcedata",
		GroupID: gSubject,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			pnum, err := pnumArg(args)
			if err != nil {
				return err
			}

			megKey, err := keys.LoadMEGKey(current.cfg.MEGKey)
			if err != nil {
				return err
			}
			subjectKey, err := keys.LoadSubjectKey(current.cfg.SubjectKey)
			if err != nil {
				return err
			}
			megCode, err := megKey.Lookup(pnum)
			if err != nil {
				return err
			}
			name, err := subjectKey.Lookup(pnum)
			if err != nil {
				return err
			}

			opts := rawdata.Options{
				MEGCode: megCode,
				RawDir:  filepath.Join(current.cfg.RawMEGDir, name),
				CTFDir:  filepath.Join(current.cfg.CTFDir, pnum, "CTF"),
				DestDir: current.layout().SourceMEGDir(pnum),
				Logger:  current.logger,
			}

			var res *rawdata.Result
			var retrieveErr error
			run := func() { res, retrieveErr = rawdata.Retrieve(opts) }
			if interactive {
				if err := ui.RunLocalTask(fmt.Sprintf("Copying %s recordings...", megCode), run); err != nil {
					return err
				}
			} else {
				run()
			}

			if errors.Is(retrieveErr, rawdata.ErrAlreadyRetrieved) {
				ui.PrintWarning(fmt.Sprintf("%s already has MEG data in %s", pnum, opts.DestDir))
				return nil
			}
			if retrieveErr != nil {
				return retrieveErr
			}

			current.logger.Info("Retrieved MEG data", "subject", pnum, "recordings", len(res.Recordings),
				"impedance", len(res.Impedance), "decompressed", len(res.Decompressed), "markers", len(res.Markers))
			ui.PrintSuccess(fmt.Sprintf("Copied %d recording(s) for %s", len(res.Recordings), pnum))
			return nil
		},
	}
	return cmd
}

func NewTasksCommand() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:     "tasks [pnum]",
		Short:   "Show and confirm which resting-state task each MEG run recorded",
		GroupID: gSubject,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			pnum, err := pnumArg(args)
			if err != nil {
				return err
			}

			var review reviewFunc
			if interactive {
				review = func(plan []bids.RunTask) ([]bids.RunTask, error) {
					return ui.ReviewTasks(ui.Prompter{}, pnum, session, plan)
				}
			}
			return planTasks(pnum, session, review)
		},
	}

	cmd.Flags().StringVar(&session, "session", "meg", "BIDS session label (meg or megpostop)")
	return cmd
}

// reviewFunc lets the operator edit a proposed task plan
type reviewFunc func(plan []bids.RunTask) ([]bids.RunTask, error)

// planTasks proposes tasks for the subject's runs and prints the plan,
// after review when review is non-nil
func planTasks(pnum, session string, review reviewFunc) error {
	recs, err := bids.FindRecordings(current.layout().SourceMEGDir(pnum))
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w for sub-%s", bids.ErrNoRecording, pnum)
	}

	runs := make([]int, len(recs))
	for i, r := range recs {
		runs[i] = r.Run
	}
	plan := bids.AssignTasks(runs)

	if review == nil {
		ui.PrintTaskPlan(pnum, session, plan)
		return nil
	}
	plan, err = review(plan)
	if err != nil {
		return err
	}
	ui.PrintTaskPlan(pnum, session, plan)
	ui.PrintSuccess(fmt.Sprintf("Task plan confirmed for %d run(s)", len(plan)))
	return nil
}

func NewParticipantsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "participants [pnum]",
		Short:   "Add or update a subject in participants.tsv",
		GroupID: gSubject,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			pnum, err := pnumArg(args)
			if err != nil {
				return err
			}
			layout := current.layout()

			ui.PrintWarning("Updating participants.tsv")
			reg, err := participants.Load(layout.ParticipantsFile())
			if err != nil {
				return err
			}
			row, found := reg.Find(pnum)
			if !found {
				row = participants.NewRow(pnum)
			}

			added, err := participants.ScanSessions(row, layout.SubjectDir(pnum))
			if err != nil {
				return err
			}
			for _, col := range added {
				ui.PrintSuccess(fmt.Sprintf("Adding %s to participants.tsv for %s", col, pnum))
			}

			missing := participants.MissingFields(row)
			if len(missing) > 0 && interactive {
				for _, field := range missing {
					value, err := ui.Prompter{}.PromptField(pnum, field)
					if err != nil {
						return err
					}
					if err := participants.SetField(row, field, value); err != nil {
						return err
					}
				}
			} else if len(missing) > 0 {
				current.logger.Warn("Leaving fields as n/a", "subject", pnum, "fields", strings.Join(missing, ","))
			}

			if _, err := participants.Upsert(layout.ParticipantsFile(), row); err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("participants.tsv updated for %s", pnum))
			return nil
		},
	}
	return cmd
}
