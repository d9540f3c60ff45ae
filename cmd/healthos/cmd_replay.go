package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/campusfuel/healthos-engine/internal/replay"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay feedback fixtures through the learning pipeline offline",
	}
	cmd.AddCommand(newReplayRunCmd(), newReplayExportCmd())
	return cmd
}

// #region run
func newReplayRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <fixture.json>...",
		Short: "Replay fixtures and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			reports := make(map[string]replay.Report, len(args))
			for _, path := range args {
				f, err := replay.LoadFixture(path)
				if err != nil {
					return err
				}
				rep := replay.Run(f, nil, nil)
				reports[path] = rep
				if !rep.Passed() {
					failed++
				}
				if !jsonOutput(cmd) {
					printReport(out, path, rep)
				}
			}
			if jsonOutput(cmd) {
				if err := printJSON(out, reports); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixtures failed", failed, len(args))
			}
			return nil
		},
	}
}

func printReport(w io.Writer, path string, rep replay.Report) {
	status := "PASS"
	if !rep.Passed() {
		status = "FAIL"
	}
	s := rep.Summary
	fmt.Fprintf(w, "%s  %s  turns=%d commit=%d gate_reject=%d eval_rollback=%d no_op=%d\n",
		status, path, s.TotalTurns, s.Commits, s.GateRejects, s.EvalRollbacks, s.NoOps)
	for _, r := range rep.Results {
		fmt.Fprintf(w, "  %-10s %-13s %s\n", r.TurnID, r.Action, r.Reason)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "  ! %s\n", f)
	}
}
// #endregion run

// #region export
func newReplayExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's feedback journal as a replay fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			outPath, _ := cmd.Flags().GetString("out")
			if user == "" || outPath == "" {
				return fmt.Errorf("--user and --out are required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			lr, _ := cmd.Flags().GetFloat64("lr")
			if lr == 0 {
				lr = a.cfg.Learning.LearningRate
			}

			entries, err := a.journal.Entries(cmd.Context(), user, 0)
			if err != nil {
				return err
			}
			final, err := a.store.Load(cmd.Context(), user)
			if err != nil {
				return err
			}
			f, err := replay.Export(user, a.store.Catalog().Baselines(), final, entries, lr)
			if err != nil {
				return err
			}
			f.Config.MaxStep = a.cfg.Learning.MaxStep
			if err := replay.WriteFixture(f, outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d turns to %s\n", len(f.Turns), outPath)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("out", "", "fixture path to write")
	cmd.Flags().Float64("lr", 0, "learning rate recorded in the fixture (default: configured rate)")
	return cmd
}
// #endregion export
