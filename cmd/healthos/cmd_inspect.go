package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/campusfuel/healthos-engine/internal/eval"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect stored weights, versions and the feedback journal",
	}
	cmd.PersistentFlags().String("user", "", "user id")
	cmd.AddCommand(
		newInspectUsersCmd(),
		newInspectHistoryCmd(),
		newInspectDriftCmd(),
		newInspectJournalCmd(),
	)
	return cmd
}

func requireUser(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}

// #region users
func newInspectUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with stored weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.backend.Users(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), users)
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no users found")
			}
			for _, u := range users {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}
// #endregion users

// #region history
type historyRow struct {
	VersionID string   `json:"version_id"`
	ParentID  string   `json:"parent_id,omitempty"`
	Active    bool     `json:"active"`
	Changed   int      `json:"changed"`
	MaxDelta  float64  `json:"max_delta"`
	Signals   []string `json:"signals,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func newInspectHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's weight versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireUser(cmd)
			if err != nil {
				return err
			}
			last, _ := cmd.Flags().GetInt("last")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			versions, err := a.backend.ListVersions(cmd.Context(), user, last)
			if err != nil {
				return err
			}
			rows := make([]historyRow, len(versions))
			for i, v := range versions {
				rows[i] = toHistoryRow(v)
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no versions found")
				return nil
			}
			printHistory(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().Int("last", 20, "show N most recent versions")
	return cmd
}

func toHistoryRow(v state.Version) historyRow {
	row := historyRow{
		VersionID: v.VersionID,
		ParentID:  v.ParentID,
		Active:    v.Active,
		CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	var m update.Metrics
	if v.MetricsJSON != "" && json.Unmarshal([]byte(v.MetricsJSON), &m) == nil {
		row.Changed = len(m.Deltas)
		row.MaxDelta = m.MaxDelta
		row.Signals = m.Applied
	}
	return row
}

func printHistory(w io.Writer, rows []historyRow) {
	fmt.Fprintf(w, "%-10s  %-6s  %7s  %9s  %-20s  %s\n", "Version", "Active", "Changed", "Max Delta", "Time", "Signals")
	for _, r := range rows {
		active := ""
		if r.Active {
			active = "*"
		}
		fmt.Fprintf(w, "%-10s  %-6s  %7d  %9.4f  %-20s  %v\n",
			shortID(r.VersionID), active, r.Changed, r.MaxDelta, r.CreatedAt, r.Signals)
	}
}
// #endregion history

// #region drift
func newInspectDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Show how far a user's weights have moved from baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireUser(cmd)
			if err != nil {
				return err
			}
			top, _ := cmd.Flags().GetInt("top")
			warn, _ := cmd.Flags().GetFloat64("warn")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.store.Load(cmd.Context(), user)
			if err != nil {
				return err
			}
			res := eval.NewHarness(eval.Config{DriftWarn: warn}, a.store.Catalog()).Run(w)
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printDrift(cmd.OutOrStdout(), res, top)
			return nil
		},
	}
	cmd.Flags().Int("top", 10, "show the N largest moves (0 for all)")
	cmd.Flags().Float64("warn", eval.DefaultConfig().DriftWarn, "flag drift beyond this")
	return cmd
}

func printDrift(w io.Writer, res eval.Result, top int) {
	fmt.Fprintf(w, "passed=%v  %s\n\n", res.Passed, res.Reason)
	fmt.Fprintf(w, "%-28s  %8s  %8s  %8s  %9s\n", "Protocol", "Baseline", "Learned", "Delta", "Effective")
	for i, d := range res.Drift {
		if top > 0 && i == top {
			break
		}
		flag := ""
		if d.Flagged {
			flag = "  !"
		}
		fmt.Fprintf(w, "%-28s  %8.2f  %8.4f  %+8.4f  %+9.4f%s\n", d.Protocol, d.Baseline, d.Learned, d.Delta, d.Effective, flag)
	}
	fmt.Fprintln(w)
	for _, m := range res.Metrics {
		fmt.Fprintf(w, "%-20s %.4f\n", m.Name, m.Value)
	}
}
// #endregion drift

// #region journal
func newInspectJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show a user's feedback journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireUser(cmd)
			if err != nil {
				return err
			}
			last, _ := cmd.Flags().GetInt("last")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.journal.Entries(cmd.Context(), user, 0)
			if err != nil {
				return err
			}
			if last > 0 && len(entries) > last {
				entries = entries[len(entries)-last:]
			}
			counts, err := a.journal.Counts(cmd.Context(), user)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"entries": entries, "counts": counts})
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-7s  %-40q  %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Decision, e.Text, e.SignalsJSON)
			}
			decisions := make([]string, 0, len(counts))
			for d := range counts {
				decisions = append(decisions, d)
			}
			sort.Strings(decisions)
			fmt.Fprintln(out)
			for _, d := range decisions {
				fmt.Fprintf(out, "%-8s %d\n", d, counts[d])
			}
			return nil
		},
	}
	cmd.Flags().Int("last", 20, "show N most recent entries (0 for all)")
	return cmd
}
// #endregion journal
