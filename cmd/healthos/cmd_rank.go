package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/campusfuel/healthos-engine/internal/plan"
	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
)

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank protocols for a user",
		Long: `Rank protocols for a user with their learned weights.

Either pass active protocols directly with --active, or pass a profile
questionnaire (YAML) with --profile to derive severities, fit the plan to the
user's constraints and print the full coaching block.`,
		Example: `  healthos rank --user alice --active sleep_protocol=0.9,stress_protocol=0.6 --goal "fat loss"
  healthos rank --user alice --profile alice.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			activeRaw, _ := cmd.Flags().GetString("active")
			profilePath, _ := cmd.Flags().GetString("profile")
			goals, _ := cmd.Flags().GetStringSlice("goal")
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			if (activeRaw == "") == (profilePath == "") {
				return fmt.Errorf("exactly one of --active or --profile is required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if profilePath != "" {
				p, err := loadProfile(profilePath)
				if err != nil {
					return err
				}
				rec, err := a.engine.Recommend(cmd.Context(), user, p)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(out, rec)
				}
				if len(rec.State.Flags) > 0 {
					fmt.Fprintf(out, "flags: %s\n", strings.Join(rec.State.Flags, ", "))
				}
				fmt.Fprint(out, rec.Block)
				return nil
			}

			active, err := parseActive(activeRaw)
			if err != nil {
				return err
			}
			ranked, err := a.engine.Rank(cmd.Context(), user, active, rank.UserState{Goals: goals})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(out, ranked)
			}
			printRanked(out, ranked)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("active", "", "comma-separated protocol=severity pairs")
	cmd.Flags().StringSlice("goal", nil, "user goal (repeatable)")
	cmd.Flags().String("profile", "", "profile questionnaire YAML file")
	return cmd
}

func loadProfile(path string) (profile.Profile, error) {
	var p profile.Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// parseActive reads "sleep_protocol=0.9,stress_protocol=0.6".
func parseActive(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("active %q: want protocol=severity", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("active %q: %w", pair, err)
		}
		out[strings.TrimSpace(id)] = f
	}
	return out, nil
}

func printRanked(w io.Writer, ranked []rank.Ranked) {
	fmt.Fprintf(w, "%-4s  %-28s  %7s  %8s  %7s  %9s  %s\n", "#", "Protocol", "Score", "Severity", "Blended", "Alignment", "Tier")
	for i, r := range ranked {
		mark := ""
		if r.Penalized {
			mark = " (conflict)"
		}
		fmt.Fprintf(w, "%-4d  %-28s  %7.4f  %8.2f  %7.4f  %9.2f  %s%s\n",
			i+1, r.Protocol, r.Score, r.Severity, r.Blended, r.Alignment, plan.Tier(r.Score), mark)
	}
}
