package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusfuel/healthos-engine/internal/state"
)

func newRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Point a user back at an earlier weight version",
		Example: `  healthos inspect history --user alice
  healthos rollback --user alice --version 3f2a9c1e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			versionID, _ := cmd.Flags().GetString("version")
			if user == "" || versionID == "" {
				return fmt.Errorf("--user and --version are required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			versionID, err = resolveVersion(cmd, a, user, versionID)
			if err != nil {
				return err
			}
			if err := a.backend.Rollback(cmd.Context(), user, versionID); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]string{"user_id": user, "version_id": versionID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now at version %s\n", user, shortID(versionID))
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("version", "", "version id to restore")
	return cmd
}

// resolveVersion expands a unique id prefix, as printed by inspect history.
func resolveVersion(cmd *cobra.Command, a *app, user, prefix string) (string, error) {
	versions, err := a.backend.ListVersions(cmd.Context(), user, -1)
	if err != nil {
		return "", err
	}
	var match string
	for _, v := range versions {
		if v.VersionID == prefix {
			return prefix, nil
		}
		if strings.HasPrefix(v.VersionID, prefix) {
			if match != "" {
				return "", fmt.Errorf("version prefix %q is ambiguous", prefix)
			}
			match = v.VersionID
		}
	}
	if match == "" {
		return "", fmt.Errorf("rollback %s: %w: %s", user, state.ErrVersionNotFound, prefix)
	}
	return match, nil
}
