package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusfuel/healthos-engine/internal/engine"
	"github.com/campusfuel/healthos-engine/internal/gate"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback [text]",
		Short: "Apply feedback to a user's weights",
		Long: `Apply free-text feedback to a user's protocol weights.

With text arguments the feedback is applied once. Without arguments an
interactive prompt reads one message per line until "quit".`,
		Example: `  healthos feedback --user alice "energy +2, sleep -1"
  healthos feedback --user alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			lr, _ := cmd.Flags().GetFloat64("lr")
			if user == "" {
				return fmt.Errorf("--user is required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			submit := func(text string) error {
				var out engine.Outcome
				var err error
				if lr != 0 {
					out, err = a.engine.SubmitFeedbackWithRate(cmd.Context(), user, text, lr)
				} else {
					out, err = a.engine.SubmitFeedback(cmd.Context(), user, text)
				}
				if err != nil && !errors.Is(err, gate.ErrInvariant) {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(cmd.OutOrStdout(), out)
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			}

			if len(args) > 0 {
				return submit(strings.Join(args, " "))
			}
			return feedbackLoop(cmd.InOrStdin(), cmd.OutOrStdout(), user, submit)
		},
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().Float64("lr", 0, "learning rate for this feedback (default from config)")
	return cmd
}

func feedbackLoop(in io.Reader, out io.Writer, user string, submit func(string) error) error {
	fmt.Fprintf(out, "Feedback for %s. Type a message (or 'quit' to exit):\n", user)
	scanner := bufio.NewScanner(in)
	turn := 0
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}
		turn++
		if err := submit(text); err != nil {
			fmt.Fprintf(out, "[turn-%d] error: %v\n", turn, err)
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func printOutcome(w io.Writer, o engine.Outcome) {
	var sigs []string
	for _, s := range o.Signals.All() {
		sigs = append(sigs, fmt.Sprintf("%s=%+g", s.Name, s.Strength))
	}
	if len(sigs) == 0 {
		sigs = []string{"none"}
	}
	fmt.Fprintf(w, "signals: %s\n", strings.Join(sigs, " "))
	fmt.Fprintf(w, "decision=%s reason=%q\n", o.Decision.Action, o.Decision.Reason)
	for _, d := range o.Metrics.Deltas {
		if o.Decision.Action != "commit" {
			break
		}
		fmt.Fprintf(w, "  %-28s %.4f -> %.4f\n", d.Protocol, d.From, d.To)
	}
	if o.VersionID != "" {
		fmt.Fprintf(w, "version %s\n", shortID(o.VersionID))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
