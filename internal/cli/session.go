package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Game session commands",
	}

	cmd.AddCommand(newSessionMineCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionResultCmd())
	cmd.AddCommand(newSessionAbandonedCmd())

	return cmd
}

func newSessionMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "Show the session you are currently committed to",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result GameSession

			if err := client.Get("/api/v1/sessions/mine", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result GameSession

			if err := client.Get("/api/v1/sessions/"+args[0], &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionResultCmd() *cobra.Command {
	var ranks string

	cmd := &cobra.Command{
		Use:   "result <session-id>",
		Short: "Report a session's final result (operator helper)",
		Long: `Report a final result on behalf of the game host. Ranks are
given per team in team order, 1 being the winner; equal ranks mean a draw.

  skirmish session result sess-123 --ranks 1,2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := strings.Split(ranks, ",")
			outcomes := make([]map[string]int, len(parts))
			for i, p := range parts {
				rank, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					return fmt.Errorf("invalid rank %q: %w", p, err)
				}
				outcomes[i] = map[string]int{"team": i, "rank": rank}
			}

			req := map[string]any{"outcomes": outcomes}
			if err := client.Post("/api/v1/sessions/"+args[0]+"/result", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Result recorded for " + args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&ranks, "ranks", "1,2", "Comma-separated rank per team, in team order")

	return cmd
}

func newSessionAbandonedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandoned <session-id>",
		Short: "Report a session as abandoned (operator helper)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post("/api/v1/sessions/"+args[0]+"/abandoned", nil, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Session " + args[0] + " marked abandoned")
			return nil
		},
	}
}
