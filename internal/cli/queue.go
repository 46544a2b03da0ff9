package cli

import (
	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Matchmaking queue commands",
	}

	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueJoinCmd())
	cmd.AddCommand(newQueueLeaveCmd())
	cmd.AddCommand(newQueueStatusCmd())

	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Queue

			if err := client.Get("/api/v1/queues", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newQueueJoinCmd() *cobra.Command {
	var party []string

	cmd := &cobra.Command{
		Use:   "join <queue>",
		Short: "Start searching for a match",
		Long: `Join a matchmaking queue and start searching.

Use --with to queue as a party; list every member's player ID including
your own. The whole party is matched onto the same team.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID := args[0]

			var req any
			if len(party) > 0 {
				req = map[string][]string{"party_members": party}
			}

			var result QueueEntry
			if err := client.Post("/api/v1/queues/"+queueID+"/join", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&party, "with", nil, "Party member player IDs (including yourself)")

	return cmd
}

func newQueueLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <queue>",
		Short: "Stop searching for a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID := args[0]

			if err := client.Post("/api/v1/queues/"+queueID+"/leave", nil, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Left " + queueID)
			return nil
		},
	}
}

func newQueueStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show your current standing search",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result QueueEntry

			if err := client.Get("/api/v1/queues/entry", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
