package cli

import (
	"github.com/spf13/cobra"
)

func newHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Game host lifecycle reports (operator helpers)",
	}

	cmd.AddCommand(newHostReadyCmd())
	cmd.AddCommand(newHostLaunchFailedCmd())

	return cmd
}

func newHostReadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ready <launch-handle>",
		Short: "Report a launched game as ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"handle": args[0]}
			if err := client.Post("/api/v1/hosts/ready", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Host " + args[0] + " reported ready")
			return nil
		},
	}
}

func newHostLaunchFailedCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "launch-failed <launch-handle>",
		Short: "Report a failed game launch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"handle": args[0], "reason": reason}
			if err := client.Post("/api/v1/hosts/launch-failed", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Launch failure recorded for " + args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason to record")

	return cmd
}
