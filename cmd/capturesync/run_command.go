package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the source folder in the foreground until interrupted",
		Long: "Run starts watching immediately and prints one line per file event.\n" +
			"Other terminals can still pause, resume or stop it with the control commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, processOptions{
				autoStart: true,
				console:   cmd.OutOrStdout(),
				progress:  !quiet,
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not draw a progress bar")
	return cmd
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var idle bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run headless, controlled over the IPC socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, processOptions{autoStart: !idle})
		},
	}
	cmd.Flags().BoolVar(&idle, "idle", false, "Wait for `capturesync start` instead of watching immediately")
	return cmd
}
