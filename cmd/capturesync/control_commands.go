package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"capturesync/internal/ipc"
)

func newControlCommands(ctx *commandContext) []*cobra.Command {
	control := func(use, short string, call func(*ipc.Client) (*ipc.ControlResponse, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := call(client)
					if err != nil {
						return err
					}
					return printControl(cmd.OutOrStdout(), use, resp)
				})
			},
		}
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the pipeline state and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}

	return []*cobra.Command{
		control("start", "Start watching the source folder", (*ipc.Client).Start),
		control("pause", "Pause watching; files created meanwhile are not picked up", (*ipc.Client).Pause),
		control("resume", "Resume a paused run", (*ipc.Client).Resume),
		control("stop", "Stop the current run; the daemon keeps running", (*ipc.Client).Stop),
		statusCmd,
	}
}

func printControl(out io.Writer, op string, resp *ipc.ControlResponse) error {
	if !resp.OK {
		return fmt.Errorf("%s refused: %s", op, resp.Message)
	}
	fmt.Fprintf(out, "Pipeline %s", resp.State)
	if resp.RunID != "" {
		fmt.Fprintf(out, " (run %s)", resp.RunID)
	}
	fmt.Fprintln(out)
	return nil
}

func printStatus(out io.Writer, status *ipc.StatusResponse) {
	rows := [][]string{
		{"State", status.State},
		{"Run", orDash(status.RunID)},
		{"PID", strconv.Itoa(status.PID)},
		{"Uptime", status.Uptime.Truncate(time.Second).String()},
		{"Source", status.SourceDir},
		{"Output", status.OutputDir},
		{"Journal", status.JournalPath},
		{"Lock", status.LockPath},
	}
	if status.LastError != "" {
		rows = append(rows, []string{"Last error", status.LastError})
	}
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))

	counts := [][]string{
		{"Discovered", strconv.Itoa(status.Discovered)},
		{"Processed", strconv.Itoa(status.Processed)},
		{"Skipped", strconv.Itoa(status.Skipped)},
		{"Failed", strconv.Itoa(status.Failed)},
		{"Faces indexed", strconv.Itoa(status.Faces)},
	}
	fmt.Fprint(out, renderTable([]string{"Counter", "Value"}, counts, []columnAlignment{alignLeft, alignRight}))
	if status.LastOutput != "" {
		fmt.Fprintf(out, "Last output: %s\n", filepath.Base(status.LastOutput))
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
