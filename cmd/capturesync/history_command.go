package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"capturesync/internal/ipc"
	"capturesync/internal/journal"
	"capturesync/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		runID string
		kinds []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent file outcomes from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.HistoryRequest{RunID: runID, Kinds: kinds, Limit: limit}
			entries, err := historyFromDaemon(ctx, req)
			if errors.Is(err, errDaemonOffline) {
				entries, err = historyFromJournal(cmd, ctx, req)
			}
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only show entries of this run")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Filter by kind (processed, skipped, failed, indexed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	return cmd
}

func historyFromDaemon(ctx *commandContext, req ipc.HistoryRequest) ([]ipc.HistoryEntry, error) {
	var entries []ipc.HistoryEntry
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.History(req)
		if err != nil {
			return err
		}
		entries = resp.Entries
		return nil
	})
	return entries, err
}

func historyFromJournal(cmd *cobra.Command, ctx *commandContext, req ipc.HistoryRequest) ([]ipc.HistoryEntry, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	filter := journal.Filter{RunID: req.RunID, Limit: req.Limit}
	for _, kind := range req.Kinds {
		filter.Kinds = append(filter.Kinds, pipeline.Kind(kind))
	}
	stored, err := store.List(cmd.Context(), filter)
	if err != nil {
		return nil, err
	}
	entries := make([]ipc.HistoryEntry, 0, len(stored))
	for _, entry := range stored {
		entries = append(entries, ipc.FromEntry(entry))
	}
	return entries, nil
}

func printHistory(out io.Writer, entries []ipc.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history yet")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		detail := entry.Reason
		switch {
		case entry.Error != "":
			detail = entry.Error
		case pipeline.Kind(entry.Kind) == pipeline.KindIndexed:
			detail = strconv.Itoa(entry.Faces) + " faces"
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.At.Local().Format(time.DateTime),
			entry.Kind,
			baseName(entry.Source),
			baseName(entry.Output),
			orDash(detail),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"ID", "Time", "Kind", "Source", "Output", "Detail"},
		rows,
		[]columnAlignment{alignRight},
	))
}

func baseName(path string) string {
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}
