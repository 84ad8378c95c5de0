package main

import (
	"cmp"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"capturesync/internal/faceindex"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and search the face index of the output folder",
	}
	indexCmd.AddCommand(newIndexShowCommand(ctx))
	indexCmd.AddCommand(newIndexMatchCommand(ctx))
	return indexCmd
}

func newIndexShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List indexed images and their face counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := faceindex.PathFor(cfg.Paths.OutputDir)
			index := faceindex.Load(path)
			out := cmd.OutOrStdout()
			if index.Len() == 0 {
				fmt.Fprintf(out, "No faces indexed in %s\n", path)
				return nil
			}
			rows := make([][]string, 0, index.Len())
			total := 0
			for _, entry := range index.Entries() {
				rows = append(rows, []string{entry.Image, strconv.Itoa(len(entry.Vectors))})
				total += len(entry.Vectors)
			}
			fmt.Fprint(out, renderTable([]string{"Image", "Faces"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "%d images, %d faces\n", index.Len(), total)
			return nil
		},
	}
}

func newIndexMatchCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "match <selfie>",
		Short: "Find published images containing a face from the given photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if threshold <= 0 {
				threshold = cfg.Faces.MatchThreshold
			}
			probePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			engine, err := faceindex.NewEngineDetector(cfg.Faces.EngineCommand)
			if err != nil {
				return err
			}
			defer engine.Close()

			probes, err := engine.Detect(cmd.Context(), probePath)
			if err != nil {
				return err
			}
			if len(probes) == 0 {
				return fmt.Errorf("no face found in %s", probePath)
			}
			index := faceindex.Load(faceindex.PathFor(cfg.Paths.OutputDir))
			printMatches(cmd.OutOrStdout(), mergeMatches(index, probes, threshold))
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Maximum face distance (defaults to faces.match_threshold)")
	return cmd
}

// mergeMatches keeps the best distance per image across all probe faces,
// closest first.
func mergeMatches(index *faceindex.Index, probes [][]float64, threshold float64) []faceindex.Match {
	best := make(map[string]float64)
	for _, probe := range probes {
		for _, m := range index.Match(probe, threshold) {
			if d, ok := best[m.Image]; !ok || m.Distance < d {
				best[m.Image] = m.Distance
			}
		}
	}
	matches := make([]faceindex.Match, 0, len(best))
	for image, distance := range best {
		matches = append(matches, faceindex.Match{Image: image, Distance: distance})
	}
	slices.SortFunc(matches, func(a, b faceindex.Match) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), strings.Compare(a.Image, b.Image))
	})
	return matches
}

func printMatches(out io.Writer, matches []faceindex.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matching photos")
		return
	}
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{m.Image, strconv.FormatFloat(m.Distance, 'f', 3, 64)})
	}
	fmt.Fprint(out, renderTable([]string{"Image", "Distance"}, rows, []columnAlignment{alignLeft, alignRight}))
}
