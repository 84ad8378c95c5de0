package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"capturesync/internal/faceindex"
	"capturesync/internal/logging"
	"capturesync/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var noFaces bool
	cmd := &cobra.Command{
		Use:   "process <image>...",
		Short: "Run the overlay pipeline once for the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format, Writer: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			opts := []pipeline.ProcessorOption{
				pipeline.WithLogger(logger),
				pipeline.WithObserver(pipeline.LineObserver(func(line string) {
					fmt.Fprintln(out, line)
				})),
			}
			if cfg.Faces.Enabled && !noFaces {
				engine, err := faceindex.NewEngineDetector(cfg.Faces.EngineCommand)
				if err != nil {
					return err
				}
				defer engine.Close()
				opts = append(opts, pipeline.WithDetector(engine))
			}
			processor := pipeline.NewProcessor(pipeline.ProcessingFromConfig(cfg), opts...)

			var failed int
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", arg, err)
				}
				event, candidate := processor.Process(cmd.Context(), path)
				if !candidate {
					fmt.Fprintf(out, "Ignoring %s: not a supported image\n", path)
					continue
				}
				if event.State != pipeline.Processed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files were not published", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFaces, "no-faces", false, "Skip face indexing even when enabled in config")
	return cmd
}
