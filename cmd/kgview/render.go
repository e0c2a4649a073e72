package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/kgview/pkg/live"
	"github.com/recera/kgview/pkg/render"
	"github.com/recera/kgview/pkg/source"
)

type renderFlags struct {
	entity     string
	depth      int
	name       string
	entityType string
	limit      int
	ticks      int
	width      float64
	height     float64
	out        string
	timeout    time.Duration
}

func newRenderCommand(flags *globalFlags) *cobra.Command {
	var rf renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Lay out the graph headlessly and write SVG",
		Long: `Runs the layout without a window and writes the resulting frame as SVG.
Without --entity the full view is rendered, otherwise the neighborhood of that
entity.`,
		Example: `  kgview render -f graph.yaml --out graph.svg
  kgview render -f graph.yaml --entity ada --depth 1 --ticks 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log, "")
			if err != nil {
				return err
			}
			defer logger.Sync()

			entityType, err := parseEntityType(rf.entityType)
			if err != nil {
				return err
			}
			src, _, err := openSource(cfg, logger)
			if err != nil {
				return err
			}

			opts := engineOptions(cfg, logger)
			opts.Filter = source.Filter{Name: rf.name, Type: entityType, Limit: rf.limit}
			if rf.limit == 0 {
				opts.Filter.Limit = cfg.Viewer.Limit
			}
			if rf.depth != 0 {
				opts.Depth = rf.depth
			}
			if rf.width > 0 {
				opts.Width = rf.width
			}
			if rf.height > 0 {
				opts.Height = rf.height
			}
			ticks := cfg.Viewer.Ticks
			if rf.ticks > 0 {
				ticks = rf.ticks
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rf.timeout)
			defer cancel()
			frame, err := live.RenderFrame(ctx, src, &opts, rf.entity, ticks)
			if err != nil {
				return err
			}
			if frame.Status.Err != "" {
				logger.Warn("rendered with error", zap.String("error", frame.Status.Err))
			}
			svg, err := render.RenderSVG(frame)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if rf.out != "" && rf.out != "-" {
				f, err := os.Create(rf.out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if _, err := fmt.Fprintln(w, svg); err != nil {
				return err
			}
			logger.Info("rendered",
				zap.Int("nodes", len(frame.Nodes)),
				zap.Int("edges", len(frame.Edges)),
				zap.String("out", rf.out))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.entity, "entity", "", "Render the neighborhood of this entity id")
	f.IntVar(&rf.depth, "depth", 0, "Neighborhood depth (1-3)")
	f.StringVar(&rf.name, "name", "", "Name filter for the full view")
	f.StringVar(&rf.entityType, "type", "", "Entity type filter for the full view")
	f.IntVar(&rf.limit, "limit", 0, "Maximum entities in the full view (default 100)")
	f.IntVar(&rf.ticks, "ticks", 0, "Maximum layout ticks (default from config)")
	f.Float64Var(&rf.width, "width", 0, "Canvas width")
	f.Float64Var(&rf.height, "height", 0, "Canvas height")
	f.StringVarP(&rf.out, "out", "o", "", "Output file (default stdout)")
	f.DurationVar(&rf.timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}
