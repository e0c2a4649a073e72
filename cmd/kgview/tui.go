package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/kgview/cmd/kgview/internal/tui"
	"github.com/recera/kgview/pkg/engine"
)

func newTUICommand(flags *globalFlags) *cobra.Command {
	var logFile string
	var name, entityType string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Explore the graph in the terminal",
		Long: `Draws the graph with characters and reacts to the mouse: click an entity
to load its neighborhood, drag to move it, scroll to zoom. Logs go to --log-file
since the terminal is in use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			var logger *zap.Logger
			if logFile != "" {
				if logger, err = newLogger(cfg.Log, logFile); err != nil {
					return err
				}
			} else {
				logger = zap.NewNop()
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			filterType, err := parseEntityType(entityType)
			if err != nil {
				return err
			}
			src, fixture, err := openSource(cfg, logger)
			if err != nil {
				return err
			}

			opts := engineOptions(cfg, logger)
			opts.Filter.Name = name
			opts.Filter.Type = filterType
			eng, err := engine.New(src, &opts)
			if err != nil {
				return err
			}
			if err := eng.Mount(ctx); err != nil {
				return err
			}
			defer eng.Unmount()

			if fixture != nil && cfg.Source.Watch {
				go func() {
					if err := watchFixture(ctx, fixture, logger, func() { eng.Refresh() }); err != nil {
						logger.Warn("fixture watch stopped", zap.Error(err))
					}
				}()
			}

			err = tui.Run(ctx, eng, opts.Filter.Normalize())
			if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	cmd.Flags().StringVar(&name, "name", "", "Initial name filter")
	cmd.Flags().StringVar(&entityType, "type", "", "Initial entity type filter")
	return cmd
}
