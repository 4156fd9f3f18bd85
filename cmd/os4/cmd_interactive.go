package main

import (
	"context"
	"errors"
	"os"

	"os4/cmd/os4/ui"
	"os4/internal/config"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runInteractive runs the calculator TUI. When the config file exists it is
// watched and reloads are fed to the program as messages.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sys, _, err := bootSystem(ctx)
	if err != nil {
		return err
	}
	defer closeSystem(sys)

	program := tea.NewProgram(ui.New(sys, ui.DefaultStyles()), tea.WithAltScreen(), tea.WithContext(ctx))
	g, gctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(configPath); err == nil {
		w, err := config.NewWatcher(configPath, func(cfg *config.Config) {
			if dbPath != "" {
				cfg.Store.DatabasePath = dbPath
			}
			program.Send(ui.ConfigMsg{Config: cfg})
		})
		if err != nil {
			return err
		}
		if err := w.Start(gctx); err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		}
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
