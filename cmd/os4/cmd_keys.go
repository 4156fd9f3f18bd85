package main

import (
	"context"
	"fmt"

	"os4/internal/keys"
	"os4/internal/system"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// commandContext returns the command context, or Background for commands
// built outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// closeSystem saves continuous memory and closes the store.
func closeSystem(sys *system.System) {
	if err := sys.Close(); err != nil {
		logger.Warn("failed to close system", zap.Error(err))
	}
}

// runKeys presses each argument in turn. User errors are shown like the
// calculator shows them; only internal errors stop the run.
func runKeys(cmd *cobra.Command, args []string) error {
	codes := make([]keys.Code, len(args))
	for i, arg := range args {
		c, err := keys.Parse(arg)
		if err != nil {
			return err
		}
		codes[i] = c
	}

	sys, _, err := bootSystem(commandContext(cmd))
	if err != nil {
		return err
	}
	defer closeSystem(sys)

	out := cmd.OutOrStdout()
	for _, c := range codes {
		err := sys.Press(c)
		switch {
		case err == nil:
			fmt.Fprintf(out, "%-8s %s\n", c.Name(), sys.Display())
		case system.IsUserError(err):
			fmt.Fprintf(out, "%-8s %s !\n", c.Name(), sys.Display())
			logger.Debug("user error", zap.String("key", c.Name()), zap.Error(err))
		default:
			return fmt.Errorf("key %s: %w", c.Name(), err)
		}
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		snap, err := sys.Save("keys")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s\n", snap.ID)
	}
	return nil
}
