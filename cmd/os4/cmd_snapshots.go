package main

import (
	"fmt"

	"os4/internal/store"

	"github.com/spf13/cobra"
)

// snapshotsCmd manages saved continuous memory
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List saved continuous memory snapshots",
	RunE:  listSnapshots,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteSnapshot,
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Keep only the newest snapshots",
	RunE:  pruneSnapshots,
}

func init() {
	snapshotsCmd.Flags().Int("limit", 0, "Maximum number of snapshots to list (0 = all)")
	snapshotsPruneCmd.Flags().Int("keep", 1, "Number of snapshots to keep")
	snapshotsCmd.AddCommand(snapshotsDeleteCmd, snapshotsPruneCmd)
}

// openStore opens the configured snapshot database without booting.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.DatabasePath == "" {
		return nil, fmt.Errorf("no snapshot database configured")
	}
	return store.Open(cfg.Store.DatabasePath)
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	list, err := db.List(limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "no snapshots")
		return nil
	}
	for _, s := range list {
		fmt.Fprintf(out, "%s  %s  %4d regs  %s\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"), s.Registers, s.Label)
	}
	return nil
}

func deleteSnapshot(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func pruneSnapshots(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	n, err := db.Prune(keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d\n", n)
	return nil
}
