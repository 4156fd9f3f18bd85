package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"os4/internal/store"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupCLI points the global flags at a temporary workspace.
func setupCLI(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "os4.yaml")
	dbPath = filepath.Join(dir, "os4.db")
	t.Cleanup(func() {
		configPath = "os4.yaml"
		dbPath = ""
	})
	return dbPath
}

func newCmd(flags func(*cobra.Command)) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	if flags != nil {
		flags(cmd)
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	return cmd, &buf
}

func keysFlags(cmd *cobra.Command) { cmd.Flags().Bool("save", false, "") }

func TestKeysCmd(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd(keysFlags)
	require.NoError(t, runKeys(cmd, []string{"1", "ENTER", "2", "+"}))
	assert.Contains(t, out.String(), "3.0000")
	assert.Contains(t, out.String(), "ENTER")
}

func TestKeysCmdContinuousMemory(t *testing.T) {
	setupCLI(t)
	cmd, _ := newCmd(keysFlags)
	require.NoError(t, runKeys(cmd, []string{"4", "2", "ENTER"}))

	// The second run restores the autosaved stack.
	cmd, out := newCmd(keysFlags)
	require.NoError(t, runKeys(cmd, []string{"+"}))
	assert.Contains(t, out.String(), "84.0000")
}

func TestKeysCmdUserErrorDoesNotFail(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd(keysFlags)
	require.NoError(t, runKeys(cmd, []string{"/"}))
	assert.Contains(t, out.String(), "DATA ERROR !")
}

func TestKeysCmdUnknownKey(t *testing.T) {
	setupCLI(t)
	cmd, _ := newCmd(keysFlags)
	err := runKeys(cmd, []string{"NOPE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestKeysCmdSave(t *testing.T) {
	path := setupCLI(t)
	cmd, out := newCmd(keysFlags)
	require.NoError(t, cmd.Flags().Set("save", "true"))
	require.NoError(t, runKeys(cmd, []string{"7"}))
	assert.Contains(t, out.String(), "saved ")

	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()
	list, err := db.List(0)
	require.NoError(t, err)
	var labels []string
	for _, s := range list {
		labels = append(labels, s.Label)
	}
	assert.Contains(t, labels, "keys")
	assert.Contains(t, labels, "autosave")
}

func catalogFlags(cmd *cobra.Command) { cmd.Flags().Bool("raw", false, "") }

func TestCatalogCmdRaw(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd(catalogFlags)
	require.NoError(t, cmd.Flags().Set("raw", "true"))
	require.NoError(t, runCatalog(cmd, nil))
	assert.Contains(t, out.String(), "# CAT 1")
	assert.Contains(t, out.String(), "| 01 | `X^3` | 06,01 |")

	cmd, out = newCmd(catalogFlags)
	require.NoError(t, cmd.Flags().Set("raw", "true"))
	require.NoError(t, runCatalog(cmd, []string{"4"}))
	assert.Contains(t, out.String(), "BUF 02 SIZE 22")
	assert.Contains(t, out.String(), "| -")
}

func TestCatalogCmdRendered(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd(catalogFlags)
	require.NoError(t, runCatalog(cmd, []string{"1"}))
	assert.Contains(t, out.String(), "RNDM")
}

func TestCatalogCmdErrors(t *testing.T) {
	setupCLI(t)
	cmd, _ := newCmd(catalogFlags)
	assert.Error(t, runCatalog(cmd, []string{"x"}))
	assert.Error(t, runCatalog(cmd, []string{"9"}))
}

func TestSnapshotsCmd(t *testing.T) {
	path := setupCLI(t)

	cmd, out := newCmd(func(c *cobra.Command) { c.Flags().Int("limit", 0, "") })
	require.NoError(t, listSnapshots(cmd, nil))
	assert.Contains(t, out.String(), "no snapshots")

	kc, _ := newCmd(keysFlags)
	require.NoError(t, runKeys(kc, []string{"5"}))

	cmd, out = newCmd(func(c *cobra.Command) { c.Flags().Int("limit", 0, "") })
	require.NoError(t, listSnapshots(cmd, nil))
	assert.Contains(t, out.String(), "autosave")

	db, err := store.Open(path)
	require.NoError(t, err)
	list, err := db.List(0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID
	require.NoError(t, db.Close())

	cmd, out = newCmd(nil)
	require.NoError(t, deleteSnapshot(cmd, []string{id}))
	assert.Contains(t, out.String(), "deleted "+id)
	assert.ErrorIs(t, deleteSnapshot(cmd, []string{id}), store.ErrNotFound)
}

func TestSnapshotsPrune(t *testing.T) {
	setupCLI(t)
	for i := 0; i < 3; i++ {
		kc, _ := newCmd(keysFlags)
		require.NoError(t, runKeys(kc, []string{"1"}))
	}
	cmd, out := newCmd(func(c *cobra.Command) { c.Flags().Int("keep", 1, "") })
	require.NoError(t, pruneSnapshots(cmd, nil))
	assert.Contains(t, out.String(), "pruned 2")
}

func TestVersionCmd(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd(nil)
	require.NoError(t, versionCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "os4 API 0.01")
}

func TestInvalidConfigRejected(t *testing.T) {
	setupCLI(t)
	t.Setenv("OS4_REGISTERS", "2")
	cmd, _ := newCmd(keysFlags)
	err := runKeys(cmd, []string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.registers")
}
