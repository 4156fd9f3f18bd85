package main

import (
	"fmt"
	"strconv"
	"strings"

	"os4/internal/rom"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// catalogMarkdown renders catalog n as a markdown table.
func catalogMarkdown(n int, items []rom.CatalogItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# CAT %d\n\n", n)
	b.WriteString("| # | Name | XROM |\n")
	b.WriteString("|---|------|------|\n")
	for i, it := range items {
		xrom := "-"
		if it.Ref != nil {
			xrom = fmt.Sprintf("%02d,%02d", it.Ref.ROM, it.Ref.Index)
		}
		fmt.Fprintf(&b, "| %02d | `%s` | %s |\n", i, it.Name, xrom)
	}
	return b.String()
}

func runCatalog(cmd *cobra.Command, args []string) error {
	n := rom.FunctionCatalog
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid catalog number %q: %w", args[0], err)
		}
		n = v
	}

	sys, _, err := bootSystem(commandContext(cmd))
	if err != nil {
		return err
	}
	defer closeSystem(sys)

	items, err := rom.Lookup(sys, n)
	if err != nil {
		return err
	}
	md := catalogMarkdown(n, items)

	out := cmd.OutOrStdout()
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		fmt.Fprint(out, md)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render catalog: %w", err)
	}
	fmt.Fprint(out, rendered)
	return nil
}
