package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/shelfwatch/extractor"
	"github.com/yairfalse/shelfwatch/types"
)

var (
	checkKind    string
	checkTimeout = defaultCheckTimeout
)

const defaultCheckTimeout = 30

// checkCmd probes one URL once and prints the snapshot. Nothing is stored
// and nothing is notified; this is the "is my selector right" tool.
var checkCmd = &cobra.Command{
	Use:   "check URL",
	Short: "Probe a page once and print the snapshot",
	Example: `  shelfwatch check https://shop.example.com/collections/new
  shelfwatch check --kind variant https://shop.example.com/products/hoodie`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkKind, "kind", "catalog", "Site kind (catalog, variant, listing)")
	checkCmd.Flags().IntVar(&checkTimeout, "timeout", defaultCheckTimeout, "Probe timeout in seconds")
}

func runCheck(cmd *cobra.Command, args []string) error {
	target, err := types.NewTarget(args[0], types.SiteKind(checkKind), "")
	if err != nil {
		return err
	}

	registry := extractor.NewRegistry(extractor.NewSafeClient(secondsDuration(checkTimeout)))

	ctx, cancel := context.WithTimeout(context.Background(), secondsDuration(checkTimeout))
	defer cancel()

	snap, err := registry.Probe(ctx, target)
	if err != nil {
		return fmt.Errorf("probe failed (%s): %w", extractor.KindOf(err), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
