package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "shelfwatch",
		Short: "E-commerce page change watcher",
		Long: `Shelfwatch - e-commerce page change watcher

Shelfwatch polls catalog, product and listing pages, detects real changes
(new items, restocks, launches), debounces transient blips, and notifies
over email, push and webhooks.

A change is only trusted after consecutive consistent observations, so a
partial page load or a network blip never produces a false alert.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Shelfwatch {{.Version}}
`)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "shelfwatch.yaml", "Path to the configuration file")
}
