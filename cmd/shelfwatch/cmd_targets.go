package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/shelfwatch/config"
	"github.com/yairfalse/shelfwatch/storage"
)

// targetsCmd lists the registered targets and their stored baselines.
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List registered targets and baseline state",
	RunE:  runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	targets, err := store.ListTargets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("no targets registered")
		return nil
	}

	states := map[string]string{}
	updated := map[string]time.Time{}
	for _, st := range store.BaselineStates() {
		states[st.TargetID] = string(st.Status)
		updated[st.TargetID] = st.UpdatedAt
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSTATUS\tUPDATED\tURL")
	for _, t := range targets {
		status := states[t.ID]
		if status == "" {
			status = "-"
		}
		when := "-"
		if ts, ok := updated[t.ID]; ok {
			when = ts.Format(time.RFC3339)
		}
		name := t.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, t.Kind, status, when, t.URL)
	}
	return w.Flush()
}
