package main

import (
	"context"
	"fmt"
	"time"

	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/translator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var symptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "Manage the local symptom catalog",
}

var symptomsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the oracle symptom list and rewrite the catalog cache",
	RunE:  runSymptomsSync,
}

var syncOutput string

func init() {
	symptomsSyncCmd.Flags().StringVarP(&syncOutput, "output", "o", "", "cache file to write (default SYMPTOM_CACHE_FILE)")
}

func runSymptomsSync(cmd *cobra.Command, args []string) error {
	path := syncOutput
	if path == "" {
		path = cfg.Catalog.CacheFile
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	catalog, err := translator.SyncCatalog(ctx, oracle.NewClient(cfg.Oracle, logger), path)
	if err != nil {
		return fmt.Errorf("symptom sync failed: %w", err)
	}

	logger.Info("symptom catalog written", zap.String("path", path), zap.Int("entries", catalog.Len()))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d symptoms to %s\n", catalog.Len(), path)
	return nil
}
