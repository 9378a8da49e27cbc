package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var backfillBatch int

// NewVectorsCmd creates the vectors command group.
func NewVectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Manage ref embeddings",
	}

	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Embed every ref that has no stored vector",
		Long: `Embed every ref in the catalog that has no stored vector, in batches.
The run stops early when a whole batch fails, for example when the
embedding service is unavailable.`,
		RunE: runVectorsBackfill,
	}
	backfill.Flags().IntVar(&backfillBatch, "batch", 100, "Refs embedded per batch")

	cmd.AddCommand(backfill)
	return cmd
}

func runVectorsBackfill(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(backfillBatch, "batch"); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	eng, err := buildEngine(cfg, store, nil)
	if err != nil {
		return err
	}

	report, err := eng.Vectors.Backfill(runContext(cmd), backfillBatch)
	if report != nil {
		if encErr := writeJSON(cmd, report); encErr != nil {
			return encErr
		}
	}
	return err
}

// writeJSON prints v as indented JSON.
func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// validatePositiveInt returns an error if n is not positive.
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}
