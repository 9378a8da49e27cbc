package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var generateLimit int

// NewPersonalitiesCmd creates the personalities command group.
func NewPersonalitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personalities",
		Short: "Generate composite personalities",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Regenerate every person's composite personality once",
		Long: `Regenerate every person's composite personality, paced by
REFMATCH_REFRESH_PER_SECOND. People without refs are skipped.`,
		Args: cobra.NoArgs,
		RunE: runPersonalitiesRefresh,
	}

	generate := &cobra.Command{
		Use:   "generate <user_id>",
		Short: "Generate one person's composite personality",
		Args:  cobra.ExactArgs(1),
		RunE:  runPersonalitiesGenerate,
	}
	generate.Flags().IntVar(&generateLimit, "limit", 0, "Most recent refs to use (default REFMATCH_COMPOSITE_LIMIT)")

	cmd.AddCommand(refresh)
	cmd.AddCommand(generate)
	return cmd
}

func runPersonalitiesRefresh(cmd *cobra.Command, args []string) error {
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

	report, err := eng.Refresher.RefreshAll(runContext(cmd))
	if err != nil {
		return err
	}
	return writeJSON(cmd, report)
}

func runPersonalitiesGenerate(cmd *cobra.Command, args []string) error {
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

	limit := generateLimit
	if limit <= 0 {
		limit = cfg.Personality.CompositeLimit
	}
	result, err := eng.Synthesizer.Composite(runContext(cmd), args[0], limit)
	if err != nil {
		return err
	}
	return writeJSON(cmd, result)
}
