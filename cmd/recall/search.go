package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	recallengine "github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/logger"
	"github.com/soundprediction/recall/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one retrieval query against the configured stores",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
	searchCmd.Flags().String("mode", "hybrid", "Search mode (dense, lexical, hybrid)")
	searchCmd.Flags().Bool("json", false, "Print the full response as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logger.New(cfg.Log, config.TelemetryConfig{})
	if err != nil {
		return err
	}

	ctx := context.Background()
	engine, err := recallengine.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	mode, _ := cmd.Flags().GetString("mode")

	resp, err := engine.RetrieveContext(ctx, args[0], &recallengine.RetrieveOptions{
		Limit: limit,
		Mode:  types.SearchMode(mode),
	})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if !resp.Success {
		fmt.Println("all retrieval backends unreachable")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Printf("%2d. %-36s  score=%.3f  source=%s\n", i+1, r.ID, r.Score, r.Source)
	}
	if len(resp.Results) == 0 {
		fmt.Println("no results")
	}
	return nil
}
