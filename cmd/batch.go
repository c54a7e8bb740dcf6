package cmd

import (
	"fmt"

	"github.com/demostf/steamvoice/internal/extract"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [flags] <job-file.yaml>",
	Short: "Extract voice data from multiple CS2 demos described in a YAML job file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := extract.LoadBatchConfig(args[0])
		if err != nil {
			return err
		}

		errs := extract.RunBatch(cfg)
		fmt.Printf("Batch complete: %d job(s), %d failed\n", len(cfg.Jobs), len(errs))
		for _, err := range errs {
			fmt.Println("  -", err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d of %d jobs failed", len(errs), len(cfg.Jobs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
