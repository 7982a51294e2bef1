package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"inventory.GO/config"
	partImport "inventory.GO/service/partimport"
)

var (
	partsFile       string
	partsBatch      int
	partsDeactivate bool
)

var partsImportCmd = &cobra.Command{
	Use:   "parts:import",
	Short: "Import the SKU master catalog from a CSV feed",
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(partsFile)
		if err != nil {
			fmt.Printf("Failed to open CSV: %v\n", err)
			return
		}
		defer f.Close()

		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}

		res, err := partImport.ImportPartsCSV(db, f, partImport.ImportOptions{
			BatchSize:         partsBatch,
			DeactivateMissing: partsDeactivate,
		})
		if err != nil {
			fmt.Printf("Import failed: %v\n", err)
			return
		}

		for _, w := range res.Warnings {
			fmt.Printf("  [warn] %s\n", w)
		}
		fmt.Printf(`
=== Part Import Report ===
CSV rows:     %d
Upserted:     %d
Skipped:      %d
Deactivated:  %d
Total time:   %s
==========================
`, res.TotalRows, res.Upserted, res.Skipped, res.Deactivated,
			res.TotalTime.Round(time.Millisecond))
	},
}

func init() {
	partsImportCmd.Flags().StringVarP(&partsFile, "file", "f", "", "CSV file path (required)")
	partsImportCmd.MarkFlagRequired("file")
	partsImportCmd.Flags().IntVar(&partsBatch, "batch-size", 500, "Batch size for DB operations")
	partsImportCmd.Flags().BoolVar(&partsDeactivate, "deactivate-missing", false, "Mark parts absent from the feed inactive")
	rootCmd.AddCommand(partsImportCmd)
}
