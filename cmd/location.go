package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"inventory.GO/config"
	inventoryEntity "inventory.GO/model/entity/inventory"
	inventoryRepo "inventory.GO/model/repository/inventory"
)

var (
	locationCode    string
	locationName    string
	locationSite    string
	locationVirtual bool
)

var locationAddCmd = &cobra.Command{
	Use:   "locations:add",
	Short: "Create or update a stock location",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}

		loc := inventoryEntity.Location{
			Code:           locationCode,
			DisplayName:    locationName,
			Active:         true,
			IsVirtual:      locationVirtual,
			QBSiteFullName: locationSite,
		}
		if err := inventoryRepo.NewLocationRepository(db).Upsert(&loc); err != nil {
			fmt.Printf("Upsert failed: %v\n", err)
			return
		}
		fmt.Printf("Location %s (%s) saved, site=%q virtual=%v\n", loc.Code, loc.DisplayName, loc.QBSiteFullName, loc.IsVirtual)
	},
}

func init() {
	locationAddCmd.Flags().StringVar(&locationCode, "code", "", "Location code (required)")
	locationAddCmd.MarkFlagRequired("code")
	locationAddCmd.Flags().StringVar(&locationName, "name", "", "Display name (required)")
	locationAddCmd.MarkFlagRequired("name")
	locationAddCmd.Flags().StringVar(&locationSite, "site", "", "QuickBooks inventory site full name")
	locationAddCmd.Flags().BoolVar(&locationVirtual, "virtual", false, "Ledger-only location, never synced to QuickBooks")
	rootCmd.AddCommand(locationAddCmd)
}
