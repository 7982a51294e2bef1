package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"inventory.GO/config"
	inventoryRepo "inventory.GO/model/repository/inventory"
)

var queueStatusCmd = &cobra.Command{
	Use:   "queue:status",
	Short: "Show the QuickBooks sync queue state",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}

		summary, err := inventoryRepo.NewReadsRepository(db).QueueSummary(10)
		if err != nil {
			fmt.Printf("Queue summary failed: %v\n", err)
			return
		}
		fmt.Println("=== Sync Queue ===")
		for _, status := range []string{"pending", "in_flight", "applied", "error"} {
			fmt.Printf("%-10s %d\n", status, summary.Counts[status])
		}
		fmt.Printf("eligible now: %d\n", summary.EligibleNow)
		for _, ev := range summary.RecentErrors {
			fmt.Printf("  [error] %s %s retry=%d code=%s %s\n",
				ev.EventID, ev.EventType, ev.RetryCount, ev.LastErrorCode, ev.LastErrorMessage)
		}
	},
}

var retryEventID string

var queueRetryCmd = &cobra.Command{
	Use:   "queue:retry",
	Short: "Requeue a failed event for the next Web Connector run",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}

		event, err := inventoryRepo.NewQueueRepository(db).ManualRetry(retryEventID)
		if err != nil {
			fmt.Printf("Retry failed: %v\n", err)
			return
		}
		fmt.Printf("Event %s requeued (retry count %d)\n", event.EventID, event.RetryCount)
	},
}

func init() {
	queueRetryCmd.Flags().StringVar(&retryEventID, "event", "", "Event ID to requeue (required)")
	queueRetryCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(queueStatusCmd, queueRetryCmd)
}
