package jobs

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"inventory.GO/config"
	"inventory.GO/cron"
	inventoryRepo "inventory.GO/model/repository/inventory"
	qbwcService "inventory.GO/service/qbwc"
)

// RegisterAll wires the recurring maintenance jobs. Called once at server
// startup with the live DB and the shared bridge service so the jobs act
// on the same item cache the SOAP endpoint serves from.
func RegisterAll(db *gorm.DB, svc *qbwcService.Service, cfg *config.QbwcConfig) {
	if !svc.Items().LiveMode() && cfg.ItemsRefreshMinutes > 0 {
		schedule := fmt.Sprintf("@every %dm", cfg.ItemsRefreshMinutes)
		cron.Register("qbwc_item_cache_refresh", schedule, func(...string) {
			if err := svc.Items().RefreshCSV(); err != nil {
				log.Printf("[cron] item cache refresh: %v", err)
			}
		})
	}

	sessions := inventoryRepo.NewSessionRepository(db)
	maxAge := time.Duration(cfg.SessionStaleMinutes) * time.Minute
	cron.Register("qbwc_session_sweep", "@every 10m", func(...string) {
		removed, err := sessions.SweepStale(maxAge)
		if err != nil {
			log.Printf("[cron] session sweep: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("[cron] session sweep: removed %d stale sessions", removed)
		}
	})
}
