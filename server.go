package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"inventory.GO/api"
	_ "inventory.GO/api/inventory"
	qbwcApi "inventory.GO/api/qbwc"
	"inventory.GO/config"
	"inventory.GO/core/auth"
	"inventory.GO/cron"
	"inventory.GO/cron/jobs"
	_ "inventory.GO/custom"
	entity "inventory.GO/model/entity"
	inventoryEntity "inventory.GO/model/entity/inventory"
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.ApiToken{},
		&inventoryEntity.Part{},
		&inventoryEntity.Location{},
		&inventoryEntity.Balance{},
		&inventoryEntity.InventoryEvent{},
		&inventoryEntity.EventLine{},
		&inventoryEntity.ReasonAccount{},
		&inventoryEntity.SyncSession{},
		&inventoryEntity.ApprovalRequest{},
	)
}

func main() {
	config.LoadEnv()
	config.LoadAppConfig()

	// Initialize Redis
	config.InitRedis()
	redisStatus := "Redis not configured or not reachable, item cache persistence disabled."
	if config.RedisClient != nil {
		err := config.RedisClient.Ping(config.RedisCtx()).Err()
		if err == nil {
			redisStatus = "Redis connection successful."
		} else {
			config.RedisClient = nil // Disable Redis if not reachable
			redisStatus = "Redis configured but not reachable, item cache persistence disabled."
		}
	}
	log.Println(redisStatus)

	db, err := config.NewDB()
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}

	// Check DB connection
	sqldb, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get DB instance: %v", err)
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	log.Println("Database connection successful.")

	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.Decompress())

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start).Milliseconds()
			c.Response().Header().Set("X-Request-Duration-ms", strconv.FormatInt(duration, 10))
			return err
		}
	})

	apiGroup := e.Group("/api")
	apiGroup.Use(auth.Middleware(db))

	api.ApplyModules(apiGroup, db)
	api.ApplyRoutes(e, db)

	// Maintenance jobs share the SOAP endpoint's bridge service.
	jobs.RegisterAll(db, qbwcApi.SharedService(db), config.LoadQbwcConfig())
	c := cron.StartCron()
	defer c.Stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on :%s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
