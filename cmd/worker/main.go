package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nutritrack_app_echo/internal/services"
)

// The worker periodically re-derives premium entitlements from the
// transaction store. The reconciler grants entitlements in the same database
// transaction as the payment, so this loop normally finds nothing; it exists
// as the idempotent safety net for entitlement writes lost to partial
// failures.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	entitlements := services.NewEntitlementService(db, cache)

	log.Println("Entitlement refresh worker started")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	// Run once at startup, then on every tick
	refresh(ctx, entitlements)

	for {
		select {
		case <-ticker.C:
			refresh(ctx, entitlements)
		case <-ctx.Done():
			return
		}
	}
}

func refresh(ctx context.Context, entitlements *services.EntitlementService) {
	healed, err := entitlements.RefreshAll(ctx)
	if err != nil {
		log.Printf("Entitlement refresh failed: %v", err)
		return
	}
	if healed > 0 {
		log.Printf("Healed %d entitlements", healed)
	}
}
