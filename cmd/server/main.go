package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"nutritrack_app_echo/internal/handlers"
	authMiddleware "nutritrack_app_echo/internal/middleware"
	"nutritrack_app_echo/internal/services"
)

const defaultPremiumPrice = 16000

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(context.Background(), credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional; entitlement reads fall back to the database
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Midtrans client. Fails closed: without a server key webhook signatures
	// cannot be verified, so refuse to start.
	gateway, err := services.NewMidtransService()
	if err != nil {
		log.Fatalf("Failed to initialize Midtrans client: %v", err)
	}

	premiumPrice := int64(defaultPremiumPrice)
	if v := os.Getenv("PREMIUM_PRICE"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			log.Fatalf("Invalid PREMIUM_PRICE: %q", v)
		}
		premiumPrice = parsed
	}

	// Services
	paymentService := services.NewPaymentService(db, gateway, premiumPrice)
	reconciler := services.NewReconciler(db, cache)
	entitlementService := services.NewEntitlementService(db, cache)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(db, paymentService, gateway, reconciler, entitlementService)
	webhookHandler := handlers.NewWebhookHandler(db, gateway, reconciler)

	// Gateway notifications are authenticated by signature, not session
	e.POST("/api/payments/notification", webhookHandler.HandleNotification)

	// Authenticated API
	api := e.Group("/api")
	api.Use(authMiddleware.RequireAuth(authClient))
	api.POST("/payments/premium", paymentHandler.InitiatePremium)
	api.GET("/payments/:order_id/status", paymentHandler.PollStatus)
	api.GET("/premium/status", paymentHandler.PremiumStatus)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
