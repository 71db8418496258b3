package main

import (
	"log"
	"net/http"
	"os"

	"solarchat/internal/config"
	"solarchat/internal/routes"
	"solarchat/internal/services"
	"solarchat/internal/websocket"
	"solarchat/pkg/database"
	"solarchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize logger
	logger.Init()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := database.InitMongoDB(cfg.MongoDB); err != nil {
		logger.Fatal("Failed to connect to MongoDB: " + err.Error())
	}
	defer database.Disconnect()

	db := database.GetDatabase()
	sessionStore := services.NewSessionService(db, cfg.MongoDB.QueryTimeout)
	messageStore := services.NewMessageService(db, cfg.MongoDB.QueryTimeout)

	// Presence hub and chat router
	hub := websocket.NewHub()
	chatRouter := websocket.NewRouter(hub, messageStore, sessionStore)

	// Initialize Gin router
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Setup routes
	routes.SetupRoutes(router, hub, chatRouter, sessionStore, messageStore)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("Server starting on " + srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("Failed to start server: " + err.Error())
	}
}
