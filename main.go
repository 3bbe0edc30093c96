package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"brokerdesk/config"
	"brokerdesk/database"
	"brokerdesk/logger"
	"brokerdesk/routers"
	"brokerdesk/services"
	"brokerdesk/utils"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: "brokerdesk",
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zlog := logger.GetLogger()
	defer zlog.Sync()

	if err := database.ConnectDb(); err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := database.Database.Db

	if cfg.RepairSchedule != "" {
		consistency := services.NewConsistencyService(db)
		scheduler, err := utils.StartCronJob("firm-link-repair", cfg.RepairSchedule, consistency.ScheduledRepair)
		if err != nil {
			zlog.Fatal("Failed to start repair scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	app := routers.NewApp(db, routers.Options{
		JWTKey:         cfg.JWTKey,
		UploadDir:      cfg.UploadDir,
		AtomicCascades: cfg.CascadeAtomic,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zlog.Info("Shutting down server")
		if err := app.Shutdown(); err != nil {
			zlog.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	zlog.Info("Server is running", zap.String("port", cfg.Port), zap.Bool("atomic_cascades", cfg.CascadeAtomic))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("Server stopped", zap.Error(err))
	}
}
