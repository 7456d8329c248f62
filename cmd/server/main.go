package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/mshattori/transcriber-web-app/internal/audio"
	"github.com/mshattori/transcriber-web-app/internal/cleanup"
	"github.com/mshattori/transcriber-web-app/internal/config"
	"github.com/mshattori/transcriber-web-app/internal/handlers"
	"github.com/mshattori/transcriber-web-app/internal/openai"
	"github.com/mshattori/transcriber-web-app/internal/pipeline"
	"github.com/mshattori/transcriber-web-app/internal/queue"
	"github.com/mshattori/transcriber-web-app/internal/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	logBuffer := &LogBuffer{lines: make([]string, 0, 1000)}
	log.SetOutput(io.MultiWriter(os.Stdout, logBuffer))

	log.Println("Initializing components...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiClient := openai.NewClient(cfg.OpenAI.APIKey)
	localStorage := storage.NewLocalStorage(cfg.Storage.DataDir)

	historyDB, err := storage.NewHistoryDB(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize history database: %v", err)
	}
	defer historyDB.Close()

	// Google Drive mirroring is optional; missing credentials just disable it.
	var driveClient *storage.DriveClient
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			driveClient = nil
		} else {
			log.Println("Google Drive integration enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	deps := pipeline.Deps{
		Splitter:     audio.NewSplitter(),
		Speech:       apiClient,
		Chat:         apiClient,
		Store:        localStorage,
		History:      historyDB,
		LanguageCode: cfg.LanguageCode,
	}
	if driveClient != nil {
		deps.Drive = driveClient
	}
	pipe := pipeline.New(deps)

	tracker := queue.NewTracker()
	workerPool := queue.NewWorkerPool(cfg.Workers.Count, pipe, tracker, log.Default())
	workerPool.Start(ctx)

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	uploadHandler := handlers.NewUploadHandler(workerPool, cfg)
	jobsHandler := handlers.NewJobsHandler(tracker, localStorage, historyDB, cfg.LanguageCode)
	chatHandler := handlers.NewChatHandler(jobsHandler, localStorage, apiClient, cfg)
	progressHandler := handlers.NewProgressHandler(tracker)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "version": "1.0.0"})
	})

	app.Post("/upload", uploadHandler.Handle)
	app.Get("/jobs", jobsHandler.List)
	app.Get("/jobs/:id", jobsHandler.Get)
	app.Get("/jobs/:id/text", jobsHandler.Text)
	app.Get("/jobs/:id/download", jobsHandler.Download)
	app.Post("/jobs/:id/chat", chatHandler.Handle)
	app.Get("/ws/jobs/:id", websocket.New(progressHandler.Handle))

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"logs": logBuffer.GetLogs()})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /upload            - Upload audio file for transcription")
	log.Println("   GET  /jobs              - List jobs and history")
	log.Println("   GET  /jobs/:id          - Job status")
	log.Println("   GET  /jobs/:id/text     - Transcript, translation or integrated view")
	log.Println("   GET  /jobs/:id/download - Zip of all artifacts")
	log.Println("   POST /jobs/:id/chat     - Ask questions about a transcript")
	log.Println("   GET  /ws/jobs/:id       - WebSocket progress stream")
	log.Println("   GET  /logs              - View server logs")
	log.Println("   GET  /health            - Health check")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		cancel()
		app.Shutdown()
		workerPool.Stop()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures recent log lines in memory for the /logs endpoint.
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}
	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
