package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/config"
	"resto-ops-services/internal/db"
	httpapi "resto-ops-services/internal/http"
	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/logger"
	"resto-ops-services/internal/queue"
	"resto-ops-services/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo store.Repository
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Fatal("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL is empty; using in-memory store")
		mem := store.NewMemory(time.Now)
		for _, t := range devTables() {
			mem.SeedTable(t)
		}
		log.Info("seeded in-memory tables", zap.Int("count", len(devTables())))
		repo = mem
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		if cfg.DBMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				log.Fatal("database migration failed", zap.Error(err))
			}
			log.Info("database schema applied")
		}
		repo = store.New(pool)
	}

	machine, err := chatMachine(cfg)
	if err != nil {
		log.Fatal("chat levels invalid", zap.Error(err))
	}
	var chatClient *chat.Client
	if cfg.ChatBackendURL != "" {
		chatClient = chat.NewClient(cfg.ChatBackendURL, cfg.ChatBackendTimeout, machine, log.Named("chat"))
		log.Info("chat backend enabled", zap.String("url", cfg.ChatBackendURL))
	} else {
		log.Info("chat backend disabled (CHAT_BACKEND_URL is empty)")
	}

	queueClient := setupQueue(ctx, cfg, log)
	if queueClient != nil {
		defer queueClient.Close()

		if cfg.RabbitMQWorkerMode == "daemon" {
			log.Info("event translator enabled", zap.String("mode", "daemon"))
			go func() {
				err := queueClient.ConsumeWithRetry(ctx, queue.EventsQueue, func(ctx context.Context, body []byte) error {
					return queue.ProcessEventToJobs(ctx, repo, queueClient, body)
				}, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay, log.Named("worker"))
				if err != nil {
					log.Error("consumer stopped", zap.Error(err))
				}
			}()
		} else {
			log.Info("event translator disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
		}
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(repo, log, cfg, queueClient, machine, chatClient),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("resto ops api ready", zap.String("base", "/api"))
		log.Info("resto ops service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

// devTables is the floor plan the in-memory store starts with.
func devTables() []lifecycle.Table {
	plan := []struct {
		number   string
		zone     string
		capacity int
	}{
		{"1", "salon", 2},
		{"2", "salon", 4},
		{"3", "salon", 4},
		{"4", "terraza", 6},
		{"5", "terraza", 8},
	}
	tables := make([]lifecycle.Table, 0, len(plan))
	for _, p := range plan {
		tables = append(tables, lifecycle.Table{Number: p.number, Zone: p.zone, Capacity: p.capacity, Status: lifecycle.TableAvailable})
	}
	return tables
}

func chatMachine(cfg config.Config) (*chat.Machine, error) {
	levels := chat.DefaultLevels()
	if cfg.ChatLevelsFile != "" {
		loaded, err := chat.LoadLevels(cfg.ChatLevelsFile)
		if err != nil {
			return nil, err
		}
		levels = loaded
	}
	policy, ok := chat.ParseUnknownLevelPolicy(cfg.ChatUnknownLevelPolicy)
	if !ok {
		policy = chat.FailOpen
	}
	return chat.NewMachine(levels, chat.WithUnknownLevelPolicy(policy), chat.WithSessionTTL(cfg.ChatSessionTTL))
}

// setupQueue connects to RabbitMQ and declares every topology the service
// publishes to. Outside production a broker failure disables publishing.
func setupQueue(ctx context.Context, cfg config.Config, log *zap.Logger) *queue.Client {
	if cfg.RabbitMQURL == "" {
		log.Info("event publishing disabled (RABBITMQ_URL is empty)")
		return nil
	}
	log.Info("rabbitmq enabled", zap.String("eventsQueue", queue.EventsQueue))

	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		log.Warn("rabbitmq connection failed; continuing without worker", zap.Error(err))
		return nil
	}

	steps := []struct {
		name string
		fn   func(context.Context, *queue.Client) error
	}{
		{"events", queue.EnsureEventsTopology},
		{"notification_jobs", queue.EnsureNotificationJobsTopology},
		{"kitchen_tickets", queue.EnsureKitchenTicketsTopology},
	}
	for _, step := range steps {
		if err := step.fn(ctx, qc); err != nil {
			if cfg.IsProduction() {
				log.Fatal("rabbitmq "+step.name+" topology failed", zap.Error(err))
			}
			log.Warn("rabbitmq "+step.name+" topology failed; continuing without worker", zap.Error(err))
			_ = qc.Close()
			return nil
		}
	}
	return qc
}
