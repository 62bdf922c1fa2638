package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chat-service/internal/audit"
	"github.com/chat-service/internal/config"
	"github.com/chat-service/internal/handler"
	"github.com/chat-service/internal/identity"
	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/middleware"
	"github.com/chat-service/internal/repository"
	"github.com/chat-service/internal/service"
	"github.com/chat-service/internal/startup"
	"github.com/chat-service/internal/storage"
	"github.com/chat-service/internal/storage/memory"
)

type stores struct {
	messages service.MessageStore
	chats    service.ChatStore
	markers  service.MarkerStore
}

func main() {
	logger.SetPrefix("chat")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	inMemory := flag.Bool("memory", false, "keep chats, messages and read markers in process memory (no PostgreSQL)")
	flag.Parse()

	if err := run(*migrate, *dev, *inMemory); err != nil {
		logger.Errorf("%v", err)
		// асинхронный логгер: даём воркеру дописать последнюю строку
		time.Sleep(100 * time.Millisecond)
		os.Exit(1)
	}
}

// run владеет всеми ресурсами процесса; отложенные Close/Stop срабатывают и при ошибке.
func run(migrate, dev, inMemory bool) error {
	logger.Info("starting chat service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	if inMemory {
		cfg.Store = "memory"
	}

	var st stores
	if cfg.Store == "memory" {
		if migrate {
			logger.Info("-migrate ignored: store is memory")
			return nil
		}
		s := memory.NewStore()
		st = stores{messages: s, chats: s, markers: s}
		logger.Info("store: in-memory (data is lost on restart)")
	} else {
		if dev {
			embeddedDB, err := startEmbeddedPostgres(cfg)
			if err != nil {
				return fmt.Errorf("embedded postgres: %w", err)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}
		pool, err := connectPostgres(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if migrate && !dev {
			return nil
		}
		st = stores{
			messages: repository.NewMessageRepository(pool),
			chats:    repository.NewChatRepository(pool),
			markers:  repository.NewReadMarkerRepository(pool),
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWg sync.WaitGroup

	var cache storage.ProfileCache
	if cfg.Profiles.Backend == "redis" {
		rc, err := startup.ConnectRedisWithRetry(cfg.Profiles.RedisURL, 60*time.Second, "")
		if err != nil {
			return err
		}
		cache = rc
		logger.Infof("profile cache: redis, ttl %v", cfg.Profiles.TTL)
	} else {
		mc := memory.NewProfileCache()
		cache = mc
		bgWg.Add(1)
		go func() {
			defer bgWg.Done()
			startup.RunPeriodic(bgCtx, cfg.Profiles.PurgeInterval, func(context.Context) {
				if n := mc.Purge(); n > 0 {
					logger.Debugf("profile cache: purged %d expired, %d left", n, mc.Len())
				}
			})
		}()
		logger.Infof("profile cache: memory, ttl %v, purge every %v", cfg.Profiles.TTL, cfg.Profiles.PurgeInterval)
	}
	defer cache.Close()
	defer func() {
		bgCancel()
		bgWg.Wait()
	}()

	var sink audit.Sink = audit.Nop{}
	if cfg.Audit.NATSURL != "" {
		ns, err := audit.Connect(cfg.Audit.NATSURL, cfg.Audit.Subject)
		if err != nil {
			logger.Errorf("audit: nats connect %s: %v (audit disabled)", cfg.Audit.NATSURL, err)
		} else {
			sink = ns
			logger.Infof("audit: publishing to %s", cfg.Audit.Subject)
		}
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Errorf("audit close: %v", err)
		}
	}()

	idClient := identity.NewClient(cfg.Identity.URL, cfg.Identity.APIToken, cfg.Identity.Timeout)
	resolver := service.NewResolver(cache, idClient, cfg.Profiles.TTL, service.WithCoalescing(cfg.Profiles.Coalesce))
	tracker := service.NewReadTracker(st.chats, st.messages, st.markers)
	svc := handler.Services{
		Messenger: service.NewMessenger(st.chats, st.messages),
		Pipeline:  service.NewPipeline(st.messages, st.chats, tracker, resolver),
		Tracker:   tracker,
	}

	limiter := middleware.NewRateLimiter()
	bgWg.Add(1)
	go func() {
		defer bgWg.Done()
		startup.RunPeriodic(bgCtx, time.Minute, func(context.Context) { limiter.Sweep() })
	}()

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.NewRouter(cfg, svc, sink, limiter),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	srvWg.Wait()
	return nil
}

func connectPostgres(cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := startup.NewPoolConfig(cfg.DatabaseURL(), cfg.DBMaxConnections())
	if err != nil {
		return nil, err
	}
	pool, err := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := startup.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("database connected, migrations applied")
	return pool, nil
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5433
		user     = "chat"
		password = "chat_secret"
		database = "chat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
