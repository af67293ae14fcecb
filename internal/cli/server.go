package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-portal/internal/api"
	"quiz-portal/internal/app"
	"quiz-portal/internal/config"
	"quiz-portal/internal/infra/memory"
	pgstore "quiz-portal/internal/infra/postgres"
	redisstore "quiz-portal/internal/infra/redis"
	transport "quiz-portal/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the web portal.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, closeStore, err := credentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	client := api.New(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second))
	handler, err := transport.NewHandler(transport.Options{
		Auth:           app.NewAuth(client, store),
		Client:         client,
		SessionSecret:  cfg.Server.SessionSecret,
		SecureCookies:  cfg.Server.SecureCookies,
		DefaultSeconds: cfg.Quiz.DefaultSecondsPerQuestion,
	})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     handler.Router(),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz portal on :%s (api %s)", finalPort, cfg.API.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// credentialStore picks Postgres, then Redis, then memory, whichever is
// configured first.
func credentialStore(ctx context.Context, cfg config.Config) (app.CredentialStore, func(), error) {
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("credentials stored in postgres")
		return pgstore.NewCredentialStore(pool), pool.Close, nil
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		log.Printf("credentials stored in redis at %s", cfg.Redis.Addr)
		return redisstore.NewCredentialStore(client, ttl), func() { _ = client.Close() }, nil
	}

	log.Printf("credentials stored in memory")
	return memory.NewCredentialStore(), func() {}, nil
}
