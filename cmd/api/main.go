package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	v1 "social-chat/cmd/api/router/v1"
	cacheAdapter "social-chat/internal/infrastructure/cache/adapter"
	cacheport "social-chat/internal/infrastructure/cache/port"
	"social-chat/internal/infrastructure/database"
	queueAdapter "social-chat/internal/infrastructure/queue/adapter"
	qport "social-chat/internal/infrastructure/queue/port"
	"social-chat/internal/infrastructure/realtime"
	"social-chat/internal/pkg/chat/application/task"
	repoAdapter "social-chat/internal/pkg/chat/persistence/repository/adapter"
	httpHandler "social-chat/internal/pkg/chat/presentation/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf(".env file not loaded: %v", err)
	}

	log := newLogger()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := database.NewPoolFromEnv(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	repo := repoAdapter.NewPgChatRepository(pool)
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = repo.InitSchema(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to initialize schema")
	}

	// Redis backs presence; the app runs without it, peers just read offline.
	var cache cacheport.Cache
	if redisCache, err := cacheAdapter.NewRedisAdapter(); err != nil {
		log.WithError(err).Warn("redis unavailable, presence disabled")
	} else {
		cache = redisCache
		defer redisCache.Close()
	}

	// The queue carries message purges after conversation deletion. Without
	// it purges run inline on the request path.
	var queue qport.Client
	if client, err := queueAdapter.NewAsynqClientFromEnv(); err != nil {
		log.WithError(err).Warn("task queue unavailable, purges run inline")
	} else {
		queue = client
		defer client.Close()
	}

	hub := realtime.NewHub()
	defer hub.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if queue != nil {
		if worker, err := queueAdapter.NewAsynqServer(log); err != nil {
			log.WithError(err).Warn("worker server not started")
		} else {
			task.RegisterPurgeMessagesTask(worker, repo, log)
			go func() {
				if err := worker.Run(rootCtx); err != nil {
					log.WithError(err).Error("worker server stopped")
				}
			}()
		}
	}

	r := gin.Default()
	r.Use(cors.Default())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	v1.RegisterRoutes(r, httpHandler.Deps{
		Store:     repo,
		Directory: repo,
		Hub:       hub,
		Cache:     cache,
		Queue:     queue,
		JWTSecret: jwtSecret,
		Log:       log,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.WithField("port", port).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
