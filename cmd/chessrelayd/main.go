package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/castlane/chesslive/internal/archive"
	appcfg "github.com/castlane/chesslive/internal/config"
	"github.com/castlane/chesslive/internal/gateway"
	"github.com/castlane/chesslive/internal/hub"
	"github.com/castlane/chesslive/internal/identity"
	"github.com/castlane/chesslive/internal/invite"
	"github.com/castlane/chesslive/internal/live"
	"github.com/castlane/chesslive/internal/msgcat"
	"github.com/castlane/chesslive/internal/obslog"
	"github.com/castlane/chesslive/internal/presence"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping error: %v", err)
	}

	gameStore := live.NewStore(rdb, cfg.GameTTL)
	games := live.NewManager(gameStore)

	// The archive is optional: without DATABASE_URL moves live on the
	// redis document only.
	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		games.AttachArchive(repo)
	} else {
		obslog.L().Warn("archive_disabled")
	}

	invites := invite.NewManager(rdb, games, cfg.InviteTTL)

	messages, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	gw := gateway.New(gateway.Deps{
		Hub:          hub.NewRegistry(),
		Presence:     presence.NewRegistry(),
		Games:        games,
		Invites:      invites,
		Resolver:     identity.NewRedisResolver(rdb),
		Messages:     messages,
		QueueSize:    cfg.SendQueueSize,
		WriteTimeout: cfg.WriteTimeout,
	})

	r := mux.NewRouter()
	r.HandleFunc("/ws/lobby", gw.LobbyHandler())
	r.HandleFunc("/ws/game/{game_id}", gw.GameHandler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("server_shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = rdb.Close()
	if repo != nil {
		_ = repo.Close()
	}
}
