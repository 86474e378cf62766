package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/controller"
	"github.com/sharetube/syncroom/internal/domain"
	connInmemory "github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	playbackInmemory "github.com/sharetube/syncroom/internal/repository/playback/inmemory"
	playbackRedis "github.com/sharetube/syncroom/internal/repository/playback/redis"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	"github.com/sharetube/syncroom/internal/service/ad"
	"github.com/sharetube/syncroom/internal/service/playback"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
	"github.com/sharetube/syncroom/pkg/redisclient"
	"golang.org/x/sync/errgroup"
)

const (
	PlaybackStoreMemory = "memory"
	PlaybackStoreRedis  = "redis"
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	MembersLimit  int           `json:"members_limit"`
	PlaybackStore string        `json:"playback_store"`
	PlaybackTTL   time.Duration `json:"playback_ttl"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&cfg.MembersLimit, validation.Required, validation.Min(1)),
		validation.Field(&cfg.PlaybackStore, validation.Required, validation.In(PlaybackStoreMemory, PlaybackStoreRedis)),
		validation.Field(&cfg.PlaybackTTL, validation.When(cfg.PlaybackStore == PlaybackStoreRedis, validation.Required, validation.Min(time.Second))),
		validation.Field(&cfg.WriteTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

type iPlaybackRepo interface {
	SetPlayback(ctx context.Context, roomId string, state domain.PlaybackState) error
	GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error)
	RemovePlayback(ctx context.Context, roomId string) error
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

// newPlaybackRepo returns the configured playback store and a function releasing its resources.
func newPlaybackRepo(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (iPlaybackRepo, func() error, error) {
	if cfg.PlaybackStore != PlaybackStoreRedis {
		return playbackInmemory.NewRepo(logger), func() error { return nil }, nil
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return playbackRedis.NewRepo(rc, cfg.PlaybackTTL, logger), rc.Close, nil
}

// NewHandler wires every layer and returns the http handler. The returned function closes the
// backing stores.
func NewHandler(ctx context.Context, cfg *AppConfig, clock clockwork.Clock, logger *slog.Logger) (http.Handler, func() error, error) {
	playbackRepo, closeFn, err := newPlaybackRepo(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	roomStore := roomInmemory.NewStore(logger)
	connectionRepo := connInmemory.NewRepo(logger)
	authority := playback.NewAuthority(roomStore, playbackRepo, clock, logger)
	coordinator := ad.NewCoordinator(roomStore, authority, clock, logger)
	roomService := room.NewService(roomStore, connectionRepo, authority, coordinator, clock, &room.Config{
		MembersLimit: cfg.MembersLimit,
		RoomIdLength: 8,
	}, logger)
	controller := controller.NewController(roomService, &controller.Config{
		WriteTimeout: cfg.WriteTimeout,
	}, logger)

	return controller.GetMux(), closeFn, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	handler, closeFn, err := NewHandler(ctx, cfg, clockwork.NewRealClock(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("failed to close playback store", "error", err)
		}
	}()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: handler}

	// graceful shutdown
	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gCtx := errgroup.WithContext(serverCtx)
	g.Go(func() error {
		logger.InfoContext(gCtx, "starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
