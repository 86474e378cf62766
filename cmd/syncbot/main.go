// Command syncbot is a headless room participant. It drives a simulated player through the
// reconciliation loop and reports the ad breaks its simulated page shows.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/sharetube/syncroom/internal/client/adprobe"
	"github.com/sharetube/syncroom/internal/client/session"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	serverURL = configVar[string]{
		envKey:       "SYNCBOT_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "ws://localhost:80/api/v1/ws",
		usage:        "Websocket endpoint of the room server",
	}
	roomId = configVar[string]{
		envKey:       "SYNCBOT_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
		usage:        "Room to join; a new room is created when empty",
	}
	userId = configVar[string]{
		envKey:       "SYNCBOT_USER_ID",
		flagKey:      "user-id",
		defaultValue: "",
		usage:        "Stable user id; random when empty",
	}
	displayName = configVar[string]{
		envKey:       "SYNCBOT_DISPLAY_NAME",
		flagKey:      "display-name",
		defaultValue: "syncbot",
		usage:        "Display name shown to the room",
	}
	deviceType = configVar[string]{
		envKey:       "SYNCBOT_DEVICE_TYPE",
		flagKey:      "device-type",
		defaultValue: string(domain.DeviceDesktop),
		usage:        "desktop or mobile",
	}
	platform = configVar[string]{
		envKey:       "SYNCBOT_PLATFORM",
		flagKey:      "platform",
		defaultValue: string(domain.PlatformYouTube),
		usage:        "Streaming platform the simulated page imitates",
	}
	joinTimeout = configVar[time.Duration]{
		envKey:       "SYNCBOT_JOIN_TIMEOUT",
		flagKey:      "join-timeout",
		defaultValue: 10 * time.Second,
		usage:        "How long to wait for the room to confirm create or join",
	}
	adEvery = configVar[time.Duration]{
		envKey:       "SYNCBOT_AD_EVERY",
		flagKey:      "ad-every",
		defaultValue: 0,
		usage:        "Interval between simulated ad breaks; 0 disables them",
	}
	adLength = configVar[time.Duration]{
		envKey:       "SYNCBOT_AD_LENGTH",
		flagKey:      "ad-length",
		defaultValue: 15 * time.Second,
		usage:        "Length of each simulated ad break",
	}
	autoplay = configVar[bool]{
		envKey:       "SYNCBOT_AUTOPLAY",
		flagKey:      "autoplay",
		defaultValue: false,
		usage:        "Start playback once in the room",
	}
	logLevel = configVar[string]{
		envKey:       "SYNCBOT_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
)

var wsURLRe = regexp.MustCompile(`^wss?://`)

type botConfig struct {
	ServerURL   string
	RoomId      string
	UserId      string
	DisplayName string
	DeviceType  domain.DeviceType
	Platform    domain.Platform
	JoinTimeout time.Duration
	AdEvery     time.Duration
	AdLength    time.Duration
	Autoplay    bool
	LogLevel    string
}

func (cfg *botConfig) validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.ServerURL, validation.Required, validation.Match(wsURLRe)),
		validation.Field(&cfg.UserId, validation.Required, validation.Length(1, 64)),
		validation.Field(&cfg.DisplayName, validation.Length(0, 32)),
		validation.Field(&cfg.DeviceType, validation.Required, validation.In(domain.DeviceDesktop, domain.DeviceMobile)),
		validation.Field(&cfg.Platform, validation.Required, validation.By(func(any) error {
			if !cfg.Platform.Valid() {
				return fmt.Errorf("unknown platform %q", cfg.Platform)
			}
			return nil
		})),
		validation.Field(&cfg.AdLength, validation.When(cfg.AdEvery > 0, validation.Required, validation.Max(cfg.AdEvery).Exclusive())),
	)
}

func loadBotConfig() *botConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	pflag.String(serverURL.flagKey, serverURL.defaultValue, serverURL.usage)
	pflag.String(roomId.flagKey, roomId.defaultValue, roomId.usage)
	pflag.String(userId.flagKey, userId.defaultValue, userId.usage)
	pflag.String(displayName.flagKey, displayName.defaultValue, displayName.usage)
	pflag.String(deviceType.flagKey, deviceType.defaultValue, deviceType.usage)
	pflag.String(platform.flagKey, platform.defaultValue, platform.usage)
	pflag.Duration(joinTimeout.flagKey, joinTimeout.defaultValue, joinTimeout.usage)
	pflag.Duration(adEvery.flagKey, adEvery.defaultValue, adEvery.usage)
	pflag.Duration(adLength.flagKey, adLength.defaultValue, adLength.usage)
	pflag.Bool(autoplay.flagKey, autoplay.defaultValue, autoplay.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	serverURL.bind()
	roomId.bind()
	userId.bind()
	displayName.bind()
	deviceType.bind()
	platform.bind()
	joinTimeout.bind()
	adEvery.bind()
	adLength.bind()
	autoplay.bind()
	logLevel.bind()

	cfg := &botConfig{
		ServerURL:   viper.GetString(serverURL.flagKey),
		RoomId:      viper.GetString(roomId.flagKey),
		UserId:      viper.GetString(userId.flagKey),
		DisplayName: viper.GetString(displayName.flagKey),
		DeviceType:  domain.DeviceType(viper.GetString(deviceType.flagKey)),
		Platform:    domain.Platform(viper.GetString(platform.flagKey)),
		JoinTimeout: viper.GetDuration(joinTimeout.flagKey),
		AdEvery:     viper.GetDuration(adEvery.flagKey),
		AdLength:    viper.GetDuration(adLength.flagKey),
		Autoplay:    viper.GetBool(autoplay.flagKey),
		LogLevel:    viper.GetString(logLevel.flagKey),
	}
	if cfg.UserId == "" {
		cfg.UserId = uuid.NewString()
	}

	return cfg
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	return slog.New(ctxlogger.ContextHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	}), nil
}

func run(ctx context.Context, cfg *botConfig, clock clockwork.Clock, logger *slog.Logger) error {
	player := newSimPlayer(clock)
	page := newSimPage(clock, cfg.Platform, cfg.AdEvery, cfg.AdLength)

	s, err := session.Dial(ctx, &session.Config{
		ServerURL:   cfg.ServerURL,
		Platform:    cfg.Platform,
		JoinTimeout: cfg.JoinTimeout,
	}, player, clock, logger)
	if err != nil {
		return err
	}

	indicator, interval, err := adprobe.ForPlatform(cfg.Platform, page)
	if err != nil {
		return err
	}
	probe := adprobe.NewProbe(indicator, interval, clock, adprobe.Callbacks{
		OnAdStart: func(estimatedDurationMs *int64) {
			player.hold(true)
			if err := s.AdStarted(estimatedDurationMs); err != nil {
				logger.Warn("failed to report ad start", "error", err)
			}
		},
		OnAdEnd: func() {
			player.hold(false)
			if err := s.AdFinished(); err != nil {
				logger.Warn("failed to report ad end", "error", err)
			}
		},
	}, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gCtx)
	})
	g.Go(func() error {
		name := &cfg.DisplayName
		var err error
		if cfg.RoomId == "" {
			_, err = s.CreateRoom(gCtx, cfg.UserId, name)
		} else {
			_, err = s.JoinRoom(gCtx, cfg.RoomId, cfg.UserId, cfg.DeviceType, name)
		}
		if err != nil {
			return fmt.Errorf("failed to enter room: %w", err)
		}

		roomCtx := ctxlogger.AppendCtx(gCtx, slog.String("room_id", s.RoomId()))
		logger.InfoContext(roomCtx, "entered room", "participant_id", s.ParticipantId(), "host_id", s.HostId())

		if cfg.Autoplay {
			if err := player.Play(); err != nil {
				return err
			}
			s.Loop().OnLocalEvent(true, player.Position())
		}

		return probe.Run(roomCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func main() {
	cfg := loadBotConfig()
	if err := cfg.validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, clockwork.NewRealClock(), logger); err != nil {
		log.Fatal(err)
	}
}
