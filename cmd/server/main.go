package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncroom/internal/app"
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
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 16,
		usage:        "Maximum number of participants in a room",
	}
	playbackStore = configVar[string]{
		envKey:       "SERVER_PLAYBACK_STORE",
		flagKey:      "playback-store",
		defaultValue: app.PlaybackStoreMemory,
		usage:        "Where room playback state is kept: memory or redis",
	}
	playbackTTL = configVar[time.Duration]{
		envKey:       "SERVER_PLAYBACK_TTL",
		flagKey:      "playback-ttl",
		defaultValue: 24 * time.Hour,
		usage:        "Expiry of playback state in redis",
	}
	writeTimeout = configVar[time.Duration]{
		envKey:       "SERVER_WRITE_TIMEOUT",
		flagKey:      "write-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Websocket write deadline",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
)

func loadAppConfig() *app.AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, membersLimit.usage)
	pflag.String(playbackStore.flagKey, playbackStore.defaultValue, playbackStore.usage)
	pflag.Duration(playbackTTL.flagKey, playbackTTL.defaultValue, playbackTTL.usage)
	pflag.Duration(writeTimeout.flagKey, writeTimeout.defaultValue, writeTimeout.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	port.bind()
	host.bind()
	logLevel.bind()
	membersLimit.bind()
	playbackStore.bind()
	playbackTTL.bind()
	writeTimeout.bind()
	redisPort.bind()
	redisHost.bind()
	redisPassword.bind()

	return &app.AppConfig{
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		MembersLimit:  viper.GetInt(membersLimit.flagKey),
		PlaybackStore: viper.GetString(playbackStore.flagKey),
		PlaybackTTL:   viper.GetDuration(playbackTTL.flagKey),
		WriteTimeout:  viper.GetDuration(writeTimeout.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
