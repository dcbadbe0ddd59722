package main

import (
	"context"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/cache"
	"gitlab.com/infra.run/public/bbblb/pkg/config"
	"gitlab.com/infra.run/public/bbblb/pkg/gateway"
	"gitlab.com/infra.run/public/bbblb/pkg/logging"
	"gitlab.com/infra.run/public/bbblb/pkg/panicmigrator"
	"gitlab.com/infra.run/public/bbblb/pkg/player"
	"gitlab.com/infra.run/public/bbblb/pkg/poller"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

func main() {
	cfg := config.Load([]string{
		".env",
		"/etc/sysconfig/bbblbd",
	})

	if err := logging.Setup(&logging.Options{
		Level:  config.EnvOpt(config.EnvLogLevel, config.EnvLogLevelDefault),
		Format: config.EnvOpt(config.EnvLogFormat, config.EnvLogFormatDefault),
	}); err != nil {
		panic(err)
	}

	banner()
	log.Info().Msg("booting bbblbd")
	log.Debug().Str("url", cfg.DatabaseURL).Msg("using database")

	pool, err := store.Connect(&store.ConnectOpts{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabasePool,
		MinConns: 2,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database connection")
	}
	log.Info().Int32("maxConnections", cfg.DatabasePool).Msg("database pool")
	registry := store.NewRegistry(pool)

	redisOpts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing redis url")
	}
	index := cache.New(redisOpts, 5*time.Minute)
	defer index.Close()

	client := bbb.NewClient()

	var playerClient *player.Client
	if cfg.Player.APIURL != "" {
		playerClient = player.New(cfg.Player.APIURL, cfg.Player.RCPSecret)
	}

	migrator := panicmigrator.New(registry, client)

	pollInterval, err := time.ParseDuration(config.EnvOpt(config.EnvPollInterval, config.EnvPollIntervalDefault))
	if err != nil {
		pollInterval = poller.DefaultInterval
	}
	scheduler := poller.New(registry, client, migrator, &poller.Options{
		Interval: pollInterval,
		SSHUser:  cfg.SSHUser,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	gw := gateway.New(registry, client, playerClient, index, &gateway.Options{
		Secret:    cfg.Secret,
		Hostname:  cfg.Hostname,
		LogoutURL: cfg.LogoutURL,
	})

	log.Info().Str("listen", cfg.ListenHTTP).Msg("starting http interface")
	if err := http.ListenAndServe(cfg.ListenHTTP, gw.Router()); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
}

func banner() {
	log.Info().Msg("bbblbd - BigBlueButton load balancer")
}
