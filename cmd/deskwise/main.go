package main

import (
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/deskwise/internal/clock"
	"github.com/smallbiznis/deskwise/internal/config"
	"github.com/smallbiznis/deskwise/internal/migration"
	"github.com/smallbiznis/deskwise/internal/observability"
	"github.com/smallbiznis/deskwise/internal/scheduler"
	"github.com/smallbiznis/deskwise/internal/server"
	"github.com/smallbiznis/deskwise/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterRedis),
		db.Module,
		clock.Module,
		server.Module,

		scheduler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// RegisterRedis returns nil when no redis address is configured; the run
// lock degrades to in-process behavior.
func RegisterRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
