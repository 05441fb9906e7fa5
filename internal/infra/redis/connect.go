package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	pkgRedis "github.com/vogiaan1904/clinicqueue-sync/pkg/redis"
)

func Connect(ctx context.Context, cfg config.RedisConfig, l logger.Logger) (*redis.Client, error) {
	cli, err := pkgRedis.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	l.Infof(ctx, "Connected to Redis at %s", cfg.Addr)

	return cli, nil
}

func Disconnect(ctx context.Context, cli *redis.Client, l logger.Logger) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "infra.redis.Disconnect: %v", err)
		return
	}

	l.Info(ctx, "Connection to Redis closed.")
}
