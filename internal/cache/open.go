package cache

import (
	"context"
	"fmt"
	"time"

	"aurionplan/internal/config"
	appLog "aurionplan/internal/log"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		appLog.Info("cache opened", "driver", cfg.Driver, "path", cfg.DSN)
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		appLog.Info("cache opened", "driver", cfg.Driver)
		return s, nil
	case "memory":
		appLog.Info("cache opened", "driver", cfg.Driver, "ttl_hours", cfg.MemoryTTLHours)
		return NewMemoryStore(time.Duration(cfg.MemoryTTLHours) * time.Hour), nil
	case "none", "":
		appLog.Info("cache disabled")
		return Disabled(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
