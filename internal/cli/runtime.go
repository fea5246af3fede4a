package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/clickmarket/marketplace/internal/config"
	"github.com/clickmarket/marketplace/internal/marketplace"
	"github.com/clickmarket/marketplace/internal/pkg/cache"
	"github.com/clickmarket/marketplace/internal/pkg/events"
	"github.com/clickmarket/marketplace/internal/pkg/sequence"
	"github.com/clickmarket/marketplace/internal/store/sqlite"
)

// runtime is everything a command needs to reach the services.
type runtime struct {
	db        *sqlite.DB // nil for the in-memory stores
	cache     cache.Cache
	publisher events.Publisher
	services  *marketplace.Services
}

func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{}

	var stores marketplace.Stores
	if cfg.Database.Path == config.MemoryDatabase {
		slog.WarnContext(ctx, "using in-memory stores, nothing survives a restart")
		stores = marketplace.MemoryStores()
	} else {
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		rt.db = db
		stores = marketplace.SQLiteStores(db)
	}

	if cfg.Redis.Addr != "" {
		rt.cache = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Namespace)
		stores.Counter = sequence.NewCacheCounter(rt.cache)
	} else {
		rt.cache = cache.NewMemoryCache(cfg.Redis.Namespace)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		rt.publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		rt.publisher = events.LogPublisher{}
	}

	rt.services = marketplace.New(stores, rt.publisher, rt.cache)
	return rt, nil
}

func (rt *runtime) Close() error {
	errs := []error{rt.publisher.Close(), rt.cache.Close()}
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
	}
	return errors.Join(errs...)
}
