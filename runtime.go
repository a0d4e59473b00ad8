package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"logistria/internal/config"
	"logistria/internal/docstore"
	"logistria/internal/etl"
	"logistria/internal/identity"
	"logistria/internal/service"
	"logistria/internal/storage"
)

// runtime is the wired set of stores and services every command shares.
type runtime struct {
	cfg       *config.Config
	docs      docstore.Store
	state     *storage.DB
	redis     *redis.Client
	events    *service.Broadcaster
	imports   *service.ImportService
	orders    *service.OrderService
	feeds     *service.FeedService
	profiles  *identity.Profiles
	approvals *storage.ApprovalStore
}

// openRuntime loads the configuration and connects the document store,
// the local state database and, when configured, Redis.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		config.GetLogger().SetLevel(logrus.DebugLevel)
	}
	logger := config.GetLogger()

	rt := &runtime{cfg: cfg, events: service.NewBroadcaster()}

	if useMemory {
		logger.Warn("using the in-process document store; data is lost on exit")
		mem := docstore.NewMemoryStore()
		mem.MaxBatchWrites = cfg.MaxBatchWrites
		rt.docs = mem
	} else {
		rt.docs, err = docstore.ConnectMongo(ctx, docstore.MongoConfig{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			MaxBatchWrites: cfg.MaxBatchWrites,
		})
		if err != nil {
			return nil, err
		}
	}

	rt.state, err = storage.New(cfg.StateDBPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open state database: %w", err)
	}

	opts := service.ImportOptions{Timeout: cfg.ImportTimeout, InboxDir: cfg.InboxDir}
	if cfg.RedisAddress != "" {
		client, locker, err := config.ConnectRedis(ctx, cfg.RedisAddress)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable; imports are serialized per process only")
		} else {
			rt.redis = client
			opts.Locker = locker
		}
	}

	engine := &etl.Engine{Dest: rt.docs, StrictNumbers: cfg.StrictNumbers}
	rt.imports = service.NewImportService(engine, storage.NewImportStore(rt.state), rt.events, opts)
	rt.orders = service.NewOrderService(rt.docs, rt.events)
	rt.feeds = service.NewFeedService(rt.docs)
	rt.profiles = identity.NewProfiles(rt.docs)
	rt.approvals = storage.NewApprovalStore(rt.state)
	return rt, nil
}

// Close releases every connection the runtime opened.
func (rt *runtime) Close() {
	if rt.imports != nil {
		rt.imports.Stop()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.state != nil {
		_ = rt.state.Close()
	}
	if rt.docs != nil {
		_ = rt.docs.Close(context.Background())
	}
}
