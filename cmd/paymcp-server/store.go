package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paymcp/paymcp-go/config"
	"github.com/paymcp/paymcp-go/state"
	"github.com/paymcp/paymcp-go/state/mongostore"
	"github.com/paymcp/paymcp-go/state/pgstore"
	"github.com/paymcp/paymcp-go/state/redisstore"
	"github.com/paymcp/paymcp-go/state/sqlitestore"
)

// openStore builds the configured session store. The returned close function
// releases the backend connection and is never nil.
func openStore(ctx context.Context, cfg config.StoreConfig) (state.Store, func(), error) {
	opts := []state.Option{state.WithTTL(cfg.TTL), state.WithKeyPrefix(cfg.KeyPrefix)}
	noop := func() {}

	switch cfg.Type {
	case config.StoreMemory, "":
		return state.NewMemoryStore(opts...), noop, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store, err := redisstore.New(rdb, opts...)
		if err != nil {
			rdb.Close()
			return nil, noop, err
		}
		return store, func() { rdb.Close() }, nil

	case config.StoreSQLite:
		store, err := sqlitestore.Open(cfg.DSN, opts...)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil

	case config.StorePostgres:
		store, err := pgstore.New(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil

	case config.StoreMongo:
		client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.DSN))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		disconnect := func() { _ = client.Disconnect(context.Background()) }
		store, err := mongostore.New(mongostore.Options{Client: client, Database: cfg.Database}, opts...)
		if err != nil {
			disconnect()
			return nil, noop, err
		}
		return store, disconnect, nil
	}
	return nil, noop, fmt.Errorf("unknown store type %q", cfg.Type)
}
