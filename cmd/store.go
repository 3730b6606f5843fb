package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/reverscodes/codes-cli/internal/store"
)

// errNoStore is returned by commands that need run history when
// store.driver is empty.
var errNoStore = eris.New("run history is disabled (store.driver is empty)")

// initStore opens the configured run history store. It returns a nil store
// and no error when store.driver is empty.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "":
		return nil, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "codes.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store for commands that require one.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errNoStore
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
