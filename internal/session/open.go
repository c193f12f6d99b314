package session

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/databench-client/internal/config"
)

// Open builds the store selected by cfg. It returns a nil Store for
// config.SessionStoreNone. db is only used by the postgres store.
func Open(cfg config.SessionConfig, db *pgxpool.Pool) (Store, error) {
	switch cfg.Store {
	case config.SessionStoreNone, "":
		return nil, nil
	case config.SessionStoreFile:
		if cfg.Path == "" {
			return nil, errors.New("file session store needs a path")
		}
		return NewFileStore(cfg.Path), nil
	case config.SessionStorePostgres:
		if db == nil {
			return nil, errors.New("postgres session store needs a database")
		}
		return NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.Store)
}
