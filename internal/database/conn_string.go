package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/databench-client/internal/config"
)

// ApplicationName tags recorder sessions in pg_stat_activity.
const ApplicationName = "databench-recorder"

// BuildConnString builds a postgres:// URL for the recorder's event store.
// An empty SSLMode falls back to "prefer". IPv6 hosts are bracketed.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	user := url.User(cfg.User)
	if cfg.Password != "" {
		user = url.UserPassword(cfg.User, cfg.Password)
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
