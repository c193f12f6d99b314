package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Client.URL == "" && c.Client.PageURL == "" {
		return errors.New("client.url or client.page_url is required")
	}
	if c.Client.URL != "" {
		u, err := url.Parse(c.Client.URL)
		if err != nil {
			return fmt.Errorf("client.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("client.url must use ws or wss, got %q", u.Scheme)
		}
	}

	if c.Reconnect.InitialDelay <= 0 {
		return errors.New("reconnect.initial_delay must be > 0")
	}
	if c.Reconnect.MaxAttempts < MinMaxAttempts || c.Reconnect.MaxAttempts > MaxMaxAttempts {
		return fmt.Errorf("reconnect.max_attempts must be between %d and %d, got %d",
			MinMaxAttempts, MaxMaxAttempts, c.Reconnect.MaxAttempts)
	}

	if c.Transport.OutboxSize < 1 {
		return errors.New("transport.outbox_size must be >= 1")
	}

	switch c.Session.Store {
	case SessionStoreNone, SessionStoreFile:
	case SessionStorePostgres:
		if !c.Database.Configured() {
			return errors.New("session.store postgres requires database.host")
		}
	default:
		return fmt.Errorf("session.store must be none, file or postgres, got %q", c.Session.Store)
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.BufferSize < 1 {
		return errors.New("recorder.buffer_size must be >= 1")
	}

	if c.Database.Configured() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
