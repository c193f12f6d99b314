package config

import "github.com/rickgao/databench-client/internal/connection"

// ConnectionConfig translates the client, reconnect and transport
// sections into a connection.Config.
func (c *Config) ConnectionConfig() connection.Config {
	return connection.Config{
		URL:         c.Client.URL,
		PageURL:     c.Client.PageURL,
		RequestArgs: c.Client.RequestArgs,
		AnalysisID:  c.Client.AnalysisID,

		InitialReconnectDelay: c.Reconnect.InitialDelay,
		MaxReconnectAttempts:  c.Reconnect.MaxAttempts,
		OpenCheckDelay:        c.Reconnect.OpenCheckDelay,

		HandshakeTimeout: c.Transport.HandshakeTimeout,
		WriteTimeout:     c.Transport.WriteTimeout,
		PingInterval:     c.Transport.PingInterval,
		PingTimeout:      c.Transport.PingTimeout,
		OutboxSize:       c.Transport.OutboxSize,
	}
}
